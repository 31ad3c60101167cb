package plugin

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/siftd/siftd/internal/parseradapter"
)

// LanguageRegistry manages supported languages and their configurations.
// It is distinct from plugin.Registry (C3): this registry knows about
// grammars and node-type tables; plugin.Registry knows about which Plugin
// serves which extension.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry creates a registry with the specialized languages
// this build ships grammars for.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}
	r.registerGo()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()
	return r
}

func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	langName, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	config, ok := r.configs[langName]
	return config, ok
}

func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.configs[name]
	return config, ok
}

func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[name]
	return lang, ok
}

func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

func (r *LanguageRegistry) registerLanguage(config *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[config.Name] = config
	r.tsLanguages[config.Name] = tsLang
	for _, ext := range config.Extensions {
		r.extToLang[ext] = config.Name
	}
}

func (r *LanguageRegistry) registerGo() {
	config := &LanguageConfig{
		Name:           "go",
		Extensions:     []string{".go"},
		FunctionTypes:  []string{"function_declaration"},
		MethodTypes:    []string{"method_declaration"},
		ClassTypes:     []string{},
		TypeDefTypes:   []string{"type_declaration"},
		InterfaceTypes: []string{}, // Go interfaces are type_declaration and are recorded with the type kind
		ConstantTypes:  []string{"const_declaration"},
		VariableTypes:  []string{"var_declaration"},
		CallTypes:      []string{"call_expression"},
		ImportTypes:    []string{"import_spec"},
		InheritTypes:   []string{}, // Go has no inheritance; struct embedding is not recorded as a reference
		ImplementTypes: []string{}, // Go interface satisfaction is implicit, not resolvable syntactically
		NameField:      "name",
	}
	r.registerLanguage(config, golang.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	tsConfig := &LanguageConfig{
		Name:           "typescript",
		Extensions:     []string{".ts"},
		FunctionTypes:  []string{"function_declaration"},
		MethodTypes:    []string{"method_definition"},
		ClassTypes:     []string{"class_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		TypeDefTypes:   []string{"type_alias_declaration"},
		ConstantTypes:  []string{"lexical_declaration"},
		VariableTypes:  []string{"variable_declaration"},
		CallTypes:      []string{"call_expression", "new_expression"},
		ImportTypes:    []string{"import_statement"},
		InheritTypes:   []string{"class_heritage"},
		ImplementTypes: []string{"implements_clause"},
		NameField:      "name",
	}
	r.registerLanguage(tsConfig, typescript.GetLanguage())

	tsxConfig := &LanguageConfig{
		Name:           "tsx",
		Extensions:     []string{".tsx"},
		FunctionTypes:  tsConfig.FunctionTypes,
		MethodTypes:    tsConfig.MethodTypes,
		ClassTypes:     tsConfig.ClassTypes,
		InterfaceTypes: tsConfig.InterfaceTypes,
		TypeDefTypes:   tsConfig.TypeDefTypes,
		ConstantTypes:  tsConfig.ConstantTypes,
		VariableTypes:  tsConfig.VariableTypes,
		CallTypes:      tsConfig.CallTypes,
		ImportTypes:    tsConfig.ImportTypes,
		InheritTypes:   tsConfig.InheritTypes,
		ImplementTypes: tsConfig.ImplementTypes,
		NameField:      tsConfig.NameField,
	}
	r.registerLanguage(tsxConfig, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	jsConfig := &LanguageConfig{
		Name:           "javascript",
		Extensions:     []string{".js", ".mjs"},
		FunctionTypes:  []string{"function_declaration", "function"},
		MethodTypes:    []string{"method_definition"},
		ClassTypes:     []string{"class_declaration"},
		InterfaceTypes: []string{},
		TypeDefTypes:   []string{},
		ConstantTypes:  []string{"lexical_declaration"},
		VariableTypes:  []string{"variable_declaration"},
		CallTypes:      []string{"call_expression", "new_expression"},
		ImportTypes:    []string{"import_statement"},
		InheritTypes:   []string{"class_heritage"},
		ImplementTypes: []string{},
		NameField:      "name",
	}
	r.registerLanguage(jsConfig, javascript.GetLanguage())

	jsxConfig := &LanguageConfig{
		Name:           "jsx",
		Extensions:     []string{".jsx"},
		FunctionTypes:  jsConfig.FunctionTypes,
		MethodTypes:    jsConfig.MethodTypes,
		ClassTypes:     jsConfig.ClassTypes,
		InterfaceTypes: jsConfig.InterfaceTypes,
		TypeDefTypes:   jsConfig.TypeDefTypes,
		ConstantTypes:  jsConfig.ConstantTypes,
		VariableTypes:  jsConfig.VariableTypes,
		CallTypes:      jsConfig.CallTypes,
		ImportTypes:    jsConfig.ImportTypes,
		InheritTypes:   jsConfig.InheritTypes,
		ImplementTypes: jsConfig.ImplementTypes,
		NameField:      jsConfig.NameField,
	}
	r.registerLanguage(jsxConfig, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	config := &LanguageConfig{
		Name:           "python",
		Extensions:     []string{".py"},
		FunctionTypes:  []string{"function_definition"},
		MethodTypes:    []string{},
		ClassTypes:     []string{"class_definition"},
		InterfaceTypes: []string{},
		TypeDefTypes:   []string{},
		ConstantTypes:  []string{},
		VariableTypes:  []string{"assignment"},
		CallTypes:      []string{"call"},
		ImportTypes:    []string{"import_statement", "import_from_statement"},
		InheritTypes:   []string{"argument_list"}, // base classes appear as the class's argument_list
		ImplementTypes: []string{},
		NameField:      "name",
	}
	r.registerLanguage(config, python.GetLanguage())
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the process-wide default language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}

// grammar looks up the parseradapter.Grammar for a registered language name.
func (r *LanguageRegistry) grammar(name string) (parseradapter.Grammar, bool) {
	ts, ok := r.GetTreeSitterLanguage(name)
	if !ok {
		return parseradapter.Grammar{}, false
	}
	return parseradapter.Grammar{Name: name, TS: ts}, true
}

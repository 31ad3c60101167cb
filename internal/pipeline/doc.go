// Package pipeline watches a repository for file system changes and drives
// them through debouncing, priority-ordered queueing, and a bounded worker
// pool into symbolstore/semanticstore commits (§4.6).
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: polling for environments where fsnotify fails (network
//     mounts, containers without inotify)
//
// Events are debounced to coalesce rapid changes from editors and git
// operations, filtered against ignore globs, and fed into a priority queue
// so interactively-opened files jump ahead of a bulk reindex.
//
// Usage:
//
//	opts := pipeline.DefaultOptions()
//	w, err := pipeline.NewHybridWatcher(opts)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Start(ctx, "/path/to/project"); err != nil {
//	    return err
//	}
//
//	for events := range w.Events() {
//	    for _, event := range events {
//	        switch event.Operation {
//	        case pipeline.OpCreate:
//	            // Handle file creation
//	        case pipeline.OpModify:
//	            // Handle file modification
//	        case pipeline.OpDelete:
//	            // Handle file deletion
//	        }
//	    }
//	}
package pipeline

// Command siftd drives the nine §6 operations from a terminal: index a
// repository, watch it, and query it by symbol, content, or meaning.
package main

import (
	"fmt"
	"os"

	"github.com/siftd/siftd/cmd/siftd/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

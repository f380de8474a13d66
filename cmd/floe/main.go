// Command floe builds and queries warehouse lineage dependency graphs.
package main

import (
	"os"

	"github.com/floedata/floe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

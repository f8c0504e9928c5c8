// Command matchforge is the client CLI for a matchforge server.
package main

import (
	"fmt"
	"os"

	"github.com/pendergraft/matchforge/internal/cli"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

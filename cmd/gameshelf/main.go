// Command gameshelf tracks a personal game collection and gaming todos.
package main

import (
	"os"

	"gameshelf/cmd/gameshelf/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, &cmd.Config{}))
}

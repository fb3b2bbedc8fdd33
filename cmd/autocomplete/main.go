package main

import (
	"os"

	"autocomplete/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}

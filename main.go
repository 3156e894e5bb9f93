package main

import (
	"os"

	"github.com/HildaM/GoMux/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

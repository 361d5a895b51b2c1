package main

import (
	"fmt"
	"os"

	"costledger/internal/cli"
)

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd(os.Stdout, buildApp).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

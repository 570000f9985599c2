package main

import (
	"fmt"
	"os"

	"github.com/wenkaifan0720/code-context-sub001/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "code-context-sub001: %v\n", err)
		os.Exit(1)
	}
}

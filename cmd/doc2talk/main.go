package main

import (
	"context"
	"os"

	"github.com/unclecode/doc2talk/cmd/doc2talk/cmd"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

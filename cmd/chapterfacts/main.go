package main

import (
	"os"

	"github.com/kittclouds/chapterfacts/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/archslayer/flagbase111-sub000/cmd/flagwars/launcher"
)

func main() {
	if err := launcher.Launch(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

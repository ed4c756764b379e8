// Command meshtool inspects, edits, subsets and compares mesh stores.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "meshtool: %v\n", err)
		os.Exit(1)
	}
}

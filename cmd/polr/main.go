// Command polr builds and queries a corpus of political speech transcripts:
// it ingests speeches, splits them into fragments, classifies each fragment
// by topic and depth, and places it on the term timeline.
package main

import (
	"fmt"
	"os"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

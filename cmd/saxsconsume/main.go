// Command saxsconsume launches a producer binary, consumes its stream and prints one
// line per (Sample, FlowMetadata) pair.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

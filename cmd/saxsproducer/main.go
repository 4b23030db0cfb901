// Command saxsproducer is a reference producer for local testing. It streams synthetic
// scattering profiles on stdout using the SAXS frame protocol and reads commands on stdin.
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

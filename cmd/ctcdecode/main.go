// Command ctcdecode decodes CTC classifier output and manages language models.
//
// Usage:
//
//	ctcdecode [flags] <command> [args]
//
// Commands:
//
//	decode      - batch decode a probability file
//	stream      - decode a probability file chunk by chunk through online states
//	lm build    - build an ARPA model from tokenized text
//	lm compile  - convert an ARPA model to the compiled binary format
//	tune        - grid search alpha and beta against reference transcripts
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

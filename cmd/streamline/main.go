// Streamline fetches an HTTP response as a stream of lines, printing each
// line as it arrives, and keeps a history of past transfers.
package main

import (
	"errors"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			fmt.Fprintf(os.Stderr, "error: %v\n", ee.err)
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

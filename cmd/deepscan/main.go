// Command deepscan classifies audio as real or synthetic speech.
//
// Usage:
//
//	deepscan detect <file>   Classify one audio file
//	deepscan inspect         Show model inputs, outputs and feature adaptation
//	deepscan serve           Run the HTTP API
//	deepscan config          Manage contexts and service configuration
//	deepscan version         Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/deepscan/cmd/deepscan/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

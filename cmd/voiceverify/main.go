// Command voiceverify runs the speaker-verification service and its
// supporting offline tools.
//
// Usage:
//
//	voiceverify serve
//	voiceverify seed-cohort <dir>
//	voiceverify migrate
package main

import (
	"fmt"
	"os"

	"github.com/arcvoice/voiceverify/cmd/voiceverify/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

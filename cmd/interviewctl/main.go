// Command interviewctl administers an interview coach installation: encrypted provider
// credentials, saved interview records and usage statistics.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

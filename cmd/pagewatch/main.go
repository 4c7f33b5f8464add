// Package main is the pagewatch CLI.
//
// Usage:
//
//	pagewatch [--config pagewatch.yaml] [--env-file .env]
//	pagewatch check [--dry-run]
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		if errors.Is(err, errAlertRaised) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Command gen-schema generates the wire protocol JSON Schema files.
package main

import (
	"fmt"
	"os"

	"github.com/holomush/eventhub/internal/wire"
)

func main() {
	paths, err := wire.WriteSchemas("schemas")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schemas: %v\n", err)
		os.Exit(1)
	}

	for _, path := range paths {
		fmt.Printf("Generated %s\n", path)
	}
}

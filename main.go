// Package main provides the entry point for Tomasim.
// Tomasim is a cycle-level Tomasulo simulator with in-order commit, built
// on Akita.
//
// For the full CLI, use: go run ./cmd/tomasim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("Tomasim - Tomasulo Pipeline Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: tomasim [options] <program.txt> [program.txt...]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config      Path to timing configuration (JSON or YAML)")
	fmt.Println("  -policy      Commit policy: commit or writeback")
	fmt.Println("  -max-cycles  Cycle cap")
	fmt.Println("  -step        Show the state every cycle, ENTER to advance")
	fmt.Println("  -csv         Export the instruction timeline as CSV")
	fmt.Println("  -parquet     Export the instruction timeline as Parquet")
	fmt.Println("  -v           Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/tomasim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/tomasim' instead.")
	}
}

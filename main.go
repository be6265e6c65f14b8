// Package main provides the entry point for armvm.
// armvm is a functional ARMv6-M Thumb emulator.
//
// For the full CLI, use: go run ./cmd/armvm
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("armvm - ARMv6-M Thumb emulator")
	fmt.Println("")
	fmt.Println("Usage: armvm [options] <program>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -device       Device layout (default STM32F070CB)")
	fmt.Println("  -config       Path to a YAML or JSON options file")
	fmt.Println("  -steps        Maximum number of instructions to execute")
	fmt.Println("  -interactive  Step through the program from the keyboard")
	fmt.Println("  -v            Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/armvm' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/armvm' instead.")
	}
}

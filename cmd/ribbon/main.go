// Command ribbon is the CLI driver: it wires lexer -> parser -> typecheck
// -> borrowck -> compiler -> vm together the way spec.md §6 specifies,
// and owns the project config / build cache glue SPEC_FULL.md §5 adds.
// Grounded on the teacher's cmd/yar/main.go subcommand dispatch, minus
// the build-to-linked-executable step (this language's "build" product
// is a bytecode blob, not something clang links).
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		handleRun(os.Args[2:])
	case "check":
		handleCheck(os.Args[2:])
	case "build":
		handleBuild(os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("ribbon v0.1.0")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ribbon run <file>    Compile and run a ribbon source file")
	fmt.Println("  ribbon check <file>  Type-check and borrow-check without running")
	fmt.Println("  ribbon build <file>  Compile to a cached bytecode blob")
}

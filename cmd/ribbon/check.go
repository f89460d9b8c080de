package main

import (
	"fmt"
	"os"
)

func handleCheck(args []string) {
	if len(args) < 1 {
		fmt.Println("Error: no input file specified")
		os.Exit(1)
	}

	if _, _, err := frontend(args[0]); err != nil {
		exitWithError(err)
	}

	fmt.Printf("%s type-checks and borrow-checks successfully\n", args[0])
}

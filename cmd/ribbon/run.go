package main

import (
	"fmt"
	"os"

	"github.com/ribbc/ribbon/internal/vm"
)

func handleRun(args []string) {
	if len(args) < 1 {
		fmt.Println("Error: no input file specified")
		os.Exit(1)
	}

	crate, typed, err := frontend(args[0])
	if err != nil {
		exitWithError(err)
	}

	prog, err := compileCrate(crate, typed)
	if err != nil {
		exitWithError(err)
	}

	machine := vm.New(prog, stdoutSink{})
	if err := machine.Run(); err != nil {
		exitWithError(err)
	}
}

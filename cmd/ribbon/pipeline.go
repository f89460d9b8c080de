package main

import (
	"fmt"
	"os"

	"github.com/ribbc/ribbon/internal/ast"
	"github.com/ribbc/ribbon/internal/borrowck"
	"github.com/ribbc/ribbon/internal/compiler"
	"github.com/ribbc/ribbon/internal/parser"
	"github.com/ribbc/ribbon/internal/rlog"
	"github.com/ribbc/ribbon/internal/typecheck"
)

var log = rlog.New(os.Getenv("RIBBON_DEBUG") != "")

// stdoutSink adapts os.Stdout to builtins.Sink.
type stdoutSink struct{}

func (stdoutSink) Write(s string) { fmt.Println(s) }

// frontend runs lex->parse->typecheck->borrowck, the shared prefix of
// every subcommand. It reports the pipeline stage each pass completed
// through log, matching how the teacher's own tooling narrates build
// steps.
func frontend(path string) (*ast.Crate, *typecheck.Result, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading file: %w", err)
	}

	crate, err := parser.Parse(string(source))
	if err != nil {
		return nil, nil, err
	}

	log.Debugw("parsed", "file", path, "funcs", len(crate.Funcs))

	typed, err := typecheck.Check(crate)
	if err != nil {
		return nil, nil, err
	}

	log.Debugw("type-checked", "file", path)

	if err := borrowck.Check(crate, typed); err != nil {
		return nil, nil, err
	}

	log.Debugw("borrow-checked", "file", path)

	return crate, typed, nil
}

func compileCrate(crate *ast.Crate, typed *typecheck.Result) (*compiler.Program, error) {
	prog, err := compiler.Compile(crate, typed)
	if err != nil {
		return nil, err
	}

	log.Debugw("compiled", "instructions", len(prog.Instrs))

	return prog, nil
}

func exitWithError(err error) {
	fmt.Printf("Error: %s\n", err.Error())
	os.Exit(1)
}

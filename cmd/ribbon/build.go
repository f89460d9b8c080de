package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ribbc/ribbon/internal/buildcache"
	"github.com/ribbc/ribbon/internal/projectconfig"
)

// handleBuild compiles an entry file to a cached bytecode blob, skipping
// recompilation when the source hash hasn't changed since the last
// build. With no arguments it falls back to ribbon.toml in the current
// directory (the project-config-driven path SPEC_FULL.md §5 adds);
// given a file argument it builds that file directly, keyed by its base
// name, same as the teacher's cmd/yar build <file> shape.
func handleBuild(args []string) {
	var (
		entryPath string
		name      string
		root      string
	)

	if len(args) >= 1 {
		entryPath = args[0]
		base := filepath.Base(entryPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
		root = filepath.Dir(entryPath)
	} else {
		wd, err := os.Getwd()
		if err != nil {
			exitWithError(err)
		}

		cfg, err := projectconfig.Load(wd)
		if err != nil {
			exitWithError(err)
		}

		entryPath = cfg.EntryPath(wd)
		name = cfg.Package.Name
		root = wd
	}

	source, err := os.ReadFile(entryPath)
	if err != nil {
		exitWithError(err)
	}

	cache := buildcache.NewManager(root)

	if !cache.NeedsRebuild(name, source) {
		fmt.Printf("Up to date: %s\n", entryPath)
		return
	}

	crate, typed, err := frontend(entryPath)
	if err != nil {
		exitWithError(err)
	}

	prog, err := compileCrate(crate, typed)
	if err != nil {
		exitWithError(err)
	}

	if err := cache.Store(name, source, prog); err != nil {
		exitWithError(err)
	}

	fmt.Printf("Built: %s\n", entryPath)
}

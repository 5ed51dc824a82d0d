// Package main runs one import pass over a calculation tree.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/oqmd/qmdb/internal/platform/config"
	"github.com/oqmd/qmdb/internal/services/importer"
)

func main() {
	cfg, err := importer.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	if err := importer.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}

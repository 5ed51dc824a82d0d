package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Exitf reports a fatal error on stderr, prefixed with the binary name so
// the failing qmdb service is identifiable in shared logs, and exits with
// status 1. The importer and maintenance mains route their flag and run
// errors through it.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s: "+format+"\n",
		append([]any{filepath.Base(os.Args[0])}, args...)...)
	os.Exit(1)
}

package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"horse.fit/storychain/internal/articles"
)

type validateResult struct {
	Scanned int
	Valid   int
	Invalid int
	Rows    int
}

// runValidate checks article tables without chaining them. Exit code 2 means
// at least one file failed the schema.
func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "validate expects one or more article table paths")
		return 2
	}

	result := validateResult{}
	schemaFailures := 0
	for _, path := range paths {
		path = strings.TrimSpace(path)
		result.Scanned++

		inputs, err := articles.LoadFile(path)
		if err != nil {
			result.Invalid++
			if articles.IsSchemaError(err) {
				schemaFailures++
			}
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
			continue
		}
		result.Valid++
		result.Rows += len(inputs)
		fmt.Printf("OK %s rows=%d\n", path, len(inputs))
	}

	fmt.Printf("validate scanned=%d valid=%d invalid=%d rows=%d\n", result.Scanned, result.Valid, result.Invalid, result.Rows)

	switch {
	case schemaFailures > 0:
		return 2
	case result.Invalid > 0:
		return 1
	default:
		return 0
	}
}

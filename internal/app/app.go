package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "chain":
		return runChain(args[1:])
	case "compare":
		return runCompare(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "runs":
		return runRuns(args[1:])
	case "serve":
		return runServe(args[1:])
	case "health":
		return runHealth(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "storychain CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  storychain <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  chain     Group an article table into story chains")
	fmt.Fprintln(os.Stderr, "  compare   Compare chaining against the legacy greedy grouping")
	fmt.Fprintln(os.Stderr, "  validate  Check article table files against the input schema")
	fmt.Fprintln(os.Stderr, "  runs      List or show persisted chain runs")
	fmt.Fprintln(os.Stderr, "  serve     Start the Echo API server")
	fmt.Fprintln(os.Stderr, "  health    Verify database, cache and judge configuration")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"storychain <command> -h\" for command-specific flags.")
}

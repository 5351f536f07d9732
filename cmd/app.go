// Package cmd implements the tbk CLI application: it imports broker exports
// into a trade book and resolves security identifiers.
package cmd

import (
	"flag"

	"github.com/google/subcommands"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&detectCmd{}, "import")
	c.Register(&importCmd{}, "import")

	c.Register(&resolveCmd{}, "resolution")
	c.Register(&enqueueCmd{}, "resolution")
	c.Register(&sweepCmd{}, "resolution")
	c.Register(&queueCmd{}, "resolution")
	c.Register(&workerCmd{}, "resolution")
	c.Register(&searchCmd{}, "resolution")

	c.Register(&topicCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var bookFile = flag.String("book", "trades.jsonl", "Path to the trade book file (JSONL format)")
var configFile = flag.String("config", "", "Path to a YAML configuration file")

// Verbose enables debug logs.
var Verbose = flag.Bool("v", false, "Print debug logs")

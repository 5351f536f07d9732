package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/tradebook/renderer"
	"github.com/google/subcommands"
)

type queueCmd struct {
	report string
}

func (*queueCmd) Name() string     { return "queue" }
func (*queueCmd) Synopsis() string { return "print the resolution queue" }
func (*queueCmd) Usage() string {
	return `tbk queue [-report md|html|term]

  Prints the CUSIPs waiting for resolution, with their attempts and last
  error.
`
}

func (c *queueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.report, "report", "term", "report format: md, html or term")
}

func (c *queueCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	items, err := a.resolver.Queue(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := printMarkdown(renderer.RenderQueue(items), c.report); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/tradebook"
	"github.com/google/subcommands"
)

type enqueueCmd struct {
	user     string
	priority int
}

func (*enqueueCmd) Name() string     { return "enqueue" }
func (*enqueueCmd) Synopsis() string { return "queue CUSIPs for background resolution" }
func (*enqueueCmd) Usage() string {
	return `tbk enqueue [-user <id>] [-priority <n>] <cusip>...

  Queues the CUSIPs, or revives them if they had failed. Higher priorities
  are claimed first.
`
}

func (c *enqueueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "default", "user owning the CUSIPs")
	f.IntVar(&c.priority, "priority", 0, "queue priority, higher first")
}

func (c *enqueueCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one CUSIP is required.")
		return subcommands.ExitUsageError
	}
	a, err := openApp(ctx, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	for _, arg := range f.Args() {
		cusip := strings.ToUpper(strings.TrimSpace(arg))
		if err := tradebook.ValidateCUSIP(cusip); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		it, err := a.resolver.Enqueue(ctx, cusip, c.user, c.priority)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("%s\t%s\tpriority %d\n", it.CUSIP, it.Status, it.Priority)
	}
	return subcommands.ExitSuccess
}

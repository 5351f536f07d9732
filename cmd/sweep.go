package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/tradebook/resolver"
	"github.com/google/subcommands"
)

type sweepCmd struct{}

func (*sweepCmd) Name() string     { return "sweep" }
func (*sweepCmd) Synopsis() string { return "run one resolution sweep over the queue" }
func (*sweepCmd) Usage() string {
	return `tbk sweep

  Claims the eligible CUSIPs of the queue and tries to resolve them once.
  Resolved tickers are patched into the trades of the book.
`
}
func (c *sweepCmd) SetFlags(f *flag.FlagSet) {}

func (c *sweepCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx, 1024)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	stats, err := a.resolver.Sweep(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	drainEvents(a.resolver.Events())
	fmt.Println(stats)
	return subcommands.ExitSuccess
}

// drainEvents prints the events pending in 'events'.
func drainEvents(events <-chan resolver.Event) {
	for {
		select {
		case e := <-events:
			printEvent(e)
		default:
			return
		}
	}
}

func printEvent(e resolver.Event) {
	switch e.Kind {
	case resolver.Resolved:
		fmt.Printf("%s\t%s\t%s\t%s\tuser %s\t%d trades patched, all users\n", e.CUSIP, e.Ticker, e.Source, e.Confidence, e.UserID, e.PatchedTotal)
	case resolver.Exhausted:
		fmt.Printf("%s\tfailed\tuser %s\t%v\n", e.CUSIP, e.UserID, e.Err)
	}
}

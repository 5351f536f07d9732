package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etnz/tradebook/resolver"
	"github.com/google/subcommands"
)

type workerCmd struct {
	interval time.Duration
}

func (*workerCmd) Name() string     { return "worker" }
func (*workerCmd) Synopsis() string { return "resolve the queue periodically until interrupted" }
func (*workerCmd) Usage() string {
	return `tbk worker [-interval <duration>]

  Sweeps the resolution queue every interval, and prints each resolution as
  it happens. Stops on SIGINT or SIGTERM, after the running sweep.
`
}

func (c *workerCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.interval, "interval", 0, "sweep interval, the configured resolver interval if zero")
}

func (c *workerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, 1024)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	interval := c.interval
	if interval <= 0 {
		interval = a.cfg.Resolver.Interval
	}
	w := resolver.NewWorker(a.resolver, interval)
	if err := w.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	events := a.resolver.Events()
	for {
		select {
		case e := <-events:
			printEvent(e)
		case <-ctx.Done():
			w.Stop()
			drainEvents(events)
			return subcommands.ExitSuccess
		}
	}
}

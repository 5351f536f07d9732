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

type resolveCmd struct {
	user string
}

func (*resolveCmd) Name() string     { return "resolve" }
func (*resolveCmd) Synopsis() string { return "resolve CUSIPs into tickers" }
func (*resolveCmd) Usage() string {
	return `tbk resolve [-user <id>] <cusip>...

  Resolves each CUSIP from the cache or the market data provider. Those that
  cannot be resolved now are queued.
`
}

func (c *resolveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "default", "user asking for the resolution")
}

func (c *resolveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	status := subcommands.ExitSuccess
	for _, arg := range f.Args() {
		cusip := strings.ToUpper(strings.TrimSpace(arg))
		if err := tradebook.ValidateCUSIP(cusip); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			status = subcommands.ExitFailure
			continue
		}
		res, err := a.resolver.Resolve(ctx, c.user, cusip)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			status = subcommands.ExitFailure
		case res.Resolved:
			fmt.Printf("%s\t%s\t%s\t%s\n", cusip, res.Ticker, res.Source, res.Confidence)
		case res.Queued:
			fmt.Printf("%s\tqueued\n", cusip)
		default:
			fmt.Printf("%s\tunresolved\n", cusip)
		}
	}
	return status
}

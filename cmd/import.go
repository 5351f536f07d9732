package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/etnz/tradebook"
	"github.com/etnz/tradebook/importer"
	"github.com/etnz/tradebook/renderer"
	"github.com/google/subcommands"
	"go.uber.org/zap"
)

type importCmd struct {
	format  string
	user    string
	report  string
	timeout time.Duration
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import a broker export into the trade book" }
func (*importCmd) Usage() string {
	return `tbk import [-format <broker>] [-user <id>] [-report md|html|term] <file>

  Normalizes the executions of a broker export, resolves CUSIPs into
  tickers, and reconstructs round trip trades from the open positions of
  the book. Trades are upserted in the book file (see -book).

  Unresolved CUSIPs are queued for the background resolution (see 'tbk
  worker') and patched in the book once resolved.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.format, "format", "auto", "broker format of the export, auto to detect it")
	f.StringVar(&c.user, "user", "default", "user owning the trades")
	f.StringVar(&c.report, "report", "term", "report format: md, html or term")
	f.DurationVar(&c.timeout, "timeout", 0, "import timeout, the configured importTimeout if zero")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one export file is required.")
		return subcommands.ExitUsageError
	}
	format, err := tradebook.ParseFormat(c.format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	data, err := os.ReadFile(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	a, err := openApp(ctx, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	timeout := c.timeout
	if timeout <= 0 {
		timeout = a.cfg.ImportTimeout
	}
	jobs := importer.NewJobs(importer.New(
		importer.WithResolver(a.resolver),
		importer.WithLogger(a.log.Named("importer")),
	), timeout)

	id := jobs.Submit(ctx, data, importer.Options{
		Format:    format,
		UserID:    c.user,
		Location:  a.cfg.Location(),
		Positions: a.book.OpenPositions(c.user),
		Known:     a.book.Known(c.user),
	})
	defer jobs.Forget(id)
	job, err := jobs.Wait(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	// a timed out job still keeps the trades it reconstructed
	stored, err := a.book.Store(ctx, c.user, job.Result.Trades)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	a.log.Info("import done",
		zap.String("job", id),
		zap.String("broker", string(job.Result.Format)),
		zap.Int("trades", len(stored)),
		zap.Int("failures", len(job.Result.Failures)),
	)

	if err := printMarkdown(renderer.ImportMarkdown(&job.Result, job.Finished), c.report); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if job.Err != nil {
		var te *importer.TimeoutError
		if errors.As(job.Err, &te) {
			fmt.Fprintf(os.Stderr, "Warning: %v, partial trades were saved\n", job.Err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", job.Err)
		}
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

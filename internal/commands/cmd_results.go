package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/courier/internal/core/report"
	"github.com/hay-kot/courier/internal/printer"
)

type ResultsCmd struct {
	flags    *Flags
	identity string
	list     bool
	limit    int
	json     bool
}

// NewResultsCmd creates a new results command
func NewResultsCmd(flags *Flags) *ResultsCmd {
	return &ResultsCmd{flags: flags}
}

// Register adds the results command to the application
func (cmd *ResultsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "results",
		Usage:     "Show batch results",
		UsageText: "courier results [--user alice] [--list] [--json]",
		Description: `Shows the per-recipient results of the most recent batch, optionally
for a single account. Use --list to see a summary of past batches.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user",
				Usage:       "only consider batches sent by this account",
				Destination: &cmd.identity,
			},
			&cli.BoolFlag{
				Name:        "list",
				Aliases:     []string{"l"},
				Usage:       "list past batches instead of showing the latest",
				Destination: &cmd.list,
			},
			&cli.IntFlag{
				Name:        "limit",
				Usage:       "maximum number of batches to list",
				Value:       20,
				Destination: &cmd.limit,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print JSON",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ResultsCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.list {
		return cmd.runList(ctx, c)
	}

	rep, err := cmd.flags.Reports.Latest(ctx, cmd.identity)
	if errors.Is(err, report.ErrNotFound) {
		printer.Ctx(ctx).Infof("No results found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load results: %w", err)
	}

	if cmd.json {
		return writeJSON(c, rep)
	}

	p := printer.Ctx(ctx)
	p.Section(fmt.Sprintf("%s  %s", rep.Identity, rep.Timestamp.Local().Format("2006-01-02 15:04")))
	p.Printf("%s", rep.Message)
	p.Printf("")

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "USERNAME\tSTATUS")
	for _, item := range rep.Results {
		status := p.StatusOK()
		if !item.Success {
			status = p.StatusFailed(item.Error)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", item.Recipient, status)
	}
	_ = w.Flush()

	p.Printf("")
	p.Printf("Total: %d, successful: %d, failed: %d", rep.Total, rep.Successful, rep.Failed)
	return nil
}

func (cmd *ResultsCmd) runList(ctx context.Context, c *cli.Command) error {
	reports, err := cmd.flags.Reports.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	filtered := make([]report.Report, 0, len(reports))
	for _, r := range reports {
		if cmd.identity != "" && r.Identity != cmd.identity {
			continue
		}
		filtered = append(filtered, r)
		if cmd.limit > 0 && len(filtered) == cmd.limit {
			break
		}
	}

	if cmd.json {
		return writeJSON(c, filtered)
	}

	if len(filtered) == 0 {
		printer.Ctx(ctx).Infof("No results found")
		return nil
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BATCH\tTIME\tACCOUNT\tTOTAL\tOK\tFAILED")
	for _, r := range filtered {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			batchLabel(r), r.Timestamp.Local().Format("2006-01-02 15:04"), r.Identity, r.Total, r.Successful, r.Failed)
	}
	return w.Flush()
}

func batchLabel(r report.Report) string {
	if r.BatchID != "" {
		return r.BatchID
	}
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

func writeJSON(c *cli.Command, v any) error {
	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

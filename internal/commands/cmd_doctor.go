package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/courier/internal/commands/doctor"
	"github.com/hay-kot/courier/internal/core/config"
	"github.com/hay-kot/courier/internal/integration/bridge"
	"github.com/hay-kot/courier/internal/printer"
)

const backendTimeout = 5 * time.Second

type DoctorCmd struct {
	flags  *Flags
	format string
	fix    bool
}

func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your courier setup",
		UsageText:   "courier doctor [options]",
		Description: "Checks the configuration, the data directory, and that the messaging bridge and redis (when used) are reachable.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "fix",
				Usage:       "create a missing data directory and remove stale temp files",
				Destination: &cmd.fix,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	checks := []doctor.Check{
		doctor.NewConfigCheck(cmd.flags.Config, cmd.flags.ConfigPath),
		doctor.NewDataDirCheck(cmd.flags.DataDir, cmd.fix),
		doctor.NewBackendCheck(backendTimeout, cmd.backendTargets()...),
	}

	rep := doctor.RunAll(ctx, checks)

	if cmd.format == "json" {
		return writeJSON(c, struct {
			Healthy bool `json:"healthy"`
			doctor.Report
		}{rep.Healthy(), rep})
	}

	return cmd.outputText(ctx, rep)
}

func (cmd *DoctorCmd) backendTargets() []doctor.Target {
	cfg := cmd.flags.Config
	if cfg == nil {
		return nil
	}

	var targets []doctor.Target

	if cfg.Client.Kind == config.ClientBridge {
		client := bridge.New(bridge.Options{BaseURL: cfg.Client.BaseURL, Logger: zerolog.Nop()})
		targets = append(targets, doctor.Target{Label: "Bridge", Addr: cfg.Client.BaseURL, Ping: client.Ping})
	}

	if pinger, ok := cmd.flags.Reports.(interface{ Ping(context.Context) error }); ok {
		targets = append(targets, doctor.Target{Label: "Redis", Addr: cfg.Redis.Addr, Ping: pinger.Ping})
	}

	return targets
}

func (cmd *DoctorCmd) outputText(ctx context.Context, rep doctor.Report) error {
	p := printer.Ctx(ctx)

	for _, result := range rep.Results {
		p.Section(result.Name)

		for _, item := range result.Items {
			switch item.Status {
			case doctor.StatusPass:
				p.CheckItem(item.Label, item.Detail)
			case doctor.StatusWarn:
				p.WarnItem(item.Label, item.Detail)
			case doctor.StatusFail:
				p.FailItem(item.Label, item.Detail)
			}
		}

		p.Printf("")
	}

	p.Printf("Summary: %d passed, %d warnings, %d failed", rep.Passed, rep.Warned, rep.Failed)

	if rep.Fixable > 0 && !cmd.fix {
		p.Printf("Run 'courier doctor --fix' to resolve %d issue(s)", rep.Fixable)
	}

	if !rep.Healthy() {
		return cli.Exit("", 1)
	}

	return nil
}

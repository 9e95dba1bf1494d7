package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/courier/internal/core/config"
	"github.com/hay-kot/courier/internal/printer"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "courier config validate [options]",
				Description: "Validates the configuration file: field values, file paths, the client URL and the results backend.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	res := validationResult{
		Effective: effective(cfg),
		Warnings:  cfg.Warnings(),
	}

	err := cfg.ValidateDeep(cmd.flags.ConfigPath)
	res.Valid = err == nil
	for _, fe := range extractFieldErrors(err) {
		res.Errors = append(res.Errors, fieldError{Field: fe.Field, Message: fe.Err.Error()})
	}

	if cmd.format == "json" {
		return writeJSON(c, res)
	}

	return cmd.outputText(printer.Ctx(ctx), res)
}

type validationResult struct {
	Valid     bool                       `json:"valid"`
	Effective effectiveSettings          `json:"effective"`
	Errors    []fieldError               `json:"errors,omitempty"`
	Warnings  []config.ValidationWarning `json:"warnings,omitempty"`
}

type fieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type effectiveSettings struct {
	Client    string `json:"client"`
	Results   string `json:"results"`
	Usernames string `json:"usernames"`
	DataDir   string `json:"data_dir"`
}

// effective summarizes where courier will send, read and write.
func effective(cfg *config.Config) effectiveSettings {
	out := effectiveSettings{
		Client:    cfg.Client.Kind,
		Results:   cfg.Results.Backend + " " + cfg.ResultsPath(),
		Usernames: cfg.Files.Usernames,
		DataDir:   cfg.DataDir,
	}
	if cfg.Client.Kind == config.ClientBridge {
		out.Client += " " + cfg.Client.BaseURL
	}
	if cfg.Results.Backend == config.ResultsRedis {
		out.Results = fmt.Sprintf("%s %s/%d key=%s", cfg.Results.Backend, cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Key)
	}
	return out
}

func extractFieldErrors(err error) criterio.FieldErrors {
	if err == nil {
		return nil
	}
	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs
	}
	return criterio.FieldErrors{{Err: err}}
}

func (cmd *ConfigValidateCmd) outputText(p *printer.Printer, res validationResult) error {
	p.Section("Effective")
	p.CheckItem("client", res.Effective.Client)
	p.CheckItem("results", res.Effective.Results)
	p.CheckItem("usernames", res.Effective.Usernames)
	p.CheckItem("data dir", res.Effective.DataDir)
	p.Printf("")

	if len(res.Errors) > 0 {
		p.Section("Errors")
		for _, fe := range res.Errors {
			p.FailItem(firstNonEmpty(fe.Field, "config"), fe.Message)
		}
		p.Printf("")
	}

	if len(res.Warnings) > 0 {
		p.Section("Warnings")
		for _, w := range res.Warnings {
			label := w.Category
			if w.Item != "" {
				label += "." + w.Item
			}
			p.WarnItem(label, w.Message)
		}
		p.Printf("")
	}

	if !res.Valid {
		p.Errorf("%d error(s), %d warning(s)", len(res.Errors), len(res.Warnings))
		return cli.Exit("", 1)
	}

	if len(res.Warnings) > 0 {
		p.Successf("Configuration is valid (%d warning(s))", len(res.Warnings))
	} else {
		p.Successf("Configuration is valid")
	}
	return nil
}

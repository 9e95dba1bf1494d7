package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/courier/internal/core/recipients"
	"github.com/hay-kot/courier/internal/printer"
)

type RecipientsCmd struct {
	flags   *Flags
	pattern string
}

// NewRecipientsCmd creates a new recipients command
func NewRecipientsCmd(flags *Flags) *RecipientsCmd {
	return &RecipientsCmd{flags: flags}
}

// Register adds the recipients command to the application
func (cmd *RecipientsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "recipients",
		Usage: "Recipient list commands",
		Commands: []*cli.Command{
			{
				Name:        "check",
				Usage:       "Parse recipient files and report invalid handles",
				UsageText:   "courier recipients check [-f pattern]",
				Description: "Loads the recipient files, counts unique handles and lists any that the platform would reject.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "usernames",
						Aliases:     []string{"f"},
						Usage:       "recipients file or pattern (overrides files.usernames)",
						Destination: &cmd.pattern,
					},
				},
				Action: cmd.runCheck,
			},
		},
	})

	return app
}

func (cmd *RecipientsCmd) runCheck(ctx context.Context, _ *cli.Command) error {
	p := printer.Ctx(ctx)

	pattern := firstNonEmpty(cmd.pattern, cmd.flags.Config.Files.Usernames)

	handles, err := recipients.LoadFiles(pattern)
	if err != nil {
		return err
	}

	var invalid int
	for _, h := range handles {
		if err := recipients.Validate(h); err != nil {
			p.FailItem(h, err.Error())
			invalid++
		}
	}

	if invalid > 0 {
		p.Printf("")
		p.Errorf("%d of %d handle(s) invalid in %s", invalid, len(handles), pattern)
		return cli.Exit("", 1)
	}

	p.Successf("%d recipient(s) in %s", len(handles), pattern)
	return nil
}

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/courier/internal/core/config"
	"github.com/hay-kot/courier/internal/core/messaging"
	"github.com/hay-kot/courier/internal/core/recipients"
	"github.com/hay-kot/courier/internal/core/report"
	"github.com/hay-kot/courier/internal/courier"
	"github.com/hay-kot/courier/internal/printer"
	"github.com/hay-kot/courier/pkg/randid"
	"github.com/hay-kot/courier/pkg/tmpl"
)

// SendOutput is the JSON output schema for `courier send --json`.
type SendOutput struct {
	BatchID    string        `json:"batch_id"`
	LogFile    string        `json:"log_file"`
	OutputFile string        `json:"output_file,omitempty"`
	Report     report.Report `json:"report"`
}

// outputData is available to the --output template.
type outputData struct {
	Identity string
	BatchID  string
	// Date is the batch date as YYYY-MM-DD.
	Date string
	Time time.Time
}

type SendCmd struct {
	flags *Flags

	username  string
	password  string
	message   string
	usernames string
	output    string
	delayMin  time.Duration
	delayMax  time.Duration
	yes       bool
	dryRun    bool
	json      bool

	// stdin is read when usernames is "-"
	stdin io.Reader
}

// NewSendCmd creates a new send command
func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags, stdin: os.Stdin}
}

// Register adds the send command to the application
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "send",
		Usage: "Log in and send a message to a list of recipients",
		UsageText: `courier send [options]

Send the configured message to everyone in usernames.txt:
  courier send

Read recipients from stdin without prompting:
  cat list.txt | courier send -f - -m "hello" --yes

Rehearse without contacting the platform:
  courier send --dry-run`,
		Description: `Logs in with the configured account, then sends the message to each
recipient in order, pausing a random delay between sends.

Recipients are read from files.usernames (a path or a pattern such as
"lists/**/*.txt"), one handle per line. Blank lines and lines starting with
'#' are ignored and duplicates are sent once.

When no password is configured and stdin is a terminal, you are prompted
for one. Pressing Ctrl-C stops the batch; recipients not yet reached are
recorded as cancelled.

The report is saved to the results history. --output also writes it to a
path template, for example:
  --output "reports/{{ .Identity }}-{{ .Date }}-{{ .BatchID }}.json"`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u"},
				Usage:       "account to send from (overrides account.username)",
				Sources:     cli.EnvVars("COURIER_USERNAME"),
				Destination: &cmd.username,
			},
			&cli.StringFlag{
				Name:        "password",
				Usage:       "account password (prompted when missing)",
				Sources:     cli.EnvVars("COURIER_PASSWORD"),
				Destination: &cmd.password,
			},
			&cli.StringFlag{
				Name:        "message",
				Aliases:     []string{"m"},
				Usage:       "message text (overrides message.text)",
				Destination: &cmd.message,
			},
			&cli.StringFlag{
				Name:        "usernames",
				Aliases:     []string{"f"},
				Usage:       "recipients file or pattern, or - for stdin (overrides files.usernames)",
				Destination: &cmd.usernames,
			},
			&cli.DurationFlag{
				Name:        "delay-min",
				Usage:       "minimum pause between sends (overrides message.delay_min)",
				Destination: &cmd.delayMin,
			},
			&cli.DurationFlag{
				Name:        "delay-max",
				Usage:       "maximum pause between sends (overrides message.delay_max)",
				Destination: &cmd.delayMax,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "also write the report to this path template",
				Destination: &cmd.output,
			},
			&cli.BoolFlag{
				Name:        "yes",
				Aliases:     []string{"y"},
				Usage:       "skip the confirmation prompt",
				Destination: &cmd.yes,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "resolve and record sends without contacting the platform",
				Destination: &cmd.dryRun,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the result as JSON",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	cfg := cmd.flags.Config

	identity := firstNonEmpty(cmd.username, cfg.Account.Username)
	if identity == "" {
		return fmt.Errorf("no account: set account.username or pass --username")
	}

	message := firstNonEmpty(cmd.message, cfg.Message.Text)

	delay := messaging.DelayRange{Min: cfg.Message.DelayMin, Max: cfg.Message.DelayMax}
	if c.IsSet("delay-min") {
		delay.Min = cmd.delayMin
	}
	if c.IsSet("delay-max") {
		delay.Max = cmd.delayMax
	}

	if cmd.output != "" {
		if err := tmpl.Validate(cmd.output); err != nil {
			return fmt.Errorf("invalid --output: %w", err)
		}
	}

	handles, err := cmd.loadRecipients(cfg)
	if err != nil {
		return err
	}

	req := courier.SendRequest{
		Recipients: handles,
		Message:    message,
		Delay:      delay,
		BatchID:    randid.Generate(6),
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	kind := cfg.Client.Kind
	if cmd.dryRun {
		kind = config.ClientDryRun
	}

	secret, err := cmd.secret(identity, kind)
	if err != nil {
		return err
	}

	if !cmd.json {
		printPlan(p, identity, req, kind)
	}

	if !cmd.yes {
		ok, err := confirm(len(handles))
		if err != nil {
			return err
		}
		if !ok {
			p.Infof("Cancelled")
			return nil
		}
	}

	logger, logFile, logPath, err := setupBatchLogger(cfg.LogsDir(), req.BatchID)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	svc, err := cmd.flags.newService(kind, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := svc.Login(ctx, identity, secret)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := loginError(res.Outcome); err != nil {
		return err
	}
	defer svc.Logout(res.Token)

	if !cmd.json {
		p.Successf("Logged in as %s", identity)
	}

	rep, err := svc.SendBatch(ctx, res.Token, req)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	var outputFile string
	if cmd.output != "" {
		outputFile, err = writeReportFile(cmd.output, rep)
		if err != nil {
			return err
		}
	}

	if cmd.json {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(SendOutput{
			BatchID:    req.BatchID,
			LogFile:    logPath,
			OutputFile: outputFile,
			Report:     rep,
		}); err != nil {
			return fmt.Errorf("write JSON output: %w", err)
		}
	} else {
		printReport(p, rep)
		p.Infof("Log: %s", logPath)
		if outputFile != "" {
			p.Infof("Report: %s", outputFile)
		}
	}

	if rep.Total > 0 && rep.Successful == 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *SendCmd) loadRecipients(cfg *config.Config) ([]string, error) {
	pattern := firstNonEmpty(cmd.usernames, cfg.Files.Usernames)

	if pattern != "-" {
		return recipients.LoadFiles(pattern)
	}

	if f, ok := cmd.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return nil, fmt.Errorf("no input provided (stdin is a terminal); pipe a list of usernames or use a file")
	}

	return recipients.Parse(cmd.stdin)
}

// secret returns the password, prompting on a terminal when none is
// configured. The dry-run client needs none.
func (cmd *SendCmd) secret(identity, kind string) (string, error) {
	if kind == config.ClientDryRun {
		return firstNonEmpty(cmd.password, cmd.flags.Config.Account.Password, "dry-run"), nil
	}

	if secret := firstNonEmpty(cmd.password, cmd.flags.Config.Account.Password); secret != "" {
		return secret, nil
	}

	if !stdinIsTerminal() {
		return "", fmt.Errorf("no password: set COURIER_PASSWORD or run interactively")
	}

	var secret string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(fmt.Sprintf("Password for %s", identity)).
			EchoMode(huh.EchoModePassword).
			Validate(func(s string) error {
				if s == "" {
					return errors.New("password is required")
				}
				return nil
			}).
			Value(&secret),
	))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("password prompt: %w", err)
	}
	return secret, nil
}

func confirm(count int) (bool, error) {
	if !stdinIsTerminal() {
		return false, fmt.Errorf("confirmation required; pass --yes to send non-interactively")
	}

	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Send to %d recipient(s)?", count)).
			Affirmative("Send").
			Negative("Cancel").
			Value(&ok),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirm prompt: %w", err)
	}
	return ok, nil
}

func loginError(out messaging.LoginOutcome) error {
	switch out.Status {
	case messaging.LoginSuccess:
		return nil
	case messaging.LoginChallengeRequired:
		msg := "login requires verification"
		if ch := out.Challenge; ch != nil {
			msg += " (" + ch.Kind + ")"
			if ch.Detail != "" {
				msg += ": " + ch.Detail
			}
			if ch.URL != "" {
				msg += "; complete it at " + ch.URL
			}
		}
		return errors.New(msg)
	default:
		return fmt.Errorf("login failed: %s", out.Reason)
	}
}

func printPlan(p *printer.Printer, identity string, req courier.SendRequest, kind string) {
	p.Section("Batch " + req.BatchID)
	p.Infof("Account:    %s", identity)
	p.Infof("Recipients: %d", len(req.Recipients))
	p.Infof("Delay:      %s to %s", req.Delay.Min, req.Delay.Max)
	if n := len(req.Recipients); n > 1 {
		avg := (req.Delay.Min + req.Delay.Max) / 2
		p.Infof("Estimated:  %s", (time.Duration(n-1) * avg).Round(time.Second))
	}
	p.Printf("")
	p.Printf("%s", req.Message)
	p.Printf("")
	if kind == config.ClientDryRun {
		p.Warnf("Dry run: nothing will be delivered")
	}
}

func printReport(p *printer.Printer, rep report.Report) {
	p.Printf("")
	if rep.Failed == 0 {
		p.Successf("Sent %d/%d", rep.Successful, rep.Total)
		return
	}

	p.Warnf("Sent %d/%d, %d failed", rep.Successful, rep.Total, rep.Failed)
	for _, item := range rep.FailedResults() {
		p.FailItem(item.Recipient, item.Error)
	}
}

func writeReportFile(pathTmpl string, rep report.Report) (string, error) {
	path, err := tmpl.Render(pathTmpl, outputData{
		Identity: rep.Identity,
		BatchID:  rep.BatchID,
		Date:     rep.Timestamp.Format("2006-01-02"),
		Time:     rep.Timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("render output path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func setupBatchLogger(logsDir, batchID string) (zerolog.Logger, *os.File, string, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return zerolog.Logger{}, nil, "", fmt.Errorf("create logs dir: %w", err)
	}

	logPath := filepath.Join(logsDir, fmt.Sprintf("batch-%s.log", batchID))
	file, err := os.Create(logPath)
	if err != nil {
		return zerolog.Logger{}, nil, "", fmt.Errorf("create log file: %w", err)
	}

	logger := zerolog.New(file).With().Timestamp().Logger()
	return logger, file, logPath, nil
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

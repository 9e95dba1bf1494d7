package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/courier/internal/api"
	"github.com/hay-kot/courier/internal/core/config"
	"github.com/hay-kot/courier/internal/core/messaging"
	"github.com/hay-kot/courier/internal/printer"
)

type ServeCmd struct {
	flags *Flags
	addr  string
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the HTTP API",
		UsageText: "courier serve [--addr :8000]",
		Description: `Serves the REST API under /api. Each successful POST /api/login creates a
session whose token is returned in the session_id cookie and in the response
body. Private routes accept the cookie or an X-Session-ID header.

Sessions expire a fixed time after creation (server.session_ttl). Expired
sessions are swept every server.sweep_interval.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (overrides server.addr)",
				Sources:     cli.EnvVars("COURIER_ADDR"),
				Destination: &cmd.addr,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	logger := log.Logger

	svc, err := cmd.flags.newService(cfg.Client.Kind, logger)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if cmd.addr != "" {
		addr = cmd.addr
	}

	if cmd.flags.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go svc.Sessions().RunSweeper(ctx, cfg.Server.SweepInterval)

	router := api.NewRouter(svc, api.Options{
		CookieName:   cfg.Server.CookieName,
		SecureCookie: cfg.Server.SecureCookie,
		SessionTTL:   svc.Sessions().TTL(),
		UploadPath:   cfg.UploadPath(),
		DefaultDelay: messaging.DelayRange{Min: cfg.Message.DelayMin, Max: cfg.Message.DelayMax},
		Logger:       logger,
	})

	if cfg.Client.Kind != config.ClientBridge {
		printer.Ctx(ctx).Warnf("using %s client; no messages will be delivered", cfg.Client.Kind)
	}

	server := api.NewServer(addr, router, logger.With().Str("component", "server").Logger())
	return server.Run(ctx)
}

package commands

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hay-kot/courier/internal/core/config"
	"github.com/hay-kot/courier/internal/core/messaging"
	"github.com/hay-kot/courier/internal/core/report"
	"github.com/hay-kot/courier/internal/core/session"
	"github.com/hay-kot/courier/internal/courier"
	"github.com/hay-kot/courier/internal/integration/bridge"
	"github.com/hay-kot/courier/internal/integration/dryrun"
	"github.com/hay-kot/courier/internal/store/jsonfile"
	"github.com/hay-kot/courier/internal/store/redisstore"
)

// OpenStores builds the report and settings stores for cfg. The returned redis
// client is nil unless results.backend is redis.
func OpenStores(cfg *config.Config) (report.Store, *jsonfile.SettingsStore, *redis.Client, error) {
	settingsStore := jsonfile.NewSettingsStore(cfg.SettingsFile())

	switch cfg.Results.Backend {
	case config.ResultsFile:
		return jsonfile.NewReportStore(cfg.ResultsPath(), cfg.Results.MaxEntries), settingsStore, nil, nil
	case config.ResultsRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisstore.NewReportStore(client, cfg.Redis.Key, cfg.Results.MaxEntries), settingsStore, client, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown results backend %q", cfg.Results.Backend)
	}
}

// newService builds a courier service whose sessions talk through the client
// named by kind. Every session gets its own client instance.
func (f *Flags) newService(kind string, log zerolog.Logger) (*courier.Service, error) {
	newClient, err := f.clientFactory(kind, log)
	if err != nil {
		return nil, err
	}

	runnerLog := log.With().Str("component", "runner").Logger()
	registry := session.NewRegistry(
		func(identity string) *messaging.Runner {
			return messaging.NewRunner(identity, newClient(), messaging.WithLogger(runnerLog))
		},
		session.WithTTL(f.Config.Server.SessionTTL),
		session.WithLogger(log.With().Str("component", "sessions").Logger()),
	)

	return courier.New(registry, f.Reports, log.With().Str("component", "courier").Logger()), nil
}

func (f *Flags) clientFactory(kind string, log zerolog.Logger) (func() messaging.Client, error) {
	switch kind {
	case config.ClientDryRun:
		clientLog := log.With().Str("component", "dryrun").Logger()
		return func() messaging.Client { return dryrun.New(clientLog) }, nil
	case config.ClientBridge:
		var (
			clientLog  = log.With().Str("component", "bridge").Logger()
			httpClient = &http.Client{}
		)
		return func() messaging.Client {
			return bridge.New(bridge.Options{
				BaseURL:    f.Config.Client.BaseURL,
				HTTPClient: httpClient,
				Timeout:    f.Config.Client.Timeout,
				Settings:   f.Settings,
				Logger:     clientLog,
			})
		}, nil
	default:
		return nil, fmt.Errorf("unknown client %q", kind)
	}
}

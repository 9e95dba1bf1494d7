package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration.
// Unlike Validate(), this checks file access, the client URL and the
// results backend settings.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	if err := c.Validate(); err != nil {
		var fieldErrs criterio.FieldErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = errs.Append(fe.Field, fe.Err)
			}
		} else {
			errs = errs.Append("", err)
		}
	}

	errs = c.validateFileAccess(errs, configPath)
	errs = c.validateClient(errs)
	errs = c.validateResults(errs)

	return errs.ToError()
}

func (c *Config) validateFileAccess(errs criterio.FieldErrorsBuilder, configPath string) criterio.FieldErrorsBuilder {
	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			errs = errs.Append("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
		} else if err != nil && !os.IsNotExist(err) {
			errs = errs.Append("config_file", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	if c.DataDir != "" {
		if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
			errs = errs.Append("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))
		} else if err != nil && !os.IsNotExist(err) {
			errs = errs.Append("data_dir", fmt.Errorf("cannot access %s: %w", c.DataDir, err))
		}
	}

	if info, err := os.Stat(c.ResultsPath()); err == nil && info.IsDir() {
		errs = errs.Append("files.results_file", fmt.Errorf("%s is a directory, not a file", c.ResultsPath()))
	}

	return errs
}

func (c *Config) validateClient(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	if c.Client.Kind != ClientBridge {
		return errs
	}

	u, err := url.Parse(c.Client.BaseURL)
	if err != nil {
		return errs.Append("client.base_url", fmt.Errorf("invalid URL: %w", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		errs = errs.Append("client.base_url", fmt.Errorf("scheme must be http or https, got %q", u.Scheme))
	}
	if u.Host == "" {
		errs = errs.Append("client.base_url", fmt.Errorf("missing host"))
	}
	if c.Client.Timeout < 0 {
		errs = errs.Append("client.timeout", fmt.Errorf("cannot be negative"))
	}
	return errs
}

func (c *Config) validateResults(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	if c.Results.Backend != ResultsRedis {
		return errs
	}
	if !strings.Contains(c.Redis.Addr, ":") {
		errs = errs.Append("redis.addr", fmt.Errorf("expected host:port, got %q", c.Redis.Addr))
	}
	if c.Redis.DB < 0 {
		errs = errs.Append("redis.db", fmt.Errorf("cannot be negative"))
	}
	return errs
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Account.Password != "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Account",
			Item:     "password",
			Message:  "password is stored in plain text; prefer COURIER_PASSWORD or the interactive prompt",
		})
	}

	if strings.TrimSpace(c.Message.Text) == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Message",
			Item:     "text",
			Message:  "no default message; `courier send` will require --message",
		})
	}

	if c.Message.DelayMax == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Message",
			Item:     "delay_max",
			Message:  "messages will be sent without any delay between them",
		})
	}

	if matches, err := doublestar.FilepathGlob(c.Files.Usernames, doublestar.WithFilesOnly()); err == nil && len(matches) == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Files",
			Item:     "usernames",
			Message:  fmt.Sprintf("no files match %q", c.Files.Usernames),
		})
	}

	if c.Client.Kind == ClientDryRun {
		warnings = append(warnings, ValidationWarning{
			Category: "Client",
			Item:     "kind",
			Message:  "dry-run client is configured; no messages will be delivered",
		})
	}

	return warnings
}

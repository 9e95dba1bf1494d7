package doctor

import (
	"context"
	"errors"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/courier/internal/core/config"
)

// ConfigCheck runs deep validation and surfaces what courier will talk to.
type ConfigCheck struct {
	cfg  *config.Config
	path string
}

// NewConfigCheck creates a new configuration check.
func NewConfigCheck(cfg *config.Config, path string) *ConfigCheck {
	return &ConfigCheck{cfg: cfg, path: path}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.cfg == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Config loaded",
			Status: StatusFail,
			Detail: "configuration not loaded",
		})
		return result
	}

	if err := c.cfg.ValidateDeep(c.path); err != nil {
		result.Items = append(result.Items, validationItems(err)...)
	} else {
		result.Items = append(result.Items,
			CheckItem{Label: "Config valid", Status: StatusPass, Detail: c.path},
			CheckItem{Label: "Client", Status: StatusPass, Detail: clientDetail(c.cfg)},
			CheckItem{Label: "Results", Status: StatusPass, Detail: c.cfg.Results.Backend},
		)
	}

	for _, w := range c.cfg.Warnings() {
		label := w.Category
		if w.Item != "" {
			label += " (" + w.Item + ")"
		}
		result.Items = append(result.Items, CheckItem{Label: label, Status: StatusWarn, Detail: w.Message})
	}

	return result
}

func clientDetail(cfg *config.Config) string {
	if cfg.Client.Kind == config.ClientBridge {
		return cfg.Client.Kind + " " + cfg.Client.BaseURL
	}
	return cfg.Client.Kind
}

func validationItems(err error) []CheckItem {
	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		return []CheckItem{{Label: "validation", Status: StatusFail, Detail: err.Error()}}
	}

	items := make([]CheckItem, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		label := fe.Field
		if label == "" {
			label = "validation"
		}
		items = append(items, CheckItem{Label: label, Status: StatusFail, Detail: fe.Err.Error()})
	}
	return items
}

package courier

import (
	"fmt"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/courier/internal/core/messaging"
	"github.com/hay-kot/courier/internal/core/recipients"
)

// SendRequest is one batch send.
type SendRequest struct {
	Recipients []string
	Message    string
	Delay      messaging.DelayRange
	// BatchID tags logs and the report. Generated when empty.
	BatchID string
}

// Validate checks the request for errors using criterio.
func (r SendRequest) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if len(r.Recipients) == 0 {
		errs = errs.Append("usernames", fmt.Errorf("list cannot be empty"))
	}
	for i, handle := range r.Recipients {
		if err := recipients.Validate(handle); err != nil {
			errs = errs.Append(fmt.Sprintf("usernames[%d]", i), err)
		}
	}

	if strings.TrimSpace(r.Message) == "" {
		errs = errs.Append("message", fmt.Errorf("cannot be empty"))
	}

	if err := r.Delay.Validate(); err != nil {
		errs = errs.Append("delay_range", err)
	}

	return errs.ToError()
}

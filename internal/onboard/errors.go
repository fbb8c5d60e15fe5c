package onboard

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/Fusionaimcp4/localboxs/internal/helpdesk"
	"github.com/Fusionaimcp4/localboxs/internal/merge"
	"github.com/Fusionaimcp4/localboxs/internal/scrape"
)

// ValidationError is a rejected request. Message is shown to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StepError is a failed required step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("onboard step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StatusFor maps an Onboard error to the HTTP status and message returned
// to the caller.
func StatusFor(err error) (int, string) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, validationErr.Message
	}

	if errors.Is(err, merge.ErrTemplateNotFound) {
		return http.StatusInternalServerError, "Skeleton template not found"
	}

	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Step == StepFetch {
		if scrape.Classify(err) == scrape.KindTimeout {
			return http.StatusRequestTimeout, "Website took too long to respond"
		}
		return http.StatusBadRequest, "Website not accessible: " + stepErr.Err.Error()
	}

	if errors.Is(err, fs.ErrPermission) {
		return http.StatusInternalServerError, "File permission denied. Check DEMO_ROOT permissions."
	}

	var helpdeskErr *helpdesk.Error
	if errors.As(err, &helpdeskErr) {
		return http.StatusBadGateway, "Chatwoot inbox create failed"
	}

	return http.StatusInternalServerError, "Internal server error"
}

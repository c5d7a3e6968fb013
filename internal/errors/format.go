package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal output.
// Errors without a GraphIndexError in their chain are reported as internal.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ge, ok := As(err)
	if !ok {
		ge = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", ge.Message))
	if ge.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ge.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ge.Code))
	return sb.String()
}

type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error for --json output.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ge, ok := As(err)
	if !ok {
		ge = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       ge.Code,
		Message:    ge.Message,
		Category:   string(ge.Category),
		Severity:   string(ge.Severity),
		Details:    ge.Details,
		Suggestion: ge.Suggestion,
		Retryable:  ge.Retryable,
	}
	if ge.Cause != nil {
		je.Cause = ge.Cause.Error()
	}
	return json.Marshal(je)
}

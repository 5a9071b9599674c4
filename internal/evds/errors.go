package evds

import (
	"errors"
	"fmt"

	"github.com/aristath/macrolens/internal/domain"
)

// Kind classifies operation failures.
type Kind string

const (
	// KindConfiguration means the client cannot run (missing credential). Not retryable.
	KindConfiguration Kind = "configuration"
	// KindTransport covers timeouts, connection or TLS failures and non-2xx responses.
	KindTransport Kind = "transport"
	// KindSchema covers bodies that are not the expected JSON shape.
	KindSchema Kind = "schema"
)

// ErrMissingCredential is wrapped by configuration errors.
var ErrMissingCredential = errors.New("TCMB API key is missing")

// Error is returned, together with an empty table, when an operation fails.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Notice kinds shown to users.
const (
	NoticeMissingCredential = "missing_credential"
	NoticeFetchFailed       = "fetch_failed"
	NoticeNoData            = "no_data"
)

// Notice is the user-facing message for an operation result.
type Notice struct {
	Level   string `json:"level"` // "error" or "warning"
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NoticeFor describes the outcome of an operation, telling apart a missing credential,
// a failed fetch and an empty range. A non-empty successful result has no notice.
func NoticeFor(table *domain.Table, err error) *Notice {
	if err != nil {
		if KindOf(err) == KindConfiguration {
			return &Notice{
				Level:   "error",
				Kind:    NoticeMissingCredential,
				Message: "TCMB API key is missing. Please set TCMB_API_KEY in the environment or .env file.",
			}
		}
		return &Notice{
			Level:   "error",
			Kind:    NoticeFetchFailed,
			Message: fmt.Sprintf("Error fetching data from TCMB: %v", err),
		}
	}
	if table.IsEmpty() {
		return &Notice{
			Level:   "warning",
			Kind:    NoticeNoData,
			Message: "No data found for the selected date range.",
		}
	}
	return nil
}

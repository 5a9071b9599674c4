package transport

import "fmt"

// Kind classifies transport failures.
type Kind string

const (
	KindNetwork Kind = "network"
	KindTimeout Kind = "timeout"
	KindStatus  Kind = "status"
)

// Error is returned for every failed fetch.
type Error struct {
	Kind       Kind
	StatusCode int // set for KindStatus
	URL        string
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("transport %s: HTTP %d", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

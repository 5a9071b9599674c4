package cache

import (
	"strings"
	"time"

	"github.com/aristath/macrolens/internal/domain"
)

// Key identifies a cached result by the operation and every input that affects it.
// It never includes the identity of the client that produced the result.
type Key struct {
	Operation string
	Start     time.Time
	End       time.Time
	Params    []string
}

// String renders the key deterministically, e.g.
// "exchange_rates|01-01-2024|31-01-2024|USD,EUR".
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Operation)
	b.WriteByte('|')
	if !k.Start.IsZero() {
		b.WriteString(domain.FormatWireDate(k.Start))
	}
	b.WriteByte('|')
	if !k.End.IsZero() {
		b.WriteString(domain.FormatWireDate(k.End))
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(k.Params, ","))
	return b.String()
}

// Package cache persists validated mapping documents so the expensive
// oracle-driven generation runs once per form template and the result is
// reused at zero marginal cost.
package cache

import (
	"context"
	"errors"

	"github.com/taxpilot/fieldmap/internal/mapping"
)

// ErrNotFound indicates no document is cached for a (form type, version) key.
var ErrNotFound = errors.New("mapping document not found")

// Store is the mapping cache: read-heavy, write-rarely, keyed by
// (form type, form version). Put overwrites wholesale; there are no
// partial-patch semantics.
type Store interface {
	Get(ctx context.Context, formType, formVersion string) (*mapping.Document, error)
	Put(ctx context.Context, doc *mapping.Document) error
	List(ctx context.Context) ([]*mapping.Document, error)
	Close() error
}

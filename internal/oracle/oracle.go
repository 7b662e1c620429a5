// Package oracle wraps the reasoning model used to propose semantic names
// for opaque form fields. The client is stateless: one request in, one
// best-effort-parsed mapping fragment out.
package oracle

import (
	"context"
	"errors"

	"github.com/taxpilot/fieldmap/internal/inventory"
)

// ErrRateLimitExhausted indicates that the oracle kept throttling past the
// retry budget. Callers treat it as "this call produced no new mappings",
// never as a fatal condition.
var ErrRateLimitExhausted = errors.New("oracle rate limit exhausted")

// Fragment is one oracle response: semantic names grouped by section, each
// pointing at a field path from the submitted inventory.
type Fragment map[string]map[string]string

// Size returns the number of mapping entries across all sections.
func (f Fragment) Size() int {
	n := 0
	for _, section := range f {
		n += len(section)
	}
	return n
}

// Conventions carries vocabulary established by earlier calls so later
// fragments stay consistent with it.
type Conventions struct {
	Sections      []string
	SemanticNames []string
}

// Request is a single structured-reasoning request.
type Request struct {
	FormType    string
	FormVersion string
	Fields      []inventory.FieldDescriptor
	Conventions Conventions

	// GapFill marks a follow-up call that must map only the given fields.
	GapFill bool
}

// Client issues one reasoning request and returns the parsed fragment.
type Client interface {
	Propose(ctx context.Context, req Request) (Fragment, error)
}

package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taxpilot/fieldmap/internal/inventory"
	"github.com/taxpilot/fieldmap/internal/oracle"
)

// ErrOracleUnavailable indicates that every oracle call of a run failed.
// The best-effort document is still persisted and returned alongside it.
var ErrOracleUnavailable = errors.New("oracle unavailable for entire mapping run")

// Default agent tuning. A 141-field form typically reaches ~30% coverage in
// the initial pass and converges past the threshold within 4-5 gap rounds.
const (
	DefaultCoverageThreshold = 0.90
	DefaultBatchSize         = 30
	DefaultMaxRounds         = 5
)

// Store is the slice of the mapping cache the agent needs: wholesale
// persistence of a finished document under its (form type, version) key.
type Store interface {
	Put(ctx context.Context, doc *Document) error
}

// AgentConfig tunes a mapping run.
type AgentConfig struct {
	// CoverageThreshold is the validated-coverage bar (fraction of inventory).
	CoverageThreshold float64
	// BatchSize bounds the fields per gap-filling oracle call.
	BatchSize int
	// MaxRounds caps the gap-filling iterations.
	MaxRounds int
}

func (c AgentConfig) withDefaults() AgentConfig {
	if c.CoverageThreshold <= 0 {
		c.CoverageThreshold = DefaultCoverageThreshold
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	return c
}

// Agent drives the mapping phases for one form template at a time:
// initial mapping, gap analysis, iterative gap filling, validation.
type Agent struct {
	oracle oracle.Client
	store  Store
	cfg    AgentConfig
	logger *zap.Logger
}

// NewAgent creates a mapping agent.
func NewAgent(client oracle.Client, store Store, cfg AgentConfig, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{oracle: client, store: store, cfg: cfg.withDefaults(), logger: logger}
}

// Generate runs the full pipeline for one inventory and persists the result.
//
// Oracle failures are absorbed per call (that call contributes no entries);
// only context cancellation aborts the run. If every call fails, the
// best-effort document is persisted unvalidated and returned together with
// ErrOracleUnavailable.
func (a *Agent) Generate(ctx context.Context, inv *inventory.Inventory) (*Document, error) {
	if inv == nil || len(inv.Fields) == 0 {
		return nil, fmt.Errorf("%s: %w", "empty inventory", inventory.ErrExtraction)
	}

	runID := uuid.NewString()
	log := a.logger.With(
		zap.String("run_id", runID),
		zap.String("form_type", inv.FormType),
		zap.String("form_version", inv.FormVersion),
	)
	inventorySet := inv.PathSet()

	doc := NewDocument(inv.FormType, inv.FormVersion)
	doc.RunID = runID

	calls, failures := 0, 0

	// Phase 1: the full inventory in one pass establishes the naming and
	// section conventions every later call is held to.
	log.Info("mapping run started", zap.Int("fields", len(inv.Fields)))
	frag, err := a.propose(ctx, oracle.Request{
		FormType:    inv.FormType,
		FormVersion: inv.FormVersion,
		Fields:      inv.Fields,
	}, log)
	calls++
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		failures++
	} else {
		added, report := merge(doc, frag, inventorySet)
		logMergeReport(log, report)
		doc.recomputeCoverage(len(inventorySet))
		log.Info("initial mapping complete",
			zap.Int("mapped", added), zap.Float64("coverage", doc.Coverage))
	}

	// Phases 2+3: gap analysis and batched gap filling until the threshold,
	// the round cap, or stagnation.
	for round := 1; round <= a.cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gaps := gapSet(inv, doc)
		if len(gaps) == 0 || doc.Coverage >= a.cfg.CoverageThreshold {
			break
		}

		doc.IterationsUsed = round
		addedThisRound := 0
		roundCalls, roundFailures := 0, 0
		for start := 0; start < len(gaps); start += a.cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			end := min(start+a.cfg.BatchSize, len(gaps))
			frag, err := a.propose(ctx, oracle.Request{
				FormType:    inv.FormType,
				FormVersion: inv.FormVersion,
				Fields:      gaps[start:end],
				GapFill:     true,
				Conventions: oracle.Conventions{
					Sections:      doc.SectionNames(),
					SemanticNames: doc.SemanticNames(),
				},
			}, log)
			calls++
			roundCalls++
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				failures++
				roundFailures++
				continue
			}
			added, report := merge(doc, frag, inventorySet)
			logMergeReport(log, report)
			addedThisRound += added
		}

		doc.recomputeCoverage(len(inventorySet))
		log.Info("gap-filling round complete",
			zap.Int("round", round),
			zap.Int("added", addedThisRound),
			zap.Int("remaining", len(gapSet(inv, doc))),
			zap.Float64("coverage", doc.Coverage))

		if doc.Coverage >= a.cfg.CoverageThreshold {
			break
		}
		// A round where the oracle answered and still mapped nothing new is
		// stagnation. A fully-failed round is not: the next round retries the
		// same gaps.
		if addedThisRound == 0 && roundFailures < roundCalls {
			log.Warn("gap filling stagnated, stopping early", zap.Int("round", round))
			break
		}
	}

	// Phase 4: validation and persistence. The filter also runs when the run
	// fell short so a best-effort document is never persisted with
	// hallucinated or duplicate paths.
	report := Revalidate(doc, inventorySet, a.cfg.CoverageThreshold)
	logMergeReport(log, report)
	doc.GeneratedAt = time.Now().UTC()

	if err := a.store.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to persist mapping document: %w", err)
	}

	log.Info("mapping run finished",
		zap.Float64("coverage", doc.Coverage),
		zap.Bool("validated", doc.Validated),
		zap.Int("iterations", doc.IterationsUsed),
		zap.Int("oracle_calls", calls),
		zap.Int("oracle_failures", failures))

	if failures == calls {
		return doc, fmt.Errorf("%s %s: %w", inv.FormType, inv.FormVersion, ErrOracleUnavailable)
	}
	return doc, nil
}

// propose wraps one oracle call, downgrading throttling exhaustion and
// timeouts to "no entries this call".
func (a *Agent) propose(ctx context.Context, req oracle.Request, log *zap.Logger) (oracle.Fragment, error) {
	frag, err := a.oracle.Propose(ctx, req)
	if err == nil {
		return frag, nil
	}
	switch {
	case ctx.Err() != nil:
		return nil, err
	case errors.Is(err, oracle.ErrRateLimitExhausted):
		log.Warn("oracle call rate-limited out, batch contributes nothing", zap.Error(err))
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("oracle call timed out, batch contributes nothing", zap.Error(err))
	default:
		log.Warn("oracle call failed, batch contributes nothing", zap.Error(err))
	}
	return nil, err
}

// gapSet derives the still-unmapped descriptors, preserving inventory order.
func gapSet(inv *inventory.Inventory, doc *Document) []inventory.FieldDescriptor {
	mapped := doc.MappedPaths()
	var gaps []inventory.FieldDescriptor
	for _, f := range inv.Fields {
		if _, ok := mapped[f.FieldPath]; !ok {
			gaps = append(gaps, f)
		}
	}
	return gaps
}

func logMergeReport(log *zap.Logger, report []string) {
	for _, line := range report {
		log.Warn("mapping filter", zap.String("detail", line))
	}
}

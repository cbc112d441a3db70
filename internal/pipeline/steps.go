package pipeline

import (
	"context"
	"time"

	"github.com/dvloznov/ledger-insights/internal/ledger"
	"github.com/dvloznov/ledger-insights/internal/logger"
)

// CleaningStep represents a single rule in the cleaning pipeline.
// Each step sees only the rows that survived the previous steps.
type CleaningStep interface {
	Name() string
	Apply(state *CleaningState)
}

// candidate is a raw row moving through the pipeline, plus its coerced values.
type candidate struct {
	raw         ledger.RawRow
	amount      float64
	amountOK    bool
	timestamp   time.Time
	timestampOK bool
}

// CleaningState holds the surviving rows across all pipeline steps.
type CleaningState struct {
	HasTransactionID bool
	rows             []candidate
}

func newCleaningState(rows []ledger.RawRow, hasTransactionID bool) *CleaningState {
	state := &CleaningState{
		HasTransactionID: hasTransactionID,
		rows:             make([]candidate, len(rows)),
	}
	for i, raw := range rows {
		state.rows[i] = candidate{raw: raw}
	}
	return state
}

// Len returns the number of rows still in the pipeline.
func (s *CleaningState) Len() int {
	return len(s.rows)
}

// keep retains the rows for which fn returns true, preserving order.
func (s *CleaningState) keep(fn func(c *candidate) bool) {
	kept := s.rows[:0]
	for i := range s.rows {
		if fn(&s.rows[i]) {
			kept = append(kept, s.rows[i])
		}
	}
	s.rows = kept
}

// Step 1: DropMissingEssentialsStep drops rows with a missing amount or timestamp.
type DropMissingEssentialsStep struct{}

func (DropMissingEssentialsStep) Name() string { return "drop_missing_essentials" }

func (DropMissingEssentialsStep) Apply(state *CleaningState) {
	state.keep(func(c *candidate) bool {
		return c.raw.Amount.Valid && c.raw.Timestamp.Valid
	})
}

// Step 2: CoerceTypesStep parses timestamp and amount. Failures are recorded, not raised.
type CoerceTypesStep struct{}

func (CoerceTypesStep) Name() string { return "coerce_types" }

func (CoerceTypesStep) Apply(state *CleaningState) {
	for i := range state.rows {
		c := &state.rows[i]
		c.timestamp, c.timestampOK = ParseTimestamp(c.raw.Timestamp.StringVal)
		c.amount, c.amountOK = ParseAmount(c.raw.Amount.StringVal)
	}
}

// Step 3: DropInvalidTypesStep drops rows whose coercion failed.
type DropInvalidTypesStep struct{}

func (DropInvalidTypesStep) Name() string { return "drop_invalid_types" }

func (DropInvalidTypesStep) Apply(state *CleaningState) {
	state.keep(func(c *candidate) bool {
		return c.amountOK && c.timestampOK
	})
}

// Step 4: DropDuplicateTransactionsStep keeps the first row of each transaction_id.
// Rows with a missing transaction_id share one key, so only the first of them survives.
type DropDuplicateTransactionsStep struct{}

func (DropDuplicateTransactionsStep) Name() string { return "drop_duplicate_transactions" }

func (DropDuplicateTransactionsStep) Apply(state *CleaningState) {
	if !state.HasTransactionID {
		return
	}
	seen := make(map[string]bool, len(state.rows))
	seenMissing := false
	state.keep(func(c *candidate) bool {
		id := c.raw.TransactionID
		if !id.Valid {
			if seenMissing {
				return false
			}
			seenMissing = true
			return true
		}
		if seen[id.StringVal] {
			return false
		}
		seen[id.StringVal] = true
		return true
	})
}

// Step 5: DropNonPositiveAmountsStep drops refunds, zero and negative amounts.
type DropNonPositiveAmountsStep struct{}

func (DropNonPositiveAmountsStep) Name() string { return "drop_non_positive_amounts" }

func (DropNonPositiveAmountsStep) Apply(state *CleaningState) {
	state.keep(func(c *candidate) bool {
		return c.amount > 0
	})
}

// Pipeline executes a sequence of cleaning steps in order.
type Pipeline struct {
	steps []CleaningStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...CleaningStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially, logging the surviving row count after each one.
func (p *Pipeline) Execute(ctx context.Context, state *CleaningState) {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		step.Apply(state)
		log.Debug().
			Int("step", i+1).
			Str("name", step.Name()).
			Int("rows", state.Len()).
			Msg("Cleaning step applied")
	}
}

// NewLedgerCleaningPipeline creates the standard 5-step cleaning pipeline.
// Order matters: deduplication and the positivity filter rely on coerced values.
func NewLedgerCleaningPipeline() *Pipeline {
	return NewPipeline(
		DropMissingEssentialsStep{},
		CoerceTypesStep{},
		DropInvalidTypesStep{},
		DropDuplicateTransactionsStep{},
		DropNonPositiveAmountsStep{},
	)
}

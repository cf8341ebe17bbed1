package domain

import (
	"context"

	"github.com/veldtax/veldtax/internal/fiscalyear"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
)

// Run states. A run that reaches Stored has written a table; the tier
// chain guarantees every run reaches Stored.
type State string

const (
	StateNotAttempted State = "not_attempted"
	StateFetching     State = "fetching"
	StateParsing      State = "parsing"
	StateValidating   State = "validating"
	StateStored       State = "stored"
)

// Tier names, in the order the pipeline tries them.
const (
	TierPrimary      = "primary"
	TierReparse      = "reparse"
	TierArchive      = "archive"
	TierCarryForward = "carry_forward"
	TierStatic       = "static"
)

// Strategy is one acquisition tier: produce a validated rule table for
// the year or fail so the pipeline advances to the next tier.
type Strategy interface {
	Name() string
	Acquire(ctx context.Context, year fiscalyear.Year) (*rulesdomain.RuleTable, error)
}

// Result describes a finished pipeline run.
type Result struct {
	TaxYear fiscalyear.Year `json:"tax_year"`
	State   State           `json:"state"`
	// Tier that produced the stored table.
	Tier string `json:"tier"`
	// Stale mirrors the stored table's advisory flag.
	Stale bool `json:"stale"`
	// Skipped is set when the year was already stored and force was off.
	Skipped bool `json:"skipped,omitempty"`
}

type Service interface {
	// Run acquires and stores a rule table for the year. With force off
	// an already-stored year is left untouched.
	Run(ctx context.Context, year fiscalyear.Year, force bool) (*Result, error)
	// Ensure returns the stored table for the year, running the
	// pipeline first when the store has nothing.
	Ensure(ctx context.Context, year fiscalyear.Year) (*rulesdomain.RuleTable, error)
}

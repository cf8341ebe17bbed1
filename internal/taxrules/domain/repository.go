package domain

import (
	"context"

	"github.com/veldtax/veldtax/internal/fiscalyear"
)

type Repository interface {
	// Get loads the full rule table for a year, ErrNoRuleTable when absent.
	Get(ctx context.Context, year fiscalyear.Year) (*RuleTable, error)
	Exists(ctx context.Context, year fiscalyear.Year) (bool, error)
	// Upsert atomically replaces the year's table. Readers never observe
	// a partially-written year.
	Upsert(ctx context.Context, table *RuleTable) error
	// LatestBefore returns the most recent non-stale table strictly
	// before the given year, for the carry-forward fallback tier.
	LatestBefore(ctx context.Context, year fiscalyear.Year) (*RuleTable, error)
}

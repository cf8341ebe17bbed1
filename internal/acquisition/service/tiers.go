package service

import (
	"context"
	"fmt"

	acqdomain "github.com/veldtax/veldtax/internal/acquisition/domain"
	"github.com/veldtax/veldtax/internal/acquisition/parse"
	"github.com/veldtax/veldtax/internal/acquisition/source"
	"github.com/veldtax/veldtax/internal/config"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
)

// ratesPage memoizes the primary page fetch within one run so the
// reparse tier re-reads bytes already in hand instead of re-fetching.
type ratesPage struct {
	fetch source.Fetcher
	url   string
	body  []byte
}

func (p *ratesPage) get(ctx context.Context) ([]byte, error) {
	if p.body != nil {
		return p.body, nil
	}
	body, err := p.fetch.Fetch(ctx, p.url)
	if err != nil {
		return nil, err
	}
	p.body = body
	return body, nil
}

type primaryTier struct {
	page *ratesPage
}

func (t *primaryTier) Name() string { return acqdomain.TierPrimary }

func (t *primaryTier) Acquire(ctx context.Context, year fiscalyear.Year) (*rulesdomain.RuleTable, error) {
	body, err := t.page.get(ctx)
	if err != nil {
		return nil, err
	}
	table, err := parse.Table(body, year)
	if err != nil {
		return nil, err
	}
	table.Source = rulesdomain.SourcePrimary
	return table, nil
}

// reparseTier re-reads the primary page's bytes with the
// layout-insensitive text parser.
type reparseTier struct {
	page *ratesPage
}

func (t *reparseTier) Name() string { return acqdomain.TierReparse }

func (t *reparseTier) Acquire(ctx context.Context, year fiscalyear.Year) (*rulesdomain.RuleTable, error) {
	body, err := t.page.get(ctx)
	if err != nil {
		return nil, err
	}
	table, err := parse.TableFromText(body, year)
	if err != nil {
		return nil, err
	}
	table.Source = rulesdomain.SourcePrimary
	return table, nil
}

type archiveTier struct {
	fetch source.Fetcher
	url   string
}

func (t *archiveTier) Name() string { return acqdomain.TierArchive }

func (t *archiveTier) Acquire(ctx context.Context, year fiscalyear.Year) (*rulesdomain.RuleTable, error) {
	body, err := t.fetch.Fetch(ctx, t.url)
	if err != nil {
		return nil, err
	}
	table, err := parse.Table(body, year)
	if err != nil {
		table, err = parse.TableFromText(body, year)
	}
	if err != nil {
		return nil, err
	}
	table.Source = rulesdomain.SourceArchive
	return table, nil
}

// carryForwardTier reuses the most recent earlier non-stale year,
// flagged stale so calculations carry the advisory.
type carryForwardTier struct {
	repo rulesdomain.Repository
}

func (t *carryForwardTier) Name() string { return acqdomain.TierCarryForward }

func (t *carryForwardTier) Acquire(ctx context.Context, year fiscalyear.Year) (*rulesdomain.RuleTable, error) {
	prior, err := t.repo.LatestBefore(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", acqdomain.ErrNoPriorTable, err)
	}
	prior.Year = year
	prior.Source = rulesdomain.SourceCarryForward
	return prior, nil
}

// staticTier builds the bundled last-resort table. It is deterministic
// and cannot fail, which is what makes the chain total.
type staticTier struct {
	holder *config.RulesConfigHolder
}

func (t *staticTier) Name() string { return acqdomain.TierStatic }

func (t *staticTier) Acquire(ctx context.Context, year fiscalyear.Year) (*rulesdomain.RuleTable, error) {
	return staticTable(t.holder.Current().StaticTable, year), nil
}

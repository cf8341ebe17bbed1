package service

import (
	"context"
	"errors"
	"sync"
	"time"

	acqdomain "github.com/veldtax/veldtax/internal/acquisition/domain"
	"github.com/veldtax/veldtax/internal/acquisition/source"
	"github.com/veldtax/veldtax/internal/config"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	"github.com/veldtax/veldtax/internal/lock"
	"github.com/veldtax/veldtax/internal/metrics"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type pipelineParam struct {
	fx.In

	Repo    rulesdomain.Repository
	Holder  *config.RulesConfigHolder
	Locker  *lock.Locker `optional:"true"`
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

type pipeline struct {
	repo    rulesdomain.Repository
	holder  *config.RulesConfigHolder
	locker  *lock.Locker
	metrics *metrics.Metrics
	log     *zap.Logger

	// newFetcher is swapped by tests to inject tier failures.
	newFetcher func(cfg config.RulesConfig) source.Fetcher

	mu     sync.Mutex
	active map[fiscalyear.Year]int
	gen    map[fiscalyear.Year]uint64
}

func NewPipeline(p pipelineParam) acqdomain.Service {
	log := p.Log.Named("acquisition")
	return &pipeline{
		repo:    p.Repo,
		holder:  p.Holder,
		locker:  p.Locker,
		metrics: p.Metrics,
		log:     log,
		newFetcher: func(cfg config.RulesConfig) source.Fetcher {
			return source.NewClient(cfg.FetchRetries, cfg.FetchTimeout, log)
		},
		active: make(map[fiscalyear.Year]int),
		gen:    make(map[fiscalyear.Year]uint64),
	}
}

func (p *pipeline) Run(ctx context.Context, year fiscalyear.Year, force bool) (*acqdomain.Result, error) {
	trigger := "on_demand"
	if force {
		trigger = "forced"
	}
	p.metrics.AcquisitionRuns.WithLabelValues(trigger).Inc()

	if !force {
		exists, err := p.repo.Exists(ctx, year)
		if err != nil {
			return nil, err
		}
		if exists {
			return &acqdomain.Result{TaxYear: year, State: acqdomain.StateStored, Skipped: true}, nil
		}
	}

	myGen, err := p.begin(year, force)
	if err != nil {
		return nil, err
	}
	defer p.end(year)

	cfg := p.holder.Current()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	// The distributed lock is best-effort: losing redis degrades to
	// the in-process guard, it never blocks acquisition.
	lockKey := "veldtax:acquisition:" + year.String()
	if p.locker != nil {
		token, ok, err := p.locker.TryLock(ctx, lockKey, cfg.LockTTL)
		if err != nil {
			p.log.Warn("acquisition lock unavailable", zap.Error(err))
		} else if !ok {
			return nil, acqdomain.ErrRunInProgress
		} else {
			defer func() {
				if err := p.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
					p.log.Warn("release acquisition lock", zap.Error(err))
				}
			}()
		}
	}

	return p.runTiers(ctx, year, cfg, myGen)
}

// runTiers walks the fallback chain in order. The static tier is
// deterministic, so the chain always terminates in Stored.
func (p *pipeline) runTiers(ctx context.Context, year fiscalyear.Year, cfg config.RulesConfig, myGen uint64) (*acqdomain.Result, error) {
	fetch := p.newFetcher(cfg)
	page := &ratesPage{fetch: fetch, url: cfg.SourceBaseURL + cfg.RatesPath}

	// The run deadline bounds the network tiers only. Carry-forward,
	// static, and the final upsert must still complete after the fetch
	// budget is burned, or the chain could end without storing anything.
	offline := context.WithoutCancel(ctx)

	tiers := []struct {
		acqdomain.Strategy
		ctx context.Context
	}{
		{Strategy: &primaryTier{page: page}, ctx: ctx},
		{Strategy: &reparseTier{page: page}, ctx: ctx},
		{Strategy: &archiveTier{fetch: fetch, url: cfg.SourceBaseURL + cfg.ArchivePath}, ctx: ctx},
		{Strategy: &carryForwardTier{repo: p.repo}, ctx: offline},
		{Strategy: &staticTier{holder: p.holder}, ctx: offline},
	}

	var lastErr error
	for _, tier := range tiers {
		p.log.Debug("trying acquisition tier",
			zap.String("tax_year", year.String()),
			zap.String("tier", tier.Name()),
			zap.String("state", string(acqdomain.StateFetching)))

		table, err := tier.Acquire(tier.ctx, year)
		if err != nil {
			lastErr = err
			p.log.Info("acquisition tier failed",
				zap.String("tax_year", year.String()),
				zap.String("tier", tier.Name()),
				zap.Error(err))
			continue
		}

		if err := table.Validate(); err != nil {
			lastErr = err
			p.log.Warn("acquired table failed validation",
				zap.String("tax_year", year.String()),
				zap.String("tier", tier.Name()),
				zap.Error(err))
			continue
		}
		table.Stale = table.Source.Stale()

		if err := p.store(offline, year, table, myGen); err != nil {
			return nil, err
		}

		p.metrics.AcquisitionOutcomes.WithLabelValues(tier.Name()).Inc()
		p.log.Info("rule table stored",
			zap.String("tax_year", year.String()),
			zap.String("tier", tier.Name()),
			zap.Bool("stale", table.Stale))
		return &acqdomain.Result{
			TaxYear: year,
			State:   acqdomain.StateStored,
			Tier:    tier.Name(),
			Stale:   table.Stale,
		}, nil
	}

	// Only reachable when the bundled static table itself is invalid.
	return nil, lastErr
}

// store upserts unless a newer run for the year started while this one
// was fetching; an abandoned run must not overwrite fresher data.
func (p *pipeline) store(ctx context.Context, year fiscalyear.Year, table *rulesdomain.RuleTable, myGen uint64) error {
	p.mu.Lock()
	superseded := p.gen[year] != myGen
	p.mu.Unlock()
	if superseded {
		return acqdomain.ErrRunSuperseded
	}
	return p.repo.Upsert(ctx, table)
}

func (p *pipeline) Ensure(ctx context.Context, year fiscalyear.Year) (*rulesdomain.RuleTable, error) {
	table, err := p.repo.Get(ctx, year)
	if err == nil {
		return table, nil
	}
	if !errors.Is(err, rulesdomain.ErrNoRuleTable) {
		return nil, err
	}

	if _, err := p.Run(ctx, year, false); err != nil {
		if !errors.Is(err, acqdomain.ErrRunInProgress) {
			return nil, err
		}
		// Another run holds the year; wait for its result.
		if err := p.awaitStored(ctx, year); err != nil {
			return nil, err
		}
	}
	return p.repo.Get(ctx, year)
}

func (p *pipeline) awaitStored(ctx context.Context, year fiscalyear.Year) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			exists, err := p.repo.Exists(ctx, year)
			if err != nil {
				return err
			}
			if exists {
				return nil
			}
		}
	}
}

// begin registers a run for the year. A second non-forced run is
// rejected; a forced run proceeds and bumps the generation so the
// older run's result is discarded.
func (p *pipeline) begin(year fiscalyear.Year, force bool) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active[year] > 0 && !force {
		return 0, acqdomain.ErrRunInProgress
	}
	p.active[year]++
	p.gen[year]++
	return p.gen[year], nil
}

func (p *pipeline) end(year fiscalyear.Year) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[year]--
	if p.active[year] <= 0 {
		delete(p.active, year)
	}
}

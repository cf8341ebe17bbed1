package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	acqdomain "github.com/veldtax/veldtax/internal/acquisition/domain"
	"github.com/veldtax/veldtax/internal/acquisition/source"
	"github.com/veldtax/veldtax/internal/config"
	"github.com/veldtax/veldtax/internal/metrics"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
	rulesrepo "github.com/veldtax/veldtax/internal/taxrules/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const goodRatesHTML = `<html><body>
<h2>2025 tax year (1 March 2024 - 28 February 2025)</h2>
<table>
<tr><th>Taxable income (R)</th><th>Rates of tax (R)</th></tr>
<tr><td>1 - 237 100</td><td>18% of taxable income</td></tr>
<tr><td>237 101 - 370 500</td><td>42 678 + 26% of taxable income above 237 100</td></tr>
<tr><td>370 501 - 512 800</td><td>77 362 + 31% of taxable income above 370 500</td></tr>
<tr><td>512 801 - 673 000</td><td>121 475 + 36% of taxable income above 512 800</td></tr>
<tr><td>673 001 - 857 900</td><td>179 147 + 39% of taxable income above 673 000</td></tr>
<tr><td>857 901 - 1 817 000</td><td>251 258 + 41% of taxable income above 857 900</td></tr>
<tr><td>1 817 001 and above</td><td>644 489 + 45% of taxable income above 1 817 000</td></tr>
</table>
<table>
<tr><th>Tax Rebate</th><th>2025</th></tr>
<tr><td>Primary</td><td>R17 235</td></tr>
<tr><td>Secondary (65 and older)</td><td>R9 444</td></tr>
<tr><td>Tertiary (75 and older)</td><td>R3 145</td></tr>
</table>
<table>
<tr><th>Person</th><th>2025</th></tr>
<tr><td>Under 65</td><td>R95 750</td></tr>
<tr><td>65 an older</td><td>R148 217</td></tr>
<tr><td>75 and older</td><td>R165 689</td></tr>
</table>
<table>
<tr><th>Per month (R)</th><th>2025</th></tr>
<tr><td>Main member</td><td>R347</td></tr>
<tr><td>Additional member</td><td>R347</td></tr>
</table>
</body></html>`

// Same figures without table markup; defeats the HTML tier, not the
// text tier.
var textOnlyRatesHTML = "<html><body><p>" + strings.Join([]string{
	"2025 tax year (1 March 2024 - 28 February 2025)",
	"1 - 237 100", "18% of taxable income",
	"237 101 - 370 500", "42 678 + 26% of taxable income above 237 100",
	"370 501 - 512 800", "77 362 + 31% of taxable income above 370 500",
	"512 801 - 673 000", "121 475 + 36% of taxable income above 512 800",
	"673 001 - 857 900", "179 147 + 39% of taxable income above 673 000",
	"857 901 - 1 817 000", "251 258 + 41% of taxable income above 857 900",
	"1 817 001 and above", "644 489 + 45% of taxable income above 1 817 000",
	"Tax Rebate 2025",
	"Primary R17 235",
	"Secondary (65 and older) R9 444",
	"Tertiary (75 and older) R3 145",
	"Under 65 R95 750",
	"65 an older R148 217",
	"75 and older R165 689",
	"Main member R347",
	"Additional member R347",
}, "<br>") + "</p></body></html>"

type fakeFetcher struct {
	pages   map[string][]byte
	blocked chan struct{}
	calls   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.blocked != nil {
		select {
		case <-f.blocked:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, acqdomain.ErrFetchFailed
	}
	return body, nil
}

const (
	ratesURL   = "https://www.sars.gov.za/tax-rates/income-tax/rates-of-tax-for-individuals/"
	archiveURL = "https://www.sars.gov.za/tax-rates/archive-tax-rates/"
)

type fixture struct {
	p    *pipeline
	repo rulesdomain.Repository
	db   *gorm.DB
}

func setup(t *testing.T, fetchers ...source.Fetcher) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&rulesdomain.TaxBracket{},
		&rulesdomain.RebateSet{},
		&rulesdomain.ThresholdSet{},
		&rulesdomain.MedicalCreditSet{},
		&rulesdomain.TableMeta{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	holder, err := config.NewRulesConfigHolder()
	if err != nil {
		t.Fatalf("rules config: %v", err)
	}

	repo := rulesrepo.NewRepository(db)
	svc := NewPipeline(pipelineParam{
		Repo:    repo,
		Holder:  holder,
		Metrics: metrics.New(prometheus.NewRegistry()),
		Log:     zap.NewNop(),
	})
	p := svc.(*pipeline)
	// Hand out one injected fetcher per run, repeating the last.
	i := 0
	p.newFetcher = func(cfg config.RulesConfig) source.Fetcher {
		f := fetchers[i]
		if i < len(fetchers)-1 {
			i++
		}
		return f
	}
	return &fixture{p: p, repo: repo, db: db}
}

func pages(kv map[string]string) map[string][]byte {
	out := make(map[string][]byte, len(kv))
	for k, v := range kv {
		out[k] = []byte(v)
	}
	return out
}

func TestRunStoresPrimaryTier(t *testing.T) {
	f := setup(t, &fakeFetcher{pages: pages(map[string]string{ratesURL: goodRatesHTML})})

	res, err := f.p.Run(context.Background(), "2024-2025", false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != acqdomain.StateStored || res.Tier != acqdomain.TierPrimary || res.Stale {
		t.Fatalf("result = %+v", res)
	}

	stored, err := f.repo.Get(context.Background(), "2024-2025")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Source != rulesdomain.SourcePrimary || stored.Stale {
		t.Fatalf("stored source = %s stale=%v", stored.Source, stored.Stale)
	}
	if len(stored.Brackets) != 7 {
		t.Fatalf("brackets = %d", len(stored.Brackets))
	}
}

func TestRunFallsBackToTextReparse(t *testing.T) {
	f := setup(t, &fakeFetcher{pages: pages(map[string]string{ratesURL: textOnlyRatesHTML})})

	res, err := f.p.Run(context.Background(), "2024-2025", false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Tier != acqdomain.TierReparse || res.Stale {
		t.Fatalf("result = %+v", res)
	}

	stored, err := f.repo.Get(context.Background(), "2024-2025")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.Rebates.Primary.Equal(decimal.NewFromInt(17235)) {
		t.Fatalf("primary rebate = %s", stored.Rebates.Primary)
	}
}

func TestRunFallsBackToArchive(t *testing.T) {
	f := setup(t, &fakeFetcher{pages: pages(map[string]string{archiveURL: goodRatesHTML})})

	res, err := f.p.Run(context.Background(), "2024-2025", false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Tier != acqdomain.TierArchive {
		t.Fatalf("tier = %s, want archive", res.Tier)
	}

	stored, err := f.repo.Get(context.Background(), "2024-2025")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Source != rulesdomain.SourceArchive || stored.Stale {
		t.Fatalf("stored source = %s stale=%v", stored.Source, stored.Stale)
	}
}

func TestRunCarriesForwardPriorYear(t *testing.T) {
	f := setup(t, &fakeFetcher{})
	ctx := context.Background()

	prior := staticTable(config.DefaultRulesConfig().StaticTable, "2023-2024")
	prior.Source = rulesdomain.SourcePrimary
	if err := f.repo.Upsert(ctx, prior); err != nil {
		t.Fatalf("seed prior year: %v", err)
	}

	res, err := f.p.Run(ctx, "2024-2025", false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Tier != acqdomain.TierCarryForward || !res.Stale {
		t.Fatalf("result = %+v", res)
	}

	stored, err := f.repo.Get(ctx, "2024-2025")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.Stale || stored.Source != rulesdomain.SourceCarryForward {
		t.Fatalf("stored source = %s stale=%v", stored.Source, stored.Stale)
	}
	if !stored.Rebates.Primary.Equal(prior.Rebates.Primary) {
		t.Fatalf("carried rebate = %s", stored.Rebates.Primary)
	}
}

func TestRunAlwaysTerminatesInStored(t *testing.T) {
	// Every network tier fails and no prior year exists; the bundled
	// static table must still be stored.
	f := setup(t, &fakeFetcher{})

	res, err := f.p.Run(context.Background(), "2024-2025", false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != acqdomain.StateStored || res.Tier != acqdomain.TierStatic || !res.Stale {
		t.Fatalf("result = %+v", res)
	}

	stored, err := f.repo.Get(context.Background(), "2024-2025")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Source != rulesdomain.SourceStatic || !stored.Stale {
		t.Fatalf("stored source = %s stale=%v", stored.Source, stored.Stale)
	}
	if len(stored.Brackets) != 7 {
		t.Fatalf("static brackets = %d", len(stored.Brackets))
	}
}

func TestRunStoresAfterFetchBudgetExpires(t *testing.T) {
	// A source that never answers burns the entire run budget on the
	// network tiers; the offline tiers must still store a table.
	slow := &fakeFetcher{blocked: make(chan struct{})}
	f := setup(t, slow)

	cfg := config.DefaultRulesConfig()
	cfg.RunTimeout = 50 * time.Millisecond
	f.p.holder = config.FixedRulesConfigHolder(cfg)

	res, err := f.p.Run(context.Background(), "2024-2025", false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != acqdomain.StateStored || res.Tier != acqdomain.TierStatic {
		t.Fatalf("result = %+v", res)
	}

	stored, err := f.repo.Get(context.Background(), "2024-2025")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Source != rulesdomain.SourceStatic || !stored.Stale {
		t.Fatalf("stored source = %s stale=%v", stored.Source, stored.Stale)
	}
}

func TestRunSkipsStoredYearWithoutForce(t *testing.T) {
	fetcher := &fakeFetcher{pages: pages(map[string]string{ratesURL: goodRatesHTML})}
	f := setup(t, fetcher)
	ctx := context.Background()

	if _, err := f.p.Run(ctx, "2024-2025", false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	calls := len(fetcher.calls)

	res, err := f.p.Run(ctx, "2024-2025", false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !res.Skipped {
		t.Fatal("second run should skip a stored year")
	}
	if len(fetcher.calls) != calls {
		t.Fatal("skipped run must not fetch")
	}
}

func TestForceRefreshReplacesFallbackData(t *testing.T) {
	failing := &fakeFetcher{}
	working := &fakeFetcher{pages: pages(map[string]string{ratesURL: goodRatesHTML})}
	f := setup(t, failing, working)
	ctx := context.Background()

	if _, err := f.p.Run(ctx, "2024-2025", false); err != nil {
		t.Fatalf("fallback run: %v", err)
	}

	res, err := f.p.Run(ctx, "2024-2025", true)
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if res.Tier != acqdomain.TierPrimary || res.Stale {
		t.Fatalf("result = %+v", res)
	}

	stored, err := f.repo.Get(ctx, "2024-2025")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Source != rulesdomain.SourcePrimary || stored.Stale {
		t.Fatalf("forced refresh did not replace fallback data: %s stale=%v", stored.Source, stored.Stale)
	}
}

func TestEnsurePopulatesMissingYear(t *testing.T) {
	f := setup(t, &fakeFetcher{})

	table, err := f.p.Ensure(context.Background(), "2024-2025")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !table.Stale || table.Source != rulesdomain.SourceStatic {
		t.Fatalf("ensure returned %s stale=%v", table.Source, table.Stale)
	}

	again, err := f.p.Ensure(context.Background(), "2024-2025")
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if again.Source != rulesdomain.SourceStatic {
		t.Fatalf("second ensure = %s", again.Source)
	}
}

func TestConcurrentRunRejected(t *testing.T) {
	blocked := make(chan struct{})
	slow := &fakeFetcher{pages: pages(map[string]string{ratesURL: goodRatesHTML}), blocked: blocked}
	f := setup(t, slow)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.p.Run(ctx, "2024-2025", false)
		done <- err
	}()

	// Wait for the first run to register.
	for {
		f.p.mu.Lock()
		active := f.p.active["2024-2025"]
		f.p.mu.Unlock()
		if active > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, err := f.p.Run(ctx, "2024-2025", false)
	if !errors.Is(err, acqdomain.ErrRunInProgress) {
		t.Fatalf("err = %v, want ErrRunInProgress", err)
	}

	close(blocked)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestSupersededRunDoesNotOverwrite(t *testing.T) {
	blocked := make(chan struct{})
	slow := &fakeFetcher{blocked: blocked}
	fast := &fakeFetcher{pages: pages(map[string]string{ratesURL: goodRatesHTML})}
	f := setup(t, slow, fast)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		// Would land on the static tier once unblocked.
		_, err := f.p.Run(ctx, "2024-2025", false)
		done <- err
	}()
	for {
		f.p.mu.Lock()
		active := f.p.active["2024-2025"]
		f.p.mu.Unlock()
		if active > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := f.p.Run(ctx, "2024-2025", true); err != nil {
		t.Fatalf("forced run: %v", err)
	}

	close(blocked)
	if err := <-done; !errors.Is(err, acqdomain.ErrRunSuperseded) {
		t.Fatalf("stale run err = %v, want ErrRunSuperseded", err)
	}

	stored, err := f.repo.Get(ctx, "2024-2025")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Source != rulesdomain.SourcePrimary {
		t.Fatalf("stored source = %s, the forced run's table must win", stored.Source)
	}
}

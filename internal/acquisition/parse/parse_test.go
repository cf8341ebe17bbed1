package parse

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	acqdomain "github.com/veldtax/veldtax/internal/acquisition/domain"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
)

const ratesPageHTML = `<!DOCTYPE html>
<html><body>
<h1>Rates of Tax for Individuals</h1>
<h2>2025 tax year (1 March 2024 &ndash; 28 February 2025)</h2>
<table>
<tr><th>Taxable income (R)</th><th>Rates of tax (R)</th></tr>
<tr><td>1 &ndash; 237 100</td><td>18% of taxable income</td></tr>
<tr><td>237 101 &ndash; 370 500</td><td>42 678 + 26% of taxable income above 237 100</td></tr>
<tr><td>370 501 &ndash; 512 800</td><td>77 362 + 31% of taxable income above 370 500</td></tr>
<tr><td>512 801 &ndash; 673 000</td><td>121 475 + 36% of taxable income above 512 800</td></tr>
<tr><td>673 001 &ndash; 857 900</td><td>179 147 + 39% of taxable income above 673 000</td></tr>
<tr><td>857 901 &ndash; 1 817 000</td><td>251 258 + 41% of taxable income above 857 900</td></tr>
<tr><td>1 817 001 and above</td><td>644 489 + 45% of taxable income above 1 817 000</td></tr>
</table>
<h2>2024 tax year (1 March 2023 &ndash; 29 February 2024)</h2>
<table>
<tr><th>Taxable income (R)</th><th>Rates of tax (R)</th></tr>
<tr><td>1 &ndash; 237 100</td><td>18% of taxable income</td></tr>
<tr><td>237 101 and above</td><td>42 678 + 26% of taxable income above 237 100</td></tr>
</table>
<h3>Tax Rebates</h3>
<table>
<tr><th>Tax Rebate</th><th>2025</th><th>2024</th></tr>
<tr><td>Primary</td><td>R17 235</td><td>R17 235</td></tr>
<tr><td>Secondary (65 and older)</td><td>R9 444</td><td>R9 444</td></tr>
<tr><td>Tertiary (75 and older)</td><td>R3 145</td><td>R3 145</td></tr>
</table>
<h3>Tax Thresholds</h3>
<table>
<tr><th>Person</th><th>2025</th><th>2024</th></tr>
<tr><td>Under 65</td><td>R95 750</td><td>R95 750</td></tr>
<tr><td>65 an older</td><td>R148 217</td><td>R148 217</td></tr>
<tr><td>75 and older</td><td>R165 689</td><td>R165 689</td></tr>
</table>
<h3>Medical Tax Credit Rates</h3>
<table>
<tr><th>Per month (R)</th><th>2025</th><th>2024</th></tr>
<tr><td>Main member</td><td>R347</td><td>R364</td></tr>
<tr><td>Additional member</td><td>R347</td><td>R246</td></tr>
</table>
</body></html>`

const ratesPageText = `Rates of tax for individuals
2025 tax year (1 March 2024 - 28 February 2025)
1 - 237 100
18% of taxable income
237 101 - 370 500
42 678 + 26% of taxable income above 237 100
370 501 - 512 800
77 362 + 31% of taxable income above 370 500
512 801 - 673 000
121 475 + 36% of taxable income above 512 800
673 001 - 857 900
179 147 + 39% of taxable income above 673 000
857 901 - 1 817 000
251 258 + 41% of taxable income above 857 900
1 817 001 and above
644 489 + 45% of taxable income above 1 817 000
Tax Rebate 2025 2024
Primary R17 235 R17 235
Secondary (65 and older) R9 444 R9 444
Tertiary (75 and older) R3 145 R3 145
Tax Thresholds
Person 2025 2024
Under 65 R95 750 R95 750
65 an older R148 217 R148 217
75 and older R165 689 R165 689
Medical Tax Credit Rates per month
Main member R347 R364
Additional member R347 R246`

func assertTable(t *testing.T, got *rulesdomain.RuleTable) {
	t.Helper()
	if len(got.Brackets) != 7 {
		t.Fatalf("brackets = %d, want 7", len(got.Brackets))
	}
	first := got.Brackets[0]
	if first.LowerLimit != 1 || first.UpperLimit == nil || *first.UpperLimit != 237100 {
		t.Fatalf("first bracket = %+v", first)
	}
	if !first.Rate.Equal(decimal.RequireFromString("0.18")) {
		t.Fatalf("first rate = %s", first.Rate)
	}
	second := got.Brackets[1]
	if !second.BaseAmount.Equal(decimal.NewFromInt(42678)) {
		t.Fatalf("second base = %s", second.BaseAmount)
	}
	top := got.Brackets[6]
	if top.UpperLimit != nil || top.LowerLimit != 1817001 {
		t.Fatalf("top bracket = %+v", top)
	}
	if !top.Rate.Equal(decimal.RequireFromString("0.45")) {
		t.Fatalf("top rate = %s", top.Rate)
	}
	if !got.Rebates.Primary.Equal(decimal.NewFromInt(17235)) ||
		!got.Rebates.Secondary.Equal(decimal.NewFromInt(9444)) ||
		!got.Rebates.Tertiary.Equal(decimal.NewFromInt(3145)) {
		t.Fatalf("rebates = %+v", got.Rebates)
	}
	if got.Thresholds.Under65 != 95750 || got.Thresholds.Age65To74 != 148217 || got.Thresholds.Age75Plus != 165689 {
		t.Fatalf("thresholds = %+v", got.Thresholds)
	}
	if !got.MedicalCredits.MainMember.Equal(decimal.NewFromInt(347)) ||
		!got.MedicalCredits.AdditionalMember.Equal(decimal.NewFromInt(347)) {
		t.Fatalf("medical credits = %+v", got.MedicalCredits)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("parsed table fails validation: %v", err)
	}
}

func TestTableParsesRatesPage(t *testing.T) {
	got, err := Table([]byte(ratesPageHTML), "2024-2025")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	assertTable(t, got)
}

func TestTablePicksYearColumn(t *testing.T) {
	got, err := Table([]byte(ratesPageHTML), "2023-2024")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Brackets) != 2 {
		t.Fatalf("brackets = %d, want the 2024 section's 2", len(got.Brackets))
	}
	if !got.MedicalCredits.MainMember.Equal(decimal.NewFromInt(364)) {
		t.Fatalf("main member credit = %s, want the 2024 column's 364", got.MedicalCredits.MainMember)
	}
}

func TestTableMissingYear(t *testing.T) {
	_, err := Table([]byte(ratesPageHTML), "2026-2027")
	if !errors.Is(err, acqdomain.ErrParseFailed) {
		t.Fatalf("err = %v, want ErrParseFailed", err)
	}
}

func TestTableRejectsGarbage(t *testing.T) {
	_, err := Table([]byte("<html><body><p>scheduled maintenance</p></body></html>"), "2024-2025")
	if !errors.Is(err, acqdomain.ErrParseFailed) {
		t.Fatalf("err = %v, want ErrParseFailed", err)
	}
}

func TestTableFromText(t *testing.T) {
	got, err := TableFromText([]byte(ratesPageText), "2024-2025")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	assertTable(t, got)
}

func TestTableFromTextSurvivesBrokenMarkup(t *testing.T) {
	// Unclosed tags defeat table extraction but not the text scan.
	broken := "<div><span>" + ratesPageText + "</span>"
	got, err := TableFromText([]byte(broken), "2024-2025")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	assertTable(t, got)
}

func TestTableFromTextGarbage(t *testing.T) {
	_, err := TableFromText([]byte("service temporarily unavailable"), "2024-2025")
	if !errors.Is(err, acqdomain.ErrParseFailed) {
		t.Fatalf("err = %v, want ErrParseFailed", err)
	}
}

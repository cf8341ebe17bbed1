package parse

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	acqdomain "github.com/veldtax/veldtax/internal/acquisition/domain"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
	"golang.org/x/net/html"
)

var (
	lineRange = regexp.MustCompile(`^(\d{1,3}(?:[ ,  ]\d{3})*)\s*[–\-—]\s*(\d{1,3}(?:[ ,  ]\d{3})*)\s+(.*\d\s*%.*)$`)
	lineOpen  = regexp.MustCompile(`(?i)^(\d{1,3}(?:[ ,  ]\d{3})*)\s+and\s+above\s+(.*\d\s*%.*)$`)

	calendarYear = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	parenthetic  = regexp.MustCompile(`\([^)]*\)`)

	// Thousands groups are space-separated in published figures, so a
	// number is digit groups of exactly three after the first. Currency
	// prefixes, when present, are an unambiguous column boundary.
	amountToken   = regexp.MustCompile(`\d{1,3}(?:[ ,  ]\d{3})*(?:\.\d+)?`)
	currencyToken = regexp.MustCompile(`R\s*(\d[\d ,  ]*(?:\.\d+)?)`)

	under65Line = regexp.MustCompile(`(?i)^under\s+65\b(.*)$`)
	age65Line   = regexp.MustCompile(`(?i)^65\s+an[d]?\s+older\b(.*)$`)
	age75Line   = regexp.MustCompile(`(?i)^75\s+and\s+older\b(.*)$`)
)

// TableFromText re-reads the page as plain text, tolerating markup the
// HTML parser no longer recognises. Same output contract as Table.
func TableFromText(body []byte, year fiscalyear.Year) (*rulesdomain.RuleTable, error) {
	lines := textLines(body)
	table := &rulesdomain.RuleTable{Year: year}

	brackets, err := textBrackets(lines, year)
	if err != nil {
		return nil, err
	}
	table.Brackets = brackets

	if err := textSets(table, lines, year); err != nil {
		return nil, err
	}
	return table, nil
}

// textLines strips markup and returns the page's non-empty text lines.
func textLines(body []byte) []string {
	var lines []string
	doc, err := html.Parse(bytes.NewReader(body))
	if err == nil {
		var sb strings.Builder
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode {
				switch n.Data {
				case "script", "style":
					return
				}
			}
			if n.Type == html.TextNode {
				sb.WriteString(n.Data)
				sb.WriteString("\n")
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc)
		body = []byte(sb.String())
	}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.Join(strings.Fields(scanner.Text()), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func textBrackets(lines []string, year fiscalyear.Year) ([]rulesdomain.TaxBracket, error) {
	endYear := strconv.Itoa(year.EndYear())
	inSection := false
	var brackets []rulesdomain.TaxBracket
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if m := taxYearHeading.FindStringSubmatch(line); m != nil {
			if inSection && len(brackets) > 0 {
				break
			}
			inSection = m[1] == endYear
			continue
		}
		if !inSection {
			continue
		}
		if m := lineRange.FindStringSubmatch(line); m != nil {
			b, ok := parseBracketRow(m[1]+" – "+m[2], m[3], year)
			if ok {
				brackets = append(brackets, b)
			}
			continue
		}
		if m := lineOpen.FindStringSubmatch(line); m != nil {
			b, ok := parseBracketRow(m[1]+" and above", m[2], year)
			if ok {
				brackets = append(brackets, b)
			}
			continue
		}
		// Tag stripping puts each table cell on its own line, so a bare
		// range is paired with the rate line that follows it.
		if i+1 < len(lines) && (rangePattern.MatchString(line) || openPattern.MatchString(line)) &&
			percentPattern.MatchString(lines[i+1]) {
			b, ok := parseBracketRow(line, lines[i+1], year)
			if ok {
				brackets = append(brackets, b)
				i++
			}
		}
	}
	if len(brackets) == 0 {
		return nil, fmt.Errorf("%w: no bracket lines for %s", acqdomain.ErrParseFailed, year)
	}
	return brackets, nil
}

// textSets reads the rebate, threshold and medical figures. Each label
// line carries one amount per published year column; the column is
// picked by the position of the closing calendar year on the nearest
// preceding header line.
func textSets(table *rulesdomain.RuleTable, lines []string, year fiscalyear.Year) error {
	var (
		rebates    []decimal.Decimal
		thresholds []int64
		medical    []decimal.Decimal
		col        = 0
	)
	for _, line := range lines {
		if years := calendarYear.FindAllString(line, -1); len(years) > 1 {
			col = columnOf(years, year.EndYear())
			continue
		}
		stripped := strings.TrimSpace(parenthetic.ReplaceAllString(line, ""))
		switch {
		case len(rebates) == 0 && primaryRow.MatchString(stripped):
			rebates = appendAmountAt(rebates, stripped, col)
		case len(rebates) == 1 && secondaryRow.MatchString(stripped):
			rebates = appendAmountAt(rebates, stripped, col)
		case len(rebates) == 2 && tertiaryRow.MatchString(stripped):
			rebates = appendAmountAt(rebates, stripped, col)
		case len(thresholds) == 0 && under65Line.MatchString(stripped):
			thresholds = appendLimitAt(thresholds, under65Line.FindStringSubmatch(stripped)[1], col)
		case len(thresholds) == 1 && age65Line.MatchString(stripped):
			thresholds = appendLimitAt(thresholds, age65Line.FindStringSubmatch(stripped)[1], col)
		case len(thresholds) == 2 && age75Line.MatchString(stripped):
			thresholds = appendLimitAt(thresholds, age75Line.FindStringSubmatch(stripped)[1], col)
		case len(medical) == 0 && mainRow.MatchString(stripped):
			medical = appendAmountAt(medical, stripped, col)
		case len(medical) == 1 && additionalRow.MatchString(stripped):
			medical = appendAmountAt(medical, stripped, col)
		}
	}

	if len(rebates) != 3 || len(thresholds) != 3 || len(medical) != 2 {
		return fmt.Errorf("%w: incomplete figures for %s (rebates %d, thresholds %d, medical %d)",
			acqdomain.ErrParseFailed, table.Year, len(rebates), len(thresholds), len(medical))
	}
	table.Rebates = rulesdomain.RebateSet{
		TaxYear:   table.Year.String(),
		Primary:   rebates[0],
		Secondary: rebates[1],
		Tertiary:  rebates[2],
	}
	table.Thresholds = rulesdomain.ThresholdSet{
		TaxYear:   table.Year.String(),
		Under65:   thresholds[0],
		Age65To74: thresholds[1],
		Age75Plus: thresholds[2],
	}
	table.MedicalCredits = rulesdomain.MedicalCreditSet{
		TaxYear:          table.Year.String(),
		MainMember:       medical[0],
		AdditionalMember: medical[1],
	}
	return nil
}

func columnOf(years []string, endYear int) int {
	want := strconv.Itoa(endYear)
	for i, y := range years {
		if y == want {
			return i
		}
	}
	return 0
}

func amountsIn(s string) []string {
	if m := currencyToken.FindAllStringSubmatch(s, -1); len(m) > 0 {
		out := make([]string, 0, len(m))
		for _, g := range m {
			out = append(out, strings.TrimSpace(g[1]))
		}
		return out
	}
	return amountToken.FindAllString(s, -1)
}

func appendAmountAt(dst []decimal.Decimal, line string, col int) []decimal.Decimal {
	amounts := amountsIn(line)
	if col >= len(amounts) {
		return dst
	}
	v, ok := parseAmount(amounts[col])
	if !ok {
		return dst
	}
	return append(dst, v)
}

func appendLimitAt(dst []int64, rest string, col int) []int64 {
	amounts := amountsIn(rest)
	if col >= len(amounts) {
		return dst
	}
	v, ok := parseLimit(amounts[col])
	if !ok {
		return dst
	}
	return append(dst, v)
}

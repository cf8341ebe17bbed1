// Package parse turns published rates pages into rule tables. The HTML
// parser reads the page's table markup; the text parser re-reads the
// same bytes with layout-insensitive regexes when the markup changes
// under us.
package parse

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	acqdomain "github.com/veldtax/veldtax/internal/acquisition/domain"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
	"golang.org/x/net/html"
)

// block is one document-order unit: a heading's text or a table's cells.
type block struct {
	heading string
	rows    [][]string
}

var (
	taxYearHeading = regexp.MustCompile(`(?i)\b(\d{4})\s+tax\s+year`)
	rangePattern   = regexp.MustCompile(`^([\d\s  ,]+?)\s*[–\-—]\s*([\d\s  ,]+)$`)
	openPattern    = regexp.MustCompile(`(?i)^([\d\s  ,]+?)\s*(?:and\s+above|\+)$`)
	basePattern    = regexp.MustCompile(`^([\d\s  ,]+?)\s*\+`)

	rebateHeader    = regexp.MustCompile(`(?i)tax\s+rebate`)
	thresholdHeader = regexp.MustCompile(`(?i)tax\s+threshold|person`)
	medicalHeader   = regexp.MustCompile(`(?i)medical\s+(?:scheme\s+fees\s+)?(?:tax\s+)?credit|per\s+month`)

	primaryRow    = regexp.MustCompile(`(?i)^primary`)
	secondaryRow  = regexp.MustCompile(`(?i)^secondary`)
	tertiaryRow   = regexp.MustCompile(`(?i)^tertiary`)
	under65Row    = regexp.MustCompile(`(?i)under\s+65`)
	age65Row      = regexp.MustCompile(`(?i)^65\b`)
	age75Row      = regexp.MustCompile(`(?i)^75\b`)
	mainRow       = regexp.MustCompile(`(?i)main\s+member|for\s+the\s+taxpayer`)
	additionalRow = regexp.MustCompile(`(?i)additional|dependant`)
)

// Table extracts the rule table for one year from a rates page.
func Table(body []byte, year fiscalyear.Year) (*rulesdomain.RuleTable, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", acqdomain.ErrParseFailed, err)
	}
	blocks := collectBlocks(doc)

	table := &rulesdomain.RuleTable{Year: year}

	brackets, err := bracketsFor(blocks, year)
	if err != nil {
		return nil, err
	}
	table.Brackets = brackets

	if err := fillSets(table, blocks, year); err != nil {
		return nil, err
	}
	return table, nil
}

// collectBlocks flattens the document into headings and tables in
// document order.
func collectBlocks(doc *html.Node) []block {
	var blocks []block
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5":
				blocks = append(blocks, block{heading: nodeText(n)})
				return
			case "table":
				blocks = append(blocks, block{rows: tableRows(n)})
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return blocks
}

func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				collectCells(c, &cells)
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

func collectCells(n *html.Node, cells *[]string) {
	if n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th") {
		*cells = append(*cells, nodeText(n))
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectCells(c, cells)
	}
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// bracketsFor finds the bracket table under the heading naming the
// fiscal year's closing calendar year.
func bracketsFor(blocks []block, year fiscalyear.Year) ([]rulesdomain.TaxBracket, error) {
	endYear := strconv.Itoa(year.EndYear())
	inSection := false
	for _, b := range blocks {
		if b.heading != "" {
			m := taxYearHeading.FindStringSubmatch(b.heading)
			inSection = m != nil && m[1] == endYear
			continue
		}
		if !inSection || len(b.rows) == 0 {
			continue
		}
		brackets := parseBracketRows(b.rows, year)
		if len(brackets) > 0 {
			return brackets, nil
		}
	}
	return nil, fmt.Errorf("%w: no bracket table for %s", acqdomain.ErrParseFailed, year)
}

func parseBracketRows(rows [][]string, year fiscalyear.Year) []rulesdomain.TaxBracket {
	var brackets []rulesdomain.TaxBracket
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		b, ok := parseBracketRow(row[0], row[1], year)
		if !ok {
			continue
		}
		brackets = append(brackets, b)
	}
	return brackets
}

// parseBracketRow reads a "237 101 – 370 500" / "42 678 + 26% of
// taxable income above 237 100" row pair.
func parseBracketRow(rangeCell, taxCell string, year fiscalyear.Year) (rulesdomain.TaxBracket, bool) {
	var b rulesdomain.TaxBracket
	b.TaxYear = year.String()

	rangeCell = strings.TrimSpace(rangeCell)
	if m := rangePattern.FindStringSubmatch(rangeCell); m != nil {
		lower, okL := parseLimit(m[1])
		upper, okU := parseLimit(m[2])
		if !okL || !okU {
			return b, false
		}
		b.LowerLimit = lower
		b.UpperLimit = &upper
	} else if m := openPattern.FindStringSubmatch(rangeCell); m != nil {
		lower, ok := parseLimit(m[1])
		if !ok {
			return b, false
		}
		b.LowerLimit = lower
	} else {
		return b, false
	}

	rate, ok := parseRate(taxCell)
	if !ok {
		return b, false
	}
	b.Rate = rate

	if m := basePattern.FindStringSubmatch(strings.TrimSpace(taxCell)); m != nil {
		base, ok := parseAmount(m[1])
		if !ok {
			return b, false
		}
		b.BaseAmount = base
	}
	return b, true
}

// fillSets reads the rebate, threshold and medical-credit tables, all
// laid out with one column per closing calendar year.
func fillSets(table *rulesdomain.RuleTable, blocks []block, year fiscalyear.Year) error {
	var haveRebates, haveThresholds, haveMedical bool
	for _, b := range blocks {
		if len(b.rows) < 2 {
			continue
		}
		header := b.rows[0]
		switch {
		case !haveRebates && matchesHeader(header, rebateHeader):
			if readRebates(table, b.rows, year) {
				haveRebates = true
			}
		case !haveThresholds && matchesHeader(header, thresholdHeader):
			if readThresholds(table, b.rows, year) {
				haveThresholds = true
			}
		case !haveMedical && matchesHeader(header, medicalHeader):
			if readMedical(table, b.rows, year) {
				haveMedical = true
			}
		}
	}
	switch {
	case !haveRebates:
		return fmt.Errorf("%w: no rebate table for %s", acqdomain.ErrParseFailed, table.Year)
	case !haveThresholds:
		return fmt.Errorf("%w: no threshold table for %s", acqdomain.ErrParseFailed, table.Year)
	case !haveMedical:
		return fmt.Errorf("%w: no medical credit table for %s", acqdomain.ErrParseFailed, table.Year)
	}
	return nil
}

func matchesHeader(header []string, pattern *regexp.Regexp) bool {
	for _, cell := range header {
		if pattern.MatchString(cell) {
			return true
		}
	}
	return false
}

// yearColumn finds the header column for the fiscal year's closing
// calendar year, defaulting to the first value column.
func yearColumn(header []string, year fiscalyear.Year) int {
	want := strconv.Itoa(year.EndYear())
	for i, cell := range header {
		if strings.Contains(cell, want) {
			return i
		}
	}
	return 1
}

func rowAmount(rows [][]string, label *regexp.Regexp, col int) (v string, ok bool) {
	for _, row := range rows[1:] {
		if len(row) == 0 || !label.MatchString(row[0]) {
			continue
		}
		if col < len(row) {
			return row[col], true
		}
	}
	return "", false
}

func readRebates(table *rulesdomain.RuleTable, rows [][]string, year fiscalyear.Year) bool {
	col := yearColumn(rows[0], year)
	p, okP := rowAmount(rows, primaryRow, col)
	s, okS := rowAmount(rows, secondaryRow, col)
	t, okT := rowAmount(rows, tertiaryRow, col)
	if !okP || !okS || !okT {
		return false
	}
	primary, okP := parseAmount(p)
	secondary, okS := parseAmount(s)
	tertiary, okT := parseAmount(t)
	if !okP || !okS || !okT {
		return false
	}
	table.Rebates = rulesdomain.RebateSet{
		TaxYear:   table.Year.String(),
		Primary:   primary,
		Secondary: secondary,
		Tertiary:  tertiary,
	}
	return true
}

func readThresholds(table *rulesdomain.RuleTable, rows [][]string, year fiscalyear.Year) bool {
	col := yearColumn(rows[0], year)
	u, okU := rowAmount(rows, under65Row, col)
	m, okM := rowAmount(rows, age65Row, col)
	o, okO := rowAmount(rows, age75Row, col)
	if !okU || !okM || !okO {
		return false
	}
	under, okU := parseLimit(u)
	mid, okM := parseLimit(m)
	older, okO := parseLimit(o)
	if !okU || !okM || !okO {
		return false
	}
	table.Thresholds = rulesdomain.ThresholdSet{
		TaxYear:   table.Year.String(),
		Under65:   under,
		Age65To74: mid,
		Age75Plus: older,
	}
	return true
}

func readMedical(table *rulesdomain.RuleTable, rows [][]string, year fiscalyear.Year) bool {
	col := yearColumn(rows[0], year)
	m, okM := rowAmount(rows, mainRow, col)
	a, okA := rowAmount(rows, additionalRow, col)
	if !okM || !okA {
		return false
	}
	main, okM := parseAmount(m)
	additional, okA := parseAmount(a)
	if !okM || !okA {
		return false
	}
	table.MedicalCredits = rulesdomain.MedicalCreditSet{
		TaxYear:          table.Year.String(),
		MainMember:       main,
		AdditionalMember: additional,
	}
	return true
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
)

type taxBracketView struct {
	LowerLimit int64           `json:"lower_limit"`
	UpperLimit *int64          `json:"upper_limit,omitempty"`
	Rate       decimal.Decimal `json:"rate"`
	BaseAmount decimal.Decimal `json:"base_amount"`
}

type ruleTableView struct {
	TaxYear  string           `json:"tax_year"`
	Source   string           `json:"source"`
	Stale    bool             `json:"stale,omitempty"`
	Brackets []taxBracketView `json:"brackets"`
	Rebates  struct {
		Primary   decimal.Decimal `json:"primary"`
		Secondary decimal.Decimal `json:"secondary"`
		Tertiary  decimal.Decimal `json:"tertiary"`
	} `json:"rebates"`
	Thresholds struct {
		Under65   int64 `json:"under_65"`
		Age65To74 int64 `json:"age_65_to_74"`
		Age75Plus int64 `json:"age_75_plus"`
	} `json:"thresholds"`
	MedicalCredits struct {
		MainMember       decimal.Decimal `json:"main_member"`
		AdditionalMember decimal.Decimal `json:"additional_member"`
	} `json:"medical_credits"`
}

func (s *Server) GetTaxBrackets(c *gin.Context) {
	year, err := s.yearFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	table, err := s.rulesRepo.Get(ctx, year)
	if errors.Is(err, rulesdomain.ErrNoRuleTable) {
		table, err = s.acquisitionSvc.Ensure(ctx, year)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ruleTableResponse(table)})
}

type refreshTaxDataRequest struct {
	TaxYear string `json:"tax_year"`
	Force   bool   `json:"force"`
}

func (s *Server) RefreshTaxData(c *gin.Context) {
	var req refreshTaxDataRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	year, err := s.yearFromBody(req.TaxYear)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.acquisitionSvc.Run(c.Request.Context(), year, req.Force)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func ruleTableResponse(table *rulesdomain.RuleTable) ruleTableView {
	view := ruleTableView{
		TaxYear:  table.Year.String(),
		Source:   string(table.Source),
		Stale:    table.Stale,
		Brackets: make([]taxBracketView, 0, len(table.Brackets)),
	}
	for _, b := range table.Brackets {
		view.Brackets = append(view.Brackets, taxBracketView{
			LowerLimit: b.LowerLimit,
			UpperLimit: b.UpperLimit,
			Rate:       b.Rate,
			BaseAmount: b.BaseAmount,
		})
	}
	view.Rebates.Primary = table.Rebates.Primary
	view.Rebates.Secondary = table.Rebates.Secondary
	view.Rebates.Tertiary = table.Rebates.Tertiary
	view.Thresholds.Under65 = table.Thresholds.Under65
	view.Thresholds.Age65To74 = table.Thresholds.Age65To74
	view.Thresholds.Age75Plus = table.Thresholds.Age75Plus
	view.MedicalCredits.MainMember = table.MedicalCredits.MainMember
	view.MedicalCredits.AdditionalMember = table.MedicalCredits.AdditionalMember
	return view
}

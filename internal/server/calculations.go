package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	taxcalcdomain "github.com/veldtax/veldtax/internal/taxcalc/domain"
)

func (s *Server) GetTaxCalculation(c *gin.Context) {
	year, err := s.yearFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.taxcalcSvc.ComputeLiability(c.Request.Context(), c.Param("id"), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ComputeScenario(c *gin.Context) {
	var req taxcalcdomain.ScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.TaxYear == "" {
		req.TaxYear = fiscalyear.Current(s.clk).String()
	}

	resp, err := s.taxcalcSvc.ComputeScenario(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProvisionalTax(c *gin.Context) {
	year, err := s.yearFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// An assessed liability turns under-estimation into a third payment
	// due with the annual return.
	var assessed *decimal.Decimal
	if raw := c.Query("assessed"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil || amount.IsNegative() {
			AbortWithError(c, newValidationError("assessed", "invalid_amount", "invalid value"))
			return
		}
		assessed = &amount
	}

	resp, err := s.provisionalSvc.ScheduleFor(c.Request.Context(), c.Param("id"), year, assessed)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
)

func (s *Server) AddIncome(c *gin.Context) {
	var req taxpayerdomain.AddIncomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TaxpayerID = c.Param("id")
	if req.TaxYear == "" {
		req.TaxYear = fiscalyear.Current(s.clk).String()
	}

	resp, err := s.taxpayerSvc.AddIncome(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListIncome(c *gin.Context) {
	year, err := s.yearFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.taxpayerSvc.ListIncome(c.Request.Context(), c.Param("id"), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteIncome(c *gin.Context) {
	err := s.taxpayerSvc.DeleteIncome(c.Request.Context(), c.Param("id"), c.Param("incomeId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

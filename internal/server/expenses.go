package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
)

func (s *Server) AddExpense(c *gin.Context) {
	var req taxpayerdomain.AddExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TaxpayerID = c.Param("id")
	if req.TaxYear == "" {
		req.TaxYear = fiscalyear.Current(s.clk).String()
	}

	resp, err := s.taxpayerSvc.AddExpense(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListExpenses(c *gin.Context) {
	year, err := s.yearFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.taxpayerSvc.ListExpenses(c.Request.Context(), c.Param("id"), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteExpense(c *gin.Context) {
	err := s.taxpayerSvc.DeleteExpense(c.Request.Context(), c.Param("id"), c.Param("expenseId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) ListExpenseTypes(c *gin.Context) {
	resp, err := s.taxpayerSvc.ListExpenseTypes(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

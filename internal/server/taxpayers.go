package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
)

func (s *Server) RegisterTaxpayer(c *gin.Context) {
	var req taxpayerdomain.RegisterTaxpayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.taxpayerSvc.RegisterTaxpayer(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetTaxpayer(c *gin.Context) {
	resp, err := s.taxpayerSvc.GetTaxpayer(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// yearFromQuery resolves the tax_year query parameter, defaulting to the
// current fiscal year.
func (s *Server) yearFromQuery(c *gin.Context) (fiscalyear.Year, error) {
	label := c.Query("tax_year")
	if label == "" {
		return fiscalyear.Current(s.clk), nil
	}
	return fiscalyear.Parse(label)
}

func (s *Server) yearFromBody(label string) (fiscalyear.Year, error) {
	if label == "" {
		return fiscalyear.Current(s.clk), nil
	}
	return fiscalyear.Parse(label)
}

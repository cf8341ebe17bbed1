package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
)

const (
	headerTaxpayerID = "X-Taxpayer-ID"
	headerAdmin      = "X-Admin"
	headerAdminToken = "X-Admin-Token"
)

// TaxpayerScoped gates taxpayer-addressed routes. The trusted gateway in
// front of this service authenticates and injects X-Taxpayer-ID; here we
// only check it matches the addressed resource.
func (s *Server) TaxpayerScoped() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := strings.TrimSpace(c.GetHeader(headerTaxpayerID))
		if caller == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if caller != strings.TrimSpace(c.Param("id")) {
			AbortWithError(c, taxpayerdomain.ErrNotOwner)
			return
		}
		c.Next()
	}
}

// AdminRequired gates the admin surface. The trusted gateway marks admin
// callers with X-Admin; a configured token tightens the gate to callers
// presenting it.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := s.cfg.AdminToken; token != "" {
			presented := strings.TrimSpace(c.GetHeader(headerAdminToken))
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			c.Next()
			return
		}

		if !strings.EqualFold(strings.TrimSpace(c.GetHeader(headerAdmin)), "true") {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

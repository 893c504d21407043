package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	referencedomain "github.com/smallbiznis/pawnshop/internal/reference/domain"
)

func (s *Server) ListKarats(c *gin.Context) {
	karats, err := s.referenceSvc.ListKarats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": karats})
}

func (s *Server) ListLoanPeriods(c *gin.Context) {
	periods, err := s.referenceSvc.ListLoanPeriods(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": periods})
}

func (s *Server) ListPricings(c *gin.Context) {
	karatID, err := parseOptionalSnowflakeID(c.Query("karat_id"))
	if err != nil {
		AbortWithError(c, newValidationError("karat_id", "invalid_karat_id", "invalid karat_id"))
		return
	}

	pricings, err := s.referenceSvc.ListPricings(c.Request.Context(), karatID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pricings})
}

type estimateRequest struct {
	KaratID string          `json:"karat_id"`
	Weight  decimal.Decimal `json:"weight"`
}

func (s *Server) EstimateValue(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	karatID, err := parseSnowflakeID(req.KaratID)
	if err != nil {
		AbortWithError(c, newValidationError("karat_id", "invalid_karat_id", "invalid karat_id"))
		return
	}

	estimate, err := s.referenceSvc.EstimateValue(c.Request.Context(), nil, referencedomain.EstimateRequest{
		KaratID: karatID,
		Weight:  req.Weight,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": estimate})
}

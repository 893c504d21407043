package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetLoanInfo(c *gin.Context) {
	info, err := s.pawnSvc.ProcessInstallments(c.Request.Context(), strings.TrimSpace(c.Param("invoice_no")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": info})
}

func (s *Server) GetInstallmentSchedule(c *gin.Context) {
	schedule, err := s.pawnSvc.InstallmentSchedule(c.Request.Context(), strings.TrimSpace(c.Param("invoice_no")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": schedule})
}

func (s *Server) ListLedgerBalances(c *gin.Context) {
	balances, err := s.ledgerSvc.Balances(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balances})
}

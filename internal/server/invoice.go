package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obslogger "github.com/smallbiznis/pawnshop/internal/observability/logger"
	pawndomain "github.com/smallbiznis/pawnshop/internal/pawn/domain"
	"go.uber.org/zap"
)

// ProcessInvoice accepts the tagged request body and runs the matching workflow.
func (s *Server) ProcessInvoice(c *gin.Context) {
	var dto pawndomain.InvoiceRequestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req, err := pawndomain.DecodeInvoiceRequest(dto)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.pawnSvc.ProcessInvoice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	obslogger.WithInvoice(obslogger.FromContext(c.Request.Context()), result.InvoiceNo).
		Info("invoice processed", zap.String("invoice_type", req.InvoiceType().String()))

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) GetInvoice(c *gin.Context) {
	invoice, err := s.pawnSvc.GetInvoice(c.Request.Context(), strings.TrimSpace(c.Param("invoice_no")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) RenderInvoicePDF(c *gin.Context) {
	invoiceNo := strings.TrimSpace(c.Param("invoice_no"))
	body, err := s.pawnSvc.RenderInvoicePDF(c.Request.Context(), invoiceNo)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+invoiceNo+`.pdf"`)
	c.DataFromReader(http.StatusOK, -1, "application/pdf", body, nil)
}

func (s *Server) PlanVoidInvoice(c *gin.Context) {
	plan, err := s.pawnSvc.PlanVoid(c.Request.Context(), strings.TrimSpace(c.Param("invoice_no")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) VoidInvoice(c *gin.Context) {
	plan, err := s.pawnSvc.VoidInvoice(c.Request.Context(), strings.TrimSpace(c.Param("invoice_no")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

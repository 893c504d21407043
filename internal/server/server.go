package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/pawnshop/internal/audit/domain"
	"github.com/smallbiznis/pawnshop/internal/config"
	customerdomain "github.com/smallbiznis/pawnshop/internal/customer/domain"
	ledgerdomain "github.com/smallbiznis/pawnshop/internal/ledger/domain"
	"github.com/smallbiznis/pawnshop/internal/observability"
	obsmiddleware "github.com/smallbiznis/pawnshop/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/pawnshop/internal/observability/metrics"
	obstracing "github.com/smallbiznis/pawnshop/internal/observability/tracing"
	pawndomain "github.com/smallbiznis/pawnshop/internal/pawn/domain"
	referencedomain "github.com/smallbiznis/pawnshop/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	customerSvc  customerdomain.Service
	referenceSvc referencedomain.Service
	pawnSvc      pawndomain.Service
	auditSvc     auditdomain.Service
	ledgerSvc    ledgerdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	CustomerSvc  customerdomain.Service
	ReferenceSvc referencedomain.Service
	PawnSvc      pawndomain.Service
	AuditSvc     auditdomain.Service
	LedgerSvc    ledgerdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		customerSvc:  p.CustomerSvc,
		referenceSvc: p.ReferenceSvc,
		pawnSvc:      p.PawnSvc,
		auditSvc:     p.AuditSvc,
		ledgerSvc:    p.LedgerSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Reference data --------
	api.GET("/karats", s.ListKarats)
	api.GET("/loan-periods", s.ListLoanPeriods)
	api.GET("/pricings", s.ListPricings)
	api.POST("/estimates", s.EstimateValue)

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/by-nic/:nic", s.GetCustomerByNIC)
	api.GET("/customers/:id", s.GetCustomerByID)
	api.PATCH("/customers/:id", s.UpdateCustomer)
	api.GET("/customers/:id/report", s.GetCustomerReport)
	api.GET("/customers/:id/invoices", s.ListCustomerInvoices)

	// -------- Invoices --------
	api.POST("/invoices", s.ProcessInvoice)
	api.GET("/invoices/:invoice_no", s.GetInvoice)
	api.GET("/invoices/:invoice_no/pdf", s.RenderInvoicePDF)
	api.GET("/invoices/:invoice_no/void-plan", s.PlanVoidInvoice)
	api.POST("/invoices/:invoice_no/void", s.VoidInvoice)

	// -------- Loans --------
	api.GET("/loans/:invoice_no", s.GetLoanInfo)
	api.GET("/loans/:invoice_no/schedule", s.GetInstallmentSchedule)

	// -------- Back office --------
	api.GET("/audit-logs", s.ListAuditLogs)
	api.GET("/ledger/balances", s.ListLedgerBalances)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

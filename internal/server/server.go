package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/veldtax/veldtax/internal/acquisition"
	acquisitiondomain "github.com/veldtax/veldtax/internal/acquisition/domain"
	"github.com/veldtax/veldtax/internal/clock"
	"github.com/veldtax/veldtax/internal/config"
	"github.com/veldtax/veldtax/internal/lock"
	"github.com/veldtax/veldtax/internal/provisional"
	provisionaldomain "github.com/veldtax/veldtax/internal/provisional/domain"
	"github.com/veldtax/veldtax/internal/taxcalc"
	taxcalcdomain "github.com/veldtax/veldtax/internal/taxcalc/domain"
	"github.com/veldtax/veldtax/internal/taxpayer"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
	"github.com/veldtax/veldtax/internal/taxrules"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	lock.Module,
	taxrules.Module,
	taxpayer.Module,
	taxcalc.Module,
	provisional.Module,
	acquisition.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}

func registerGin(gatherer prometheus.Gatherer) *gin.Engine {
	return NewEngine(gatherer)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
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
	engine         *gin.Engine
	cfg            config.Config
	clk            clock.Clock
	taxpayerSvc    taxpayerdomain.Service
	taxcalcSvc     taxcalcdomain.Service
	provisionalSvc provisionaldomain.Service
	acquisitionSvc acquisitiondomain.Service
	rulesRepo      rulesdomain.Repository
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Clk            clock.Clock
	TaxpayerSvc    taxpayerdomain.Service
	TaxcalcSvc     taxcalcdomain.Service
	ProvisionalSvc provisionaldomain.Service
	AcquisitionSvc acquisitiondomain.Service
	RulesRepo      rulesdomain.Repository
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		clk:            p.Clk,
		taxpayerSvc:    p.TaxpayerSvc,
		taxcalcSvc:     p.TaxcalcSvc,
		provisionalSvc: p.ProvisionalSvc,
		acquisitionSvc: p.AcquisitionSvc,
		rulesRepo:      p.RulesRepo,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.GET("/tax-brackets", s.GetTaxBrackets)
	v1.GET("/expense-types", s.ListExpenseTypes)

	v1.POST("/taxpayers", s.RegisterTaxpayer)
	v1.POST("/tax-calculations/scenario", s.ComputeScenario)

	tp := v1.Group("/taxpayers/:id", s.TaxpayerScoped())
	{
		tp.GET("", s.GetTaxpayer)

		tp.POST("/income", s.AddIncome)
		tp.GET("/income", s.ListIncome)
		tp.DELETE("/income/:incomeId", s.DeleteIncome)

		tp.POST("/expenses", s.AddExpense)
		tp.GET("/expenses", s.ListExpenses)
		tp.DELETE("/expenses/:expenseId", s.DeleteExpense)

		tp.GET("/tax-calculation", s.GetTaxCalculation)
		tp.GET("/provisional-tax", s.GetProvisionalTax)
	}
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1/admin", s.AdminRequired())

	admin.POST("/tax-data", s.RefreshTaxData)
}

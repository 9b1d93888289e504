package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sitelane/materialflow/internal/alert"
	alertdomain "github.com/sitelane/materialflow/internal/alert/domain"
	"github.com/sitelane/materialflow/internal/assignment"
	assignmentdomain "github.com/sitelane/materialflow/internal/assignment/domain"
	"github.com/sitelane/materialflow/internal/audit"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/cache"
	"github.com/sitelane/materialflow/internal/config"
	"github.com/sitelane/materialflow/internal/document"
	"github.com/sitelane/materialflow/internal/inventory"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	"github.com/sitelane/materialflow/internal/material"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	"github.com/sitelane/materialflow/internal/observability"
	obsmiddleware "github.com/sitelane/materialflow/internal/observability/logger"
	obsmetrics "github.com/sitelane/materialflow/internal/observability/metrics"
	obstracing "github.com/sitelane/materialflow/internal/observability/tracing"
	"github.com/sitelane/materialflow/internal/providers"
	"github.com/sitelane/materialflow/internal/providers/pdf"
	"github.com/sitelane/materialflow/internal/ratelimit"
	"github.com/sitelane/materialflow/internal/reallocation"
	reallocationdomain "github.com/sitelane/materialflow/internal/reallocation/domain"
	"github.com/sitelane/materialflow/internal/scheduler"
	"github.com/sitelane/materialflow/internal/stockadjustment"
	stockadjustmentdomain "github.com/sitelane/materialflow/internal/stockadjustment/domain"
	"github.com/sitelane/materialflow/internal/usage"
	usagedomain "github.com/sitelane/materialflow/internal/usage/domain"
	"github.com/sitelane/materialflow/internal/warehouse"
	warehousedomain "github.com/sitelane/materialflow/internal/warehouse/domain"
	"github.com/sitelane/materialflow/internal/workorder"
	workorderdomain "github.com/sitelane/materialflow/internal/workorder/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	material.Module,
	warehouse.Module,
	workorder.Module,
	inventory.Module,
	assignment.Module,
	usage.Module,
	reallocation.Module,
	stockadjustment.Module,
	alert.Module,
	document.Module,
	cache.Module,
	providers.Module,
	ratelimit.Module,
	scheduler.Module,
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

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
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
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	auditSvc           auditdomain.Service
	materialSvc        materialdomain.Service
	warehouseSvc       warehousedomain.Service
	workOrderSvc       workorderdomain.Service
	inventorySvc       inventorydomain.Service
	assignmentSvc      assignmentdomain.Service
	usageSvc           usagedomain.Service
	reallocationSvc    reallocationdomain.Service
	stockAdjustmentSvc stockadjustmentdomain.Service
	alertSvc           alertdomain.Service
	documentSvc        document.Service
	pdfProvider        pdf.Provider
	stockCache         cache.StockReadCache
	obsMetrics         *obsmetrics.Metrics
	writeLimiter       *ratelimit.WriteLimiter
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	GenID *snowflake.Node

	AuditSvc           auditdomain.Service
	MaterialSvc        materialdomain.Service
	WarehouseSvc       warehousedomain.Service
	WorkOrderSvc       workorderdomain.Service
	InventorySvc       inventorydomain.Service
	AssignmentSvc      assignmentdomain.Service
	UsageSvc           usagedomain.Service
	ReallocationSvc    reallocationdomain.Service
	StockAdjustmentSvc stockadjustmentdomain.Service
	AlertSvc           alertdomain.Service
	DocumentSvc        document.Service
	PDFProvider        pdf.Provider
	StockCache         cache.StockReadCache
	ObsMetrics         *obsmetrics.Metrics     `optional:"true"`
	WriteLimiter       *ratelimit.WriteLimiter `optional:"true"`

	Scheduler *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:             p.Gin,
		cfg:                p.Cfg,
		db:                 p.DB,
		genID:              p.GenID,
		auditSvc:           p.AuditSvc,
		materialSvc:        p.MaterialSvc,
		warehouseSvc:       p.WarehouseSvc,
		workOrderSvc:       p.WorkOrderSvc,
		inventorySvc:       p.InventorySvc,
		assignmentSvc:      p.AssignmentSvc,
		usageSvc:           p.UsageSvc,
		reallocationSvc:    p.ReallocationSvc,
		stockAdjustmentSvc: p.StockAdjustmentSvc,
		alertSvc:           p.AlertSvc,
		documentSvc:        p.DocumentSvc,
		pdfProvider:        p.PDFProvider,
		stockCache:         p.StockCache,
		obsMetrics:         p.ObsMetrics,
		writeLimiter:       p.WriteLimiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")
	api.Use(ActorMiddleware())

	materials := api.Group("/materials")
	materials.GET("", s.ListMaterials)
	materials.POST("", ActorRequired(), s.CreateMaterial)
	materials.GET("/:id", s.GetMaterial)
	materials.PATCH("/:id", ActorRequired(), s.UpdateMaterial)
	materials.DELETE("/:id", ActorRequired(), s.DeactivateMaterial)
	materials.GET("/:id/stock", s.GetStockLevel)
	materials.GET("/:id/stock/status", s.GetStockStatus)
	materials.GET("/:id/availability", s.CheckAvailability)

	warehouses := api.Group("/warehouses")
	warehouses.GET("", s.ListWarehouses)
	warehouses.POST("", ActorRequired(), s.CreateWarehouse)
	warehouses.GET("/:id", s.GetWarehouse)
	warehouses.PATCH("/:id", ActorRequired(), s.UpdateWarehouse)
	warehouses.DELETE("/:id", ActorRequired(), s.DeactivateWarehouse)

	workOrders := api.Group("/work-orders")
	workOrders.GET("", s.ListWorkOrders)
	workOrders.POST("", ActorRequired(), s.CreateWorkOrder)
	workOrders.GET("/:id", s.GetWorkOrder)
	workOrders.PUT("/:id/status", ActorRequired(), s.SetWorkOrderStatus)
	workOrders.GET("/:id/assignments", s.ListAssignmentsByWorkOrder)
	workOrders.GET("/:id/usage-summary.pdf", s.UsageSummaryPDF)

	assignments := api.Group("/assignments")
	assignments.POST("", ActorRequired(), s.CreateAssignment)
	assignments.GET("/:id", s.GetAssignment)
	assignments.POST("/:id/transition", ActorRequired(), s.TransitionAssignment)
	assignments.POST("/:id/override", ActorRequired(), s.OverrideAssignmentStatus)
	assignments.GET("/:id/progress", s.GetAssignmentProgress)
	assignments.GET("/:id/usage-records", s.ListUsageRecords)
	assignments.POST("/:id/usage-records", ActorRequired(), s.writeRateLimit("usage_records"), s.RecordUsage)
	assignments.POST("/:id/site-issue", ActorRequired(), s.writeRateLimit("site_issue"), s.RecordSiteIssue)
	assignments.POST("/:id/disposition", ActorRequired(), s.writeRateLimit("disposition"), s.RecordDisposition)
	assignments.GET("/:id/issue-note.pdf", s.IssueNotePDF)

	reallocations := api.Group("/reallocations")
	reallocations.GET("", s.ListReallocations)
	reallocations.POST("", ActorRequired(), s.RequestReallocation)
	reallocations.GET("/:id", s.GetReallocation)
	reallocations.POST("/:id/approve", ActorRequired(), s.ApproveReallocation)
	reallocations.POST("/:id/reject", ActorRequired(), s.RejectReallocation)
	reallocations.POST("/:id/execute", ActorRequired(), s.writeRateLimit("reallocation_execute"), s.ExecuteReallocation)

	adjustments := api.Group("/stock-adjustments")
	adjustments.GET("", s.ListStockAdjustments)
	adjustments.POST("", ActorRequired(), s.SubmitStockAdjustment)
	adjustments.GET("/:id", s.GetStockAdjustment)
	adjustments.POST("/:id/approve", ActorRequired(), s.ApproveStockAdjustment)
	adjustments.POST("/:id/reject", ActorRequired(), s.RejectStockAdjustment)
	adjustments.POST("/:id/apply", ActorRequired(), s.writeRateLimit("adjustment_apply"), s.ApplyStockAdjustment)

	api.GET("/alerts", s.ListStockAlerts)
	api.GET("/audit-logs", s.ListAuditLogs)

	documents := api.Group("/documents")
	documents.POST("", ActorRequired(), s.UploadDocument)
	documents.GET("/:id", s.DownloadDocument)
}

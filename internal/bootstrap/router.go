package bootstrap

import (
	"database/sql"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vendortrack/vendorperf/config"
	httpapi "github.com/vendortrack/vendorperf/internal/api/http"
	"github.com/vendortrack/vendorperf/internal/api/http/admin"
	"github.com/vendortrack/vendorperf/internal/api/http/middleware"
	"github.com/vendortrack/vendorperf/internal/projects"
	"github.com/vendortrack/vendorperf/internal/ratings"
	"github.com/vendortrack/vendorperf/internal/reconcile"
	reconcilerepo "github.com/vendortrack/vendorperf/internal/reconcile/repository"
	"github.com/vendortrack/vendorperf/internal/vendors"
	vendorrepo "github.com/vendortrack/vendorperf/internal/vendors/repository"
)

type RouterDeps struct {
	ServiceName string
	Config      *config.Config
	DB          *pgxpool.Pool
	SQLDB       *sql.DB
	Redis       *redis.Client
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()
	r.Use(cors.Default())
	r.Use(middleware.RequestID())

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Config.App.Version, dep.DB, dep.SQLDB)
	healthHandler.RegisterRoutes(r)

	projectRepo := projects.NewRepo(dep.DB)
	ratingRepo := ratings.NewRepo(dep.DB)
	auditRepo := reconcilerepo.NewAuditRepository(dep.SQLDB)
	summaryRepo := vendorrepo.NewSummaryRepository(dep.SQLDB)

	var cache vendors.SummaryCache
	if dep.Redis != nil {
		cache = vendorrepo.NewCacheRepository(dep.Redis)
	}

	driver := projects.NewDriver(projectRepo, ratingRepo)

	engine := reconcile.NewEngine(
		projectRepo, ratingRepo,
		reconcilerepo.NewDeltaWriter(dep.DB),
		auditRepo,
		dep.Config.Reconcile.ImportWindow,
	)

	vendorService := vendors.NewService(projectRepo, ratingRepo, summaryRepo, cache, vendors.Thresholds{
		TopMin: dep.Config.Reconcile.TierTopMin,
		MidMin: dep.Config.Reconcile.TierMidMin,
	})

	api := r.Group("/api/v1")

	projectsGroup := api.Group("/projects")
	projects.Register(projectsGroup, projectRepo, ratingRepo, driver)

	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.APIKey(dep.Config.Server.AdminKey))
	adminGroup.Use(middleware.RateLimit(dep.Config.Server.RateLimit, dep.Config.Server.RateBurst))

	adminHandler := admin.New(engine, vendorService, auditRepo, projectRepo, auditRepo)
	adminHandler.Register(adminGroup)

	return r
}

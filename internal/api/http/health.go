package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	DB        string    `json:"db,omitempty"`
	SummaryDB string    `json:"summary_db,omitempty"`
}

// HealthHandler pings both storage paths: the pgx pool carrying the project
// and rating populations, and the database/sql handle behind the summary
// and audit repositories.
type HealthHandler struct {
	serviceName string
	version     string
	db          *pgxpool.Pool
	summaryDB   *sql.DB
}

func NewHealthHandler(serviceName, version string, db *pgxpool.Pool, summaryDB *sql.DB) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		db:          db,
		summaryDB:   summaryDB,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	pingCtx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
	defer cancel()

	dbStatus := "disabled"
	if h.db != nil {
		dbStatus = "up"
		if err := h.db.Ping(pingCtx); err != nil {
			dbStatus = "down"
		}
	}

	summaryStatus := "disabled"
	if h.summaryDB != nil {
		summaryStatus = "up"
		if err := h.summaryDB.PingContext(pingCtx); err != nil {
			summaryStatus = "down"
		}
	}

	status := "healthy"
	if dbStatus == "down" || summaryStatus == "down" {
		status = "degraded"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
		DB:        dbStatus,
		SummaryDB: summaryStatus,
	})
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}

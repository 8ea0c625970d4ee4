// Package admin exposes the operator trigger surface: run reconciliation,
// recompute vendor summaries, inspect the latest report, purge a project.
// Every trigger is idempotent and safe to re-invoke.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	projdomain "github.com/vendortrack/vendorperf/internal/projects/domain"
	"github.com/vendortrack/vendorperf/internal/reconcile"
	"github.com/vendortrack/vendorperf/internal/vendors"
	vendordomain "github.com/vendortrack/vendorperf/internal/vendors/domain"
)

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context) (*reconcile.Report, error)
}

// Recomputer rebuilds vendor summaries.
type Recomputer interface {
	RecomputeAll(ctx context.Context) (*vendors.RecomputeReport, error)
	RecomputeVendor(ctx context.Context, vendorID string) (*vendordomain.VendorPerformanceSummary, error)
}

// ReportStore reads back stored run reports.
type ReportStore interface {
	LatestReport(ctx context.Context) (*reconcile.Report, error)
}

// ProjectPurger removes a project and its dependent ratings.
type ProjectPurger interface {
	Purge(ctx context.Context, id string) (int64, error)
}

// AuditRecorder logs operator actions.
type AuditRecorder interface {
	Record(ctx context.Context, events []reconcile.AuditEvent) error
}

type Handler struct {
	reconciler Reconciler
	recomputer Recomputer
	reports    ReportStore
	purger     ProjectPurger
	audit      AuditRecorder
}

func New(reconciler Reconciler, recomputer Recomputer, reports ReportStore, purger ProjectPurger, audit AuditRecorder) *Handler {
	return &Handler{
		reconciler: reconciler,
		recomputer: recomputer,
		reports:    reports,
		purger:     purger,
		audit:      audit,
	}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/reconcile", h.runReconcile)
	rg.POST("/summaries/recompute", h.recompute)
	rg.GET("/reports/latest", h.latestReport)
	rg.DELETE("/projects/:id/purge", h.purgeProject)
}

func (h *Handler) runReconcile(c *gin.Context) {
	report, err := h.reconciler.Run(c.Request.Context())
	if err != nil {
		// Expected defect classes live inside the report; an error here is
		// a storage failure and the pass stopped before a partial commit.
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error(), "report": report})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"report":     report,
		"found":      report.Found(),
		"fixed":      report.Fixed(),
		"unresolved": len(report.Unresolved),
	})
}

type recomputeReq struct {
	VendorID string `json:"vendor_id"`
}

func (h *Handler) recompute(c *gin.Context) {
	var req recomputeReq
	// body is optional; absent body means all vendors
	_ = c.ShouldBindJSON(&req)

	if req.VendorID != "" {
		summary, err := h.recomputer.RecomputeVendor(c.Request.Context(), req.VendorID)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "summary": summary})
		return
	}

	report, err := h.recomputer.RecomputeAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "report": report})
}

func (h *Handler) latestReport(c *gin.Context) {
	report, err := h.reports.LatestReport(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "no reconciliation run recorded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "report": report})
}

func (h *Handler) purgeProject(c *gin.Context) {
	id := c.Param("id")

	ratingsDeleted, err := h.purger.Purge(c.Request.Context(), id)
	if errors.Is(err, projdomain.ErrProjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	if h.audit != nil {
		ev := reconcile.AuditEvent{
			Class:      reconcile.ActionOperatorPurge,
			EntityType: "project",
			EntityID:   id,
			Detail:     fmt.Sprintf("operator purge removed project and %d dependent ratings", ratingsDeleted),
			CreatedAt:  time.Now().UTC(),
		}
		if err := h.audit.Record(c.Request.Context(), []reconcile.AuditEvent{ev}); err != nil {
			log.Printf("[admin] purge audit failed project=%s: %v", id, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "ratings_deleted": ratingsDeleted})
}

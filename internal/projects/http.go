package projects

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vendortrack/vendorperf/internal/projects/domain"
	ratingdomain "github.com/vendortrack/vendorperf/internal/ratings/domain"
	"github.com/vendortrack/vendorperf/internal/ratings/score"
)

type Handler struct {
	repo    *Repo
	ratings RatingSource
	driver  *Driver
}

func Register(rg *gin.RouterGroup, repo *Repo, ratings RatingSource, driver *Driver) {
	h := &Handler{repo: repo, ratings: ratings, driver: driver}

	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.POST("/:id/close", h.close)
}

type createReq struct {
	Title    string     `json:"title"`
	ClientID string     `json:"client_id"`
	VendorID *string    `json:"vendor_id"`
	Deadline *time.Time `json:"deadline"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.repo.Create(c.Request.Context(), strings.TrimSpace(req.Title), req.ClientID, req.VendorID, req.Deadline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

// projectView decorates a project with its derived review state. The state
// is recomputed on every read, never stored.
type projectView struct {
	domain.Project
	ReviewState score.Completeness `json:"review_state"`
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	ratings, err := h.ratings.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	byProject := make(map[string]*ratingdomain.Rating, len(ratings))
	for i := range ratings {
		rt := &ratings[i]
		if _, ok := byProject[rt.ProjectID]; !ok {
			byProject[rt.ProjectID] = rt
		}
	}

	views := make([]projectView, 0, len(items))
	for _, p := range items {
		views = append(views, projectView{
			Project:     p,
			ReviewState: score.Classify(byProject[p.ID]),
		})
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": views})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, domain.ErrProjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) close(c *gin.Context) {
	p, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, domain.ErrProjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	if err := h.driver.Close(c.Request.Context(), p); err != nil {
		if errors.Is(err, domain.ErrProjectAlreadyClosed) {
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "project already closed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "status": domain.StatusCompleted})
}

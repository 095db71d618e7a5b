package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SweepStatus reports when the capture sweep last ran
type SweepStatus interface {
	GetLastRunAt() *time.Time
}

// SystemHandler handles health and readiness endpoints
type SystemHandler struct {
	BaseHandler
	db    *gorm.DB
	sweep SweepStatus
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(db *gorm.DB, sweep SweepStatus) *SystemHandler {
	return &SystemHandler{
		db:    db,
		sweep: sweep,
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/ready", h.Ready)
}

type healthResponse struct {
	Status          string     `json:"status"`
	SweepLastRunAt  *time.Time `json:"sweep_last_run_at,omitempty"`
	ServerTimestamp time.Time  `json:"server_timestamp"`
}

// Health returns liveness information
func (h *SystemHandler) Health(c *gin.Context) {
	resp := healthResponse{
		Status:          "ok",
		ServerTimestamp: time.Now().UTC(),
	}
	if h.sweep != nil {
		resp.SweepLastRunAt = h.sweep.GetLastRunAt()
	}
	h.Success(c, resp)
}

// Ready checks that the database connection is usable
func (h *SystemHandler) Ready(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil {
		h.ErrorWithStatus(c, http.StatusServiceUnavailable, "NOT_READY", "Database handle unavailable", true)
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		h.ErrorWithStatus(c, http.StatusServiceUnavailable, "NOT_READY", "Database ping failed", true)
		return
	}
	h.Success(c, healthResponse{Status: "ready", ServerTimestamp: time.Now().UTC()})
}

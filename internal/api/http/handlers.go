// Package http serves the host-side audit API. It is read-only: operators
// inspect sessions, threat logs, and honeypot forensics here, but every
// lifecycle decision is made by the scoring engine, never by hand.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/Warden/mediator/internal/honeypot"
	"github.com/GriffinCanCode/Warden/mediator/internal/isolation"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
	"github.com/GriffinCanCode/Warden/mediator/internal/threat"
)

// Handler exposes audit endpoints over the session registry and threat log.
type Handler struct {
	manager  *isolation.Manager
	engine   *threat.Engine
	honeypot *honeypot.Registry
	started  time.Time
}

// NewHandler creates the audit handler.
func NewHandler(manager *isolation.Manager, engine *threat.Engine, registry *honeypot.Registry) *Handler {
	return &Handler{
		manager:  manager,
		engine:   engine,
		honeypot: registry,
		started:  time.Now(),
	}
}

// sessionSummary is the list-view shape of one session.
type sessionSummary struct {
	SessionID   string               `json:"session_id"`
	ExtensionID string               `json:"extension_id"`
	State       types.LifecycleState `json:"state"`
	Score       float64              `json:"threat_score"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"uptime":  time.Since(h.started).String(),
		"service": "mediator",
	})
}

// ListSessions returns a summary of every known session.
func (h *Handler) ListSessions(c *gin.Context) {
	now := time.Now()
	sessions := h.manager.List()
	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary{
			SessionID:   s.ID,
			ExtensionID: s.ExtensionID,
			State:       s.State(),
			Score:       h.engine.Score(s.ID, now),
			CreatedAt:   s.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out, "count": len(out)})
}

// GetSession returns the full audit view of one session.
func (h *Handler) GetSession(c *gin.Context) {
	sid := c.Param("id")
	s, ok := h.manager.Get(sid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	grants := make([]types.PermissionGrant, 0, s.Grants.Len())
	grants = append(grants, s.Grants.All()...)

	c.JSON(http.StatusOK, gin.H{
		"session_id":    s.ID,
		"extension_id":  s.ExtensionID,
		"state":         s.State(),
		"threat_score":  h.engine.Score(sid, time.Now()),
		"created_at":    s.CreatedAt,
		"grants":        grants,
		"usage":         s.Usage(),
		"last_accepted": s.LastAccepted(),
	})
}

// GetSessionEvents returns the session's threat event log in arrival order.
func (h *Handler) GetSessionEvents(c *gin.Context) {
	sid := c.Param("id")
	if _, ok := h.manager.Get(sid); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	events := h.engine.Events(sid)
	c.JSON(http.StatusOK, gin.H{
		"session_id": sid,
		"events":     events,
		"count":      len(events),
		"score":      h.engine.Score(sid, time.Now()),
	})
}

// GetSessionForensics returns what a contained session tried to do inside
// the deception environment.
func (h *Handler) GetSessionForensics(c *gin.Context) {
	sid := c.Param("id")
	if _, ok := h.manager.Get(sid); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	entries := h.honeypot.Forensics(sid)
	c.JSON(http.StatusOK, gin.H{
		"session_id": sid,
		"requests":   entries,
		"count":      len(entries),
	})
}

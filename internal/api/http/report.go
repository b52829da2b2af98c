package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// scoreReport aggregates the threat posture across all sessions.
type scoreReport struct {
	Sessions int     `json:"sessions"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"stddev"`
	Max      float64 `json:"max"`
	MaxID    string  `json:"max_session_id,omitempty"`
}

// Report summarizes the fleet: score distribution and state breakdown.
// This is the endpoint an operator dashboard polls.
func (h *Handler) Report(c *gin.Context) {
	now := time.Now()

	scores := h.engine.Scores(now)
	values := make([]float64, 0, len(scores))
	report := scoreReport{Sessions: len(scores)}
	for sid, score := range scores {
		values = append(values, score)
		if score > report.Max {
			report.Max = score
			report.MaxID = sid
		}
	}
	if len(values) > 0 {
		report.Mean = stat.Mean(values, nil)
	}
	if len(values) > 1 {
		report.StdDev = stat.StdDev(values, nil)
	}

	states := map[types.LifecycleState]int{
		types.StateHandshaking: 0,
		types.StateActive:      0,
		types.StateRateLimited: 0,
		types.StateContained:   0,
		types.StateTerminated:  0,
	}
	for _, s := range h.manager.List() {
		states[s.State()]++
	}

	c.JSON(http.StatusOK, gin.H{
		"generated_at": now,
		"scores":       report,
		"states":       states,
	})
}

package threat

import (
	"math"
	"time"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Base weights per event kind. Source of truth for scoring tests.
var weights = map[types.EventKind]float64{
	types.EventBlockedCall:          10,
	types.EventExcessiveNetwork:     5,
	types.EventUnauthorizedFile:     15,
	types.EventCredentialHarvesting: 25,
	types.EventProcessScanning:      20,
}

// Weight returns the base weight for an event kind. Unknown kinds weigh
// zero rather than failing: the log still records them.
func Weight(kind types.EventKind) float64 {
	return weights[kind]
}

// ScoreAt computes the decayed score of an ordered event log at the given
// instant. Pure function: same log, same half-life, same instant, same
// score. Events timestamped after the instant contribute their full weight;
// decay never pushes a score below zero because every term is non-negative.
func ScoreAt(events []types.ThreatEvent, halfLife time.Duration, at time.Time) float64 {
	if halfLife <= 0 {
		halfLife = time.Nanosecond
	}
	var score float64
	for _, ev := range events {
		age := at.Sub(ev.Timestamp)
		if age < 0 {
			age = 0
		}
		score += Weight(ev.Kind) * math.Exp2(-float64(age)/float64(halfLife))
	}
	return score
}

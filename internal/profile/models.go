// Package profile maintains per-student learning profiles: running score
// statistics and aggregated mistake counts, fed at least once from the
// attempt event log and applied idempotently by attempt id.
package profile

import (
	"github.com/conceptcatch/conceptcatch/internal/events"
	"github.com/conceptcatch/conceptcatch/internal/oracle"
)

// CommonMistake is one aggregated weak area: how often a (topic, kind) pair
// was tagged across the student's finalized attempts.
type CommonMistake struct {
	Topic        string `json:"topic"`
	Kind         string `json:"kind"`
	Count        int    `json:"count"`
	LastOccurred int64  `json:"last_occurred"`
}

// Profile is the aggregate view returned to callers. CommonMistakes holds
// the top weak areas ordered by frequency, most recent first on ties.
type Profile struct {
	StudentID      string          `json:"student_id"`
	AverageScore   float64         `json:"average_score"`
	TotalAttempts  int             `json:"total_attempts"`
	CommonMistakes []CommonMistake `json:"common_mistakes"`
}

// WeakAreas converts the profile's mistakes into generation hints for
// mistakes-mode quiz creation.
func (p Profile) WeakAreas() []oracle.WeakArea {
	out := make([]oracle.WeakArea, 0, len(p.CommonMistakes))
	for _, m := range p.CommonMistakes {
		out = append(out, oracle.WeakArea{Topic: m.Topic, Kind: m.Kind, Frequency: int64(m.Count)})
	}
	return out
}

func tagKey(t events.Tag) string { return t.Topic + "\x00" + t.Kind }

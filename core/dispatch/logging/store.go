package logging

import (
	"context"
	"time"

	"github.com/kilianp07/vpp/core/model"
)

// LogRecord captures one dispatch decision.
type LogRecord struct {
	DispatchID   string                   `json:"dispatch_id"`
	Timestamp    time.Time                `json:"timestamp"`
	Demand       float64                  `json:"demand"`
	ActivePlants []int                    `json:"active_plants"`
	Allocation   model.DispatchAllocation `json:"allocation"`
}

// LogQuery defines filters for retrieving records. Zero values disable the
// corresponding filter.
type LogQuery struct {
	Start   time.Time
	End     time.Time
	PlantID int
}

// Match reports whether rec satisfies every filter of q.
func (q LogQuery) Match(rec LogRecord) bool {
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if q.PlantID != 0 {
		if _, ok := rec.Allocation.Allocations[q.PlantID]; ok {
			return true
		}
		for _, id := range rec.ActivePlants {
			if id == q.PlantID {
				return true
			}
		}
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

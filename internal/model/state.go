package model

import "time"

// MetricSums running sums of one transaction/metric pair
type MetricSums struct {
	Risk      float64 `json:"risk"`
	Sum       float64 `json:"sum"`
	SquareSum float64 `json:"squareSum"`
	Count     int64   `json:"count"`
}

// CumulativeSums per transaction x metric running sums for a window range
type CumulativeSums struct {
	WindowStart time.Time                        `json:"windowStart"`
	WindowEnd   time.Time                        `json:"windowEnd"`
	Sums        map[string]map[string]MetricSums `json:"sums"`
}

// ShortTermHistory bounded recent values per transaction x metric
type ShortTermHistory struct {
	Values map[string]map[string][]float64 `json:"values"`
}

// AnomalousPattern a historically anomalous value shape
type AnomalousPattern struct {
	Values       []float64 `json:"values"`
	LastSeenTime int64     `json:"lastSeenTime"`
	Count        int       `json:"count"`
}

// AnomalousPatterns per transaction x metric anomalous shapes
type AnomalousPatterns struct {
	Patterns map[string]map[string][]AnomalousPattern `json:"patterns"`
}

// StateKind one of the three compressed state variants
type StateKind string

const (
	StateCumulativeSums    StateKind = "cumulative-sums"
	StateShortTermHistory  StateKind = "short-term-history"
	StateAnomalousPatterns StateKind = "anomalous-patterns"
)

// IsEmpty reports whether no sums are stored
func (c *CumulativeSums) IsEmpty() bool {
	return c == nil || len(c.Sums) == 0
}

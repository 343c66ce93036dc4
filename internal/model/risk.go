package model

import (
	"encoding/json"
	"fmt"
)

// Risk ordinal risk scale: NO_ANALYSIS < LOW < OBSERVE < ANOMALOUS < HIGH
type Risk int

const (
	RiskNoAnalysis Risk = iota - 1
	RiskLow
	RiskObserve
	RiskAnomalous
	RiskHigh
)

var riskNames = map[Risk]string{
	RiskNoAnalysis: "NO_ANALYSIS",
	RiskLow:        "LOW",
	RiskObserve:    "OBSERVE",
	RiskAnomalous:  "ANOMALOUS",
	RiskHigh:       "HIGH",
}

func (r Risk) String() string {
	if name, ok := riskNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Risk(%d)", int(r))
}

// MarshalJSON encodes the risk by name
func (r Risk) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a risk name
func (r *Risk) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for risk, n := range riskNames {
		if n == name {
			*r = risk
			return nil
		}
	}
	return fmt.Errorf("unknown risk %q", name)
}

// RiskThresholds lower bounds of each ordinal above LOW. A negative score means
// the engine produced no analysis.
type RiskThresholds struct {
	Observe   float64
	Anomalous float64
	High      float64
}

// DefaultRiskThresholds 0.25 / 0.5 / 0.75
var DefaultRiskThresholds = RiskThresholds{Observe: 0.25, Anomalous: 0.5, High: 0.75}

// Classify maps a continuous risk value onto the ordinal scale
func (t RiskThresholds) Classify(value float64) Risk {
	switch {
	case value < 0:
		return RiskNoAnalysis
	case value >= t.High:
		return RiskHigh
	case value >= t.Anomalous:
		return RiskAnomalous
	case value >= t.Observe:
		return RiskObserve
	default:
		return RiskLow
	}
}

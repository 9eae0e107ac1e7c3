package storage

import (
	"encoding/json"
	"io"
	"math"
	"strings"
)

type ExportData struct {
	ID          string             `json:"id"`
	Plant       string             `json:"plant"`
	Integrator  string             `json:"integrator"`
	Controller  string             `json:"controller"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Steps       int                `json:"steps"`
	Times       []float64          `json:"times"`
	States      [][]float64        `json:"states"`
	Outputs     [][]float64        `json:"outputs"`
	Controls    [][]float64        `json:"controls"`
	Metrics     map[string]float64 `json:"metrics"`
	Transitions []Transition       `json:"transitions,omitempty"`
}

// ExportJSON writes a stored run as one JSON document. The trailing state
// row has no measurement or control, so outputs and controls are one
// sample shorter than states.
func ExportJSON(w io.Writer, meta *RunMetadata, series *Series) error {
	data := ExportData{
		ID:          meta.ID,
		Plant:       meta.Plant,
		Integrator:  meta.Integrator,
		Controller:  meta.Controller,
		Dt:          meta.Dt,
		Duration:    meta.Duration,
		Steps:       meta.Steps,
		Times:       series.Times,
		States:      series.columns("x"),
		Outputs:     series.columns("y"),
		Controls:    series.columns("u"),
		Metrics:     meta.Metrics,
		Transitions: meta.Transitions,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// columns gathers the prefixed columns row by row and drops rows in which
// they are all missing.
func (s *Series) columns(prefix string) [][]float64 {
	var idx []int
	for i, c := range s.Columns {
		if strings.HasPrefix(c, prefix) {
			idx = append(idx, i)
		}
	}

	out := make([][]float64, 0, len(s.Rows))
	for _, row := range s.Rows {
		vals := make([]float64, 0, len(idx))
		missing := true
		for _, i := range idx {
			if i < len(row) && !math.IsNaN(row[i]) {
				missing = false
			}
			if i < len(row) {
				vals = append(vals, row[i])
			}
		}
		if missing {
			continue
		}
		out = append(out, vals)
	}
	return out
}

package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Float is a float64 whose JSON form survives ±Inf and NaN. Finite values
// encode as plain numbers; the rest as the strings "+Inf", "-Inf", "NaN".
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid float %q: %w", s, err)
		}
		*f = Float(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// RunConfig describes one optimization: a Starlark script, the objective it
// defines, the box to search and the kernel parameters.
// Kept here rather than in server to avoid import cycles.
type RunConfig struct {
	Script           string      `json:"script"`
	Objective        string      `json:"objective"`
	Dimension        int         `json:"dimension"`
	Lower            []float64   `json:"lower"`
	Upper            []float64   `json:"upper"`
	Hessian          [][]float64 `json:"hessian,omitempty"`
	NSweeps          int         `json:"nsweeps"`
	MaxEvaluations   int         `json:"maxEvaluations"`
	LocalSearchDepth int         `json:"localSearchDepth"`
	Gamma            float64     `json:"gamma"`
	SMax             int         `json:"smax"`
}

// Validate checks the fields a run cannot start without. Dimension limits
// and kernel parameter ranges are enforced by the bridge and the kernel.
func (c *RunConfig) Validate() error {
	if c.Script == "" {
		return &ValidationError{Field: "script", Reason: "cannot be empty"}
	}
	if c.Objective == "" {
		return &ValidationError{Field: "objective", Reason: "cannot be empty"}
	}
	if c.Dimension <= 0 {
		return &ValidationError{Field: "dimension", Reason: "must be positive"}
	}
	if len(c.Lower) != c.Dimension {
		return &ValidationError{Field: "lower", Reason: fmt.Sprintf("length %d does not match dimension %d", len(c.Lower), c.Dimension)}
	}
	if len(c.Upper) != c.Dimension {
		return &ValidationError{Field: "upper", Reason: fmt.Sprintf("length %d does not match dimension %d", len(c.Upper), c.Dimension)}
	}
	return nil
}

// RunRecord is a finished run as persisted by a Store.
type RunRecord struct {
	ID               string    `json:"id"`
	Config           RunConfig `json:"config"`
	BestPoint        []float64 `json:"bestPoint,omitempty"`
	BestValue        Float     `json:"bestValue"`
	Evaluations      int       `json:"evaluations"`
	LocalEvaluations int       `json:"localEvaluations"`
	ExitStatus       string    `json:"exitStatus,omitempty"`
	Infeasible       int       `json:"infeasible"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
}

// RunInfo is the listing summary of a run.
type RunInfo struct {
	ID          string    `json:"id"`
	Objective   string    `json:"objective"`
	Dimension   int       `json:"dimension"`
	BestValue   Float     `json:"bestValue"`
	Evaluations int       `json:"evaluations"`
	ExitStatus  string    `json:"exitStatus,omitempty"`
	Error       string    `json:"error,omitempty"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// ToInfo converts a full record to its summary.
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		ID:          r.ID,
		Objective:   r.Config.Objective,
		Dimension:   r.Config.Dimension,
		BestValue:   r.BestValue,
		Evaluations: r.Evaluations,
		ExitStatus:  r.ExitStatus,
		Error:       r.Error,
		FinishedAt:  r.FinishedAt,
	}
}

// Validate checks that a record is complete enough to store.
func (r *RunRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Reason: "cannot be empty"}
	}
	if err := r.Config.Validate(); err != nil {
		return err
	}
	if r.Error == "" && len(r.BestPoint) != r.Config.Dimension {
		return &ValidationError{Field: "bestPoint", Reason: fmt.Sprintf("length %d does not match dimension %d", len(r.BestPoint), r.Config.Dimension)}
	}
	if r.Evaluations < 0 || r.LocalEvaluations < 0 || r.Infeasible < 0 {
		return &ValidationError{Field: "evaluations", Reason: "cannot be negative"}
	}
	if r.FinishedAt.IsZero() {
		return &ValidationError{Field: "finishedAt", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents an invalid run config or record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

func sortInfos(infos []RunInfo) {
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].FinishedAt.Equal(infos[j].FinishedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].FinishedAt.Before(infos[j].FinishedAt)
	})
}

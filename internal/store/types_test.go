package store

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func testConfig() RunConfig {
	return RunConfig{
		Script:           "def f(x):\n    return x[0] * x[0]\n",
		Objective:        "f",
		Dimension:        2,
		Lower:            []float64{-1, -1},
		Upper:            []float64{1, 1},
		NSweeps:          10,
		MaxEvaluations:   500,
		LocalSearchDepth: 10,
		Gamma:            1e-12,
		SMax:             6,
	}
}

func testRun(id string) *RunRecord {
	return &RunRecord{
		ID:               id,
		Config:           testConfig(),
		BestPoint:        []float64{0.25, -0.5},
		BestValue:        0.0625,
		Evaluations:      120,
		LocalEvaluations: 30,
		ExitStatus:       "StopNsweepsExceeded",
		Infeasible:       2,
		StartedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt:       time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC),
	}
}

func TestFloat_NonFiniteValues(t *testing.T) {
	tests := []struct {
		value Float
		json  string
	}{
		{Float(1.5), `1.5`},
		{Float(-0.25), `-0.25`},
		{Float(math.Inf(1)), `"+Inf"`},
		{Float(math.Inf(-1)), `"-Inf"`},
		{Float(math.NaN()), `"NaN"`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.value)
		if err != nil {
			t.Fatalf("Marshal(%v) failed: %v", tt.value, err)
		}
		if string(data) != tt.json {
			t.Errorf("Marshal(%v) = %s, expected %s", tt.value, data, tt.json)
		}

		var back Float
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", data, err)
		}
		if math.Float64bits(float64(back)) != math.Float64bits(float64(tt.value)) && !(math.IsNaN(float64(back)) && math.IsNaN(float64(tt.value))) {
			t.Errorf("round trip of %s gave %v", data, back)
		}
	}

	var f Float
	if err := json.Unmarshal([]byte(`"lots"`), &f); err == nil {
		t.Error("expected error for non-numeric string")
	}
}

func TestRunRecord_InfeasibleBestValueSerializes(t *testing.T) {
	run := testRun("inf")
	run.BestValue = Float(math.Inf(1))

	data, err := json.Marshal(run)
	if err != nil {
		t.Fatalf("Failed to marshal run: %v", err)
	}

	var restored RunRecord
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal run: %v", err)
	}
	if !math.IsInf(float64(restored.BestValue), 1) {
		t.Errorf("BestValue = %v, expected +Inf", restored.BestValue)
	}
	if restored.Config.Objective != "f" || restored.Config.SMax != 6 {
		t.Errorf("Config not restored: %+v", restored.Config)
	}
}

func TestRunConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
		field  string
	}{
		{"valid", func(*RunConfig) {}, ""},
		{"empty script", func(c *RunConfig) { c.Script = "" }, "script"},
		{"empty objective", func(c *RunConfig) { c.Objective = "" }, "objective"},
		{"zero dimension", func(c *RunConfig) { c.Dimension = 0 }, "dimension"},
		{"short lower", func(c *RunConfig) { c.Lower = []float64{0} }, "lower"},
		{"long upper", func(c *RunConfig) { c.Upper = []float64{1, 1, 1} }, "upper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if valErr.Field != tt.field {
				t.Errorf("Field = %s, expected %s", valErr.Field, tt.field)
			}
		})
	}
}

func TestRunRecord_Validate(t *testing.T) {
	if err := testRun("ok").Validate(); err != nil {
		t.Fatalf("valid run rejected: %v", err)
	}

	run := testRun("")
	if err := run.Validate(); err == nil {
		t.Error("expected error for empty ID")
	}

	run = testRun("short")
	run.BestPoint = []float64{1}
	if err := run.Validate(); err == nil {
		t.Error("expected error for best point length")
	}

	// failed runs carry no point
	run = testRun("failed")
	run.BestPoint = nil
	run.Error = "kernel failure"
	if err := run.Validate(); err != nil {
		t.Errorf("failed run rejected: %v", err)
	}

	run = testRun("unfinished")
	run.FinishedAt = time.Time{}
	if err := run.Validate(); err == nil {
		t.Error("expected error for zero FinishedAt")
	}
}

func TestNotFoundError_Is(t *testing.T) {
	err := &NotFoundError{ID: "abc"}
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if err.Error() != "run not found: abc" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

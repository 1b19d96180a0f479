// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// StandardObserver implements observability for all pipeline components
type StandardObserver struct {
	level         ObservabilityLevel
	writer        io.Writer
	DebugObserver *DebugObserver // Reference to debug observer when in debug mode

	mu       sync.Mutex
	warnings []Warning
}

type ObservabilityLevel int

const (
	ObservabilityOff     ObservabilityLevel = 0
	ObservabilityMetrics ObservabilityLevel = 1
	ObservabilityDebug   ObservabilityLevel = 2
)

// Warning records a non-fatal degradation of the run: a skipped table,
// a malformed pattern rule, a serialization skip, an invariant violation.
type Warning struct {
	Component string `json:"component"`
	Table     string `json:"table,omitempty"`
	Message   string `json:"message"`
}

// NewStandardObserver creates observability component
func NewStandardObserver(level ObservabilityLevel, writer io.Writer) *StandardObserver {
	return &StandardObserver{
		level:  level,
		writer: writer,
	}
}

// StartTiming returns a function to complete timing
func (o *StandardObserver) StartTiming(component, operation, table string) func(success bool, metadata map[string]interface{}) {
	start := time.Now()

	return func(success bool, metadata map[string]interface{}) {
		duration := time.Since(start)

		data := StandardObservabilityData{
			Component:  component,
			Operation:  operation,
			Table:      table,
			DurationMs: duration.Milliseconds(),
			Success:    success,
			Metadata:   metadata,
		}

		o.LogOperation(data)
	}
}

// LogOperation logs operation data
func (o *StandardObserver) LogOperation(data StandardObservabilityData) {
	if o.level == ObservabilityOff {
		return
	}

	data.RunID = "run-" + time.Now().Format("20060102-150405")

	// Only log JSON in debug mode
	if o.level == ObservabilityDebug {
		json.NewEncoder(o.writer).Encode(data)
	}
}

// Warnf records a pipeline warning. Warnings never abort the run; they are
// collected and summarized at the end.
func (o *StandardObserver) Warnf(component, table, format string, args ...interface{}) {
	w := Warning{Component: component, Table: table, Message: fmt.Sprintf(format, args...)}

	o.mu.Lock()
	o.warnings = append(o.warnings, w)
	o.mu.Unlock()

	if o.level == ObservabilityDebug {
		if w.Table != "" {
			fmt.Fprintf(o.writer, "warning: %s [%s]: %s\n", w.Component, w.Table, w.Message)
		} else {
			fmt.Fprintf(o.writer, "warning: %s: %s\n", w.Component, w.Message)
		}
	}
}

// StartStep delegates to the attached debug observer. Outside debug mode
// the returned completion is a no-op, so callers never branch on mode.
func (o *StandardObserver) StartStep(component, step, table string) func(success bool, details string) {
	if o.DebugObserver == nil {
		return func(bool, string) {}
	}
	return o.DebugObserver.StartStep(component, step, table)
}

// Detail forwards a step detail to the debug observer, if any.
func (o *StandardObserver) Detail(component, detail string) {
	if o.DebugObserver != nil {
		o.DebugObserver.LogDetail(component, detail)
	}
}

// Metric forwards a named metric to the debug observer, if any.
func (o *StandardObserver) Metric(component, metric string, value interface{}) {
	if o.DebugObserver != nil {
		o.DebugObserver.LogMetric(component, metric, value)
	}
}

// Warnings returns the warnings collected so far.
func (o *StandardObserver) Warnings() []Warning {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Warning, len(o.warnings))
	copy(out, o.warnings)
	return out
}

// StandardObservabilityData for all components
type StandardObservabilityData struct {
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	RunID      string                 `json:"run_id"`
	Table      string                 `json:"table,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	RowCount   int                    `json:"row_count,omitempty"`
	MatchCount int                    `json:"match_count,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

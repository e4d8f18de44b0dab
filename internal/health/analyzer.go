package health

import (
	"log/slog"
	"strings"

	"smartcache/internal/logs"
	"smartcache/internal/metrics"
)

// Analyzer converts metrics + recent log records into a health report.
type Analyzer struct {
	metrics *metrics.Registry
	ring    *logs.Ring
	rules   []Rule
}

// NewAnalyzer creates a new analyzer. ring may be nil.
func NewAnalyzer(
	reg *metrics.Registry,
	ring *logs.Ring,
) *Analyzer {
	return &Analyzer{
		metrics: reg,
		ring:    ring,
		rules: []Rule{
			ObserverPanicRule,
			CapacityRule,
			MissRatioRule,
			DuplicateKeyRule,
		},
	}
}

// Analyze evaluates metrics and logs and returns a health report.
func (a *Analyzer) Analyze() Report {
	snapshot := a.metrics.Snapshot()

	var (
		signals         = []string{}
		recommendations = []string{}
		status          = StatusOK
	)

	/* ---------- METRICS-BASED RULES ---------- */

	for _, rule := range a.rules {
		result := rule(snapshot)
		if !result.Triggered {
			continue
		}

		signals = append(signals, result.Signal)
		recommendations = append(recommendations, result.Recommendation)
		status = escalate(status, result.Severity)
	}

	/* ---------- LOG-BASED SIGNALS ---------- */

	if a.ring != nil {
		errorCount := 0
		for _, entry := range a.ring.GetLast(100) {
			if entry.Level >= slog.LevelError && !strings.Contains(entry.Message, "panic") {
				errorCount++
			}
		}

		if errorCount > 0 {
			signals = append(signals, "Errors recorded in recent logs")
			recommendations = append(recommendations, "Inspect the cache logs")
			status = escalate(status, StatusDegraded)
		}
	}

	/* ---------- SUMMARY ---------- */

	summary := "Cache is healthy"
	if status != StatusOK {
		summary = "Cache health issues detected"
	}

	return Report{
		OverallStatus:   status,
		Summary:         summary,
		Signals:         signals,
		Recommendations: recommendations,
	}
}

func escalate(current, severity Status) Status {
	switch {
	case severity == StatusCritical:
		return StatusCritical
	case severity == StatusDegraded && current == StatusOK:
		return StatusDegraded
	default:
		return current
	}
}

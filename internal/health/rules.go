package health

import "smartcache/internal/metrics"

// missRatioMinGets is the number of reads needed before the miss ratio means anything.
const missRatioMinGets = 100

// RuleResult represents the outcome of a single rule.
type RuleResult struct {
	Triggered      bool
	Signal         string
	Recommendation string
	Severity       Status
}

// Rule evaluates a metrics snapshot.
type Rule func(snapshot map[string]int64) RuleResult

// ---------- RULES ----------

// A panicking OnRemove observer loses notifications.
func ObserverPanicRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.ObserverPanicsTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "On-remove observer panicked",
			Recommendation: "Fix the OnRemove callback; removals after a panic were not observed",
			Severity:       StatusCritical,
		}
	}
	return RuleResult{}
}

// Rejected inserts mean the entry limit is too tight for the workload.
func CapacityRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.CacheFullRejectedTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Inserts rejected by the entry limit",
			Recommendation: "Raise MaxEntries or shorten TTLs so the sweep frees slots sooner",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// Most reads missing suggests TTLs are too short or keys are never reused.
func MissRatioRule(snapshot map[string]int64) RuleResult {
	gets := snapshot[string(metrics.CacheGetsTotal)]
	misses := snapshot[string(metrics.CacheMissesTotal)]

	if gets >= missRatioMinGets && misses*2 > gets {
		return RuleResult{
			Triggered:      true,
			Signal:         "More than half of reads miss",
			Recommendation: "Review TTLs and the global expiry interval",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// Duplicate rejections are expected in safe mode; they are reported but do not degrade health.
func DuplicateKeyRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.CacheDuplicateRejectedTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Safe mode rejected overwrites",
			Recommendation: "Use force on inserts that are meant to overwrite",
			Severity:       StatusOK,
		}
	}
	return RuleResult{}
}

package health

// Status represents overall cache health.
type Status string

const (
	StatusOK       Status = "OK"
	StatusDegraded Status = "DEGRADED"
	StatusCritical Status = "CRITICAL"
)

// Report is the health summary of a cache instance.
type Report struct {
	OverallStatus   Status   `json:"overall_status"`
	Summary         string   `json:"summary"`
	Signals         []string `json:"signals"`
	Recommendations []string `json:"recommendations"`
}

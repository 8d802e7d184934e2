package worker

import (
	"net/http"
	"time"

	"github.com/meteocache/meteocache/internal/api/models"
	"github.com/meteocache/meteocache/internal/api/response"
)

// HealthHandler reports worker liveness together with refresh statistics.
// A failed last refresh degrades the status but still answers 200.
func HealthHandler(job *RefreshJob, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		details := job.MetricsSnapshot()
		details["version"] = version

		status := models.HealthStatusOK
		if job.GetMetrics().LastError != "" {
			status = models.HealthStatusDegraded
		}

		response.Success(w, r, models.Health{
			Status:  status,
			Time:    models.Timestamp(time.Now()),
			Details: details,
		}, nil)
	}
}

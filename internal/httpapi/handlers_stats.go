package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/llmgate/llmgate/internal/errs"
)

type getStatsRequestBody struct {
	ModelKey  string     `json:"model_key"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Limit     int        `json:"limit"`
}

const defaultStatsLimit = 100

// GetStatsHandler implements POST /get_stats, admin-token gated.
func GetStatsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body getStatsRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, errs.New(errs.Conversion, "invalid JSON body: %v", err))
			return
		}
		if body.ModelKey == "" {
			writeError(w, errs.New(errs.Conversion, "model_key is required"))
			return
		}
		limit := body.Limit
		if limit <= 0 {
			limit = defaultStatsLimit
		}
		stats, records, err := d.MetricsLog.GetLogs(body.ModelKey, body.StartTime, body.EndTime, limit)
		if err != nil {
			writeError(w, errs.Wrap(errs.ServiceCall, err, "failed to read metrics log"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"stats":   stats,
			"records": records,
		})
	}
}

// HealthHandler implements GET /health, admin-token gated.
func HealthHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		modelCount := len(d.Registry.ListModels(""))
		providerCount := len(d.Registry.ListProviders())
		if modelCount == 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":    "unhealthy",
				"providers": providerCount,
				"models":    modelCount,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"providers": providerCount,
			"models":    modelCount,
		})
	}
}

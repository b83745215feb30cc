package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/llmgate/llmgate/internal/errs"
)

type listModelsRequestBody struct {
	Provider string `json:"provider,omitempty"`
}

// ListModelsHandler implements POST /list_models.
func ListModelsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body listModelsRequestBody
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeError(w, errs.New(errs.Conversion, "invalid JSON body: %v", err))
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"models": d.Registry.ListModels(body.Provider),
		})
	}
}

// ListProvidersHandler implements GET /list_providers.
func ListProvidersHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"providers": d.Registry.ListProviders(),
		})
	}
}

// ModelInfoHandler implements GET /model_info?model_id=....
func ModelInfoHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		modelID := r.URL.Query().Get("model_id")
		if modelID == "" {
			writeError(w, errs.New(errs.ModelNotFound, "model_id query parameter is required"))
			return
		}
		model, err := d.Registry.GetModel(modelID)
		if err != nil {
			writeError(w, errs.Wrap(errs.ModelNotFound, err, "model %q not found", modelID))
			return
		}
		writeJSON(w, http.StatusOK, model)
	}
}

package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/goalrunner"
)

type executeRequest struct {
	Goal    string         `json:"goal"`
	Context map[string]any `json:"context"`
}

type listExecutionsResponse struct {
	Executions []goalrunner.RunResponse `json:"executions"`
	Count      int                      `json:"count"`
}

type toolsResponse struct {
	Tools   map[string]string         `json:"tools"`
	Schemas map[string]map[string]any `json:"schemas"`
	Count   int                       `json:"count"`
}

type metricsResponse struct {
	StepsExecuted   int   `json:"steps_executed"`
	StepsSuccessful int   `json:"steps_successful"`
	StepsFailed     int   `json:"steps_failed"`
	ToolAttempts    int   `json:"tool_attempts"`
	TotalRetries    int   `json:"total_retries"`
	TotalDurationMS int64 `json:"total_duration_ms"`
	LongestStepMS   int64 `json:"longest_step_ms"`
}

func (h *handlers) handleExecute(w http.ResponseWriter, r *http.Request) {
	var request executeRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(request.Goal) == "" {
		writeInvalidRequest(w, "goal is required")
		return
	}
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, errorCodeRuntime, "runner is not configured")
		return
	}

	ec, err := h.runner.Run(r.Context(), request.Goal, request.Context)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goalrunner.NewRunResponse(ec))
}

func (h *handlers) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	if !h.ensureStore(w) {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeInvalidRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.store.List(r.Context(), limit)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	out := listExecutionsResponse{Executions: make([]goalrunner.RunResponse, 0, len(records))}
	for _, ec := range records {
		out.Executions = append(out.Executions, goalrunner.NewRunResponse(ec))
	}
	out.Count = len(out.Executions)
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	if !h.ensureStore(w) {
		return
	}

	ec, err := h.store.Get(r.Context(), r.PathValue("execution_id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goalrunner.NewRunResponse(ec))
}

func (h *handlers) handleListTools(w http.ResponseWriter, r *http.Request) {
	response := toolsResponse{Tools: map[string]string{}, Schemas: map[string]map[string]any{}}
	if h.registry != nil {
		response.Tools = h.registry.List()
		for _, desc := range h.registry.Descriptors() {
			if desc.InputSchema != nil {
				response.Schemas[desc.Name] = desc.InputSchema.Document()
			}
		}
	}
	response.Count = len(response.Tools)
	writeJSON(w, http.StatusOK, response)
}

func (h *handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		writeError(w, http.StatusServiceUnavailable, errorCodeRuntime, "metrics are not configured")
		return
	}
	m := h.metrics.Metrics()
	writeJSON(w, http.StatusOK, metricsResponse{
		StepsExecuted:   m.StepsExecuted,
		StepsSuccessful: m.StepsSuccessful,
		StepsFailed:     m.StepsFailed,
		ToolAttempts:    m.ToolAttempts,
		TotalRetries:    m.TotalRetries,
		TotalDurationMS: m.TotalDuration.Milliseconds(),
		LongestStepMS:   m.LongestStepTime.Milliseconds(),
	})
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": h.service})
}

func (h *handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": h.service,
		"version": h.version,
		"endpoints": []string{
			"POST /api/execute",
			"GET /api/executions",
			"GET /api/executions/{execution_id}",
			"GET /api/tools",
			"GET /health",
		},
	})
}

func (h *handlers) ensureStore(w http.ResponseWriter) bool {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, errorCodeRuntime, "execution store is not configured")
		return false
	}
	return true
}

package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alfreddev/alfred-gateway/analytics"
)

const defaultLogLimit = 20

// LogsHandler serves the paginated newest-first log read from spec.md §4.6.
type LogsHandler struct {
	engine *analytics.Engine
}

// NewLogsHandler wires the analytics engine into the handler.
func NewLogsHandler(engine *analytics.Engine) *LogsHandler {
	return &LogsHandler{engine: engine}
}

type logsResponse struct {
	Logs   []analytics.LogRecord `json:"logs"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// List handles ?limit=20&offset=0 over the ordered (newest-first) read.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveInt(r.URL.Query().Get("limit"), defaultLogLimit)
	offset := parsePositiveInt(r.URL.Query().Get("offset"), 0)

	all := h.engine.Buffer().OrderedNewestFirst()

	var page []analytics.LogRecord
	if offset < len(all) {
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		page = all[offset:end]
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(logsResponse{Logs: page, Limit: limit, Offset: offset})
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

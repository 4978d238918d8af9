package report

import (
	"encoding/json"
	"net/http"
	"time"
)

// HTTPHandler ETL 跑批的手动触发与状态查询（状态页的数据口）。
type HTTPHandler struct {
	pipeline *Pipeline
}

func NewHTTPHandler(pipeline *Pipeline) *HTTPHandler {
	return &HTTPHandler{pipeline: pipeline}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/etl/run", h.handleRun)
	mux.HandleFunc("/api/etl/status", h.handleStatus)
}

func (h *HTTPHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.pipeline.Run(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	total, last, err := h.pipeline.Status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := map[string]interface{}{
		"total_records": total,
	}
	if !last.IsZero() {
		resp["last_updated"] = last.Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(resp)
}

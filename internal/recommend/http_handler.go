package recommend

import (
	"encoding/json"
	"net/http"
	"time"
)

// HTTPHandler 推荐跑批的手动触发与状态查询。
type HTTPHandler struct {
	engine *Engine
}

func NewHTTPHandler(engine *Engine) *HTTPHandler {
	return &HTTPHandler{engine: engine}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/recommendations/run", h.handleRun)
	mux.HandleFunc("/api/recommendations/status", h.handleStatus)
}

func (h *HTTPHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.engine.Run(r.Context()); err != nil {
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
	last, total, err := NewRepo(h.engine.db).LastUpdatedAt(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := map[string]interface{}{
		"total_pairs": total,
	}
	if !last.IsZero() {
		resp["last_updated"] = last.Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(resp)
}

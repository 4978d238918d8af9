package rental

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/SmartRentalHub/SmartRentalHub/internal/common/middleware"
)

// HTTPHandler 预订/推荐的最小 JSON 入口。
// 路由层本身只做参数搬运和错误码映射，业务全部在 Service 里。
type HTTPHandler struct {
	svc     *Service
	limiter middleware.RateLimiter
}

func NewHTTPHandler(svc *Service, limiter middleware.RateLimiter) *HTTPHandler {
	return &HTTPHandler{svc: svc, limiter: limiter}
}

// Register 挂载路由。预订是写接口，套限流。
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.Handle("/api/rentals", middleware.RateLimit(h.limiter, http.HandlerFunc(h.handleRentals)))
	mux.HandleFunc("/api/rentals/status", h.handleUpdateStatus)
	mux.HandleFunc("/api/recommendations", h.handleRecommendations)
}

type bookRequest struct {
	UserID     uint   `json:"user_id"`
	VehicleID  uint   `json:"vehicle_id"`
	PickupDate string `json:"pickup_date"`
	ReturnDate string `json:"return_date"`
}

type rentalResponse struct {
	RentalID       uint   `json:"rental_id"`
	BookingRef     string `json:"booking_ref"`
	UserID         uint   `json:"user_id"`
	VehicleID      uint   `json:"vehicle_id"`
	Status         string `json:"status"`
	PickupDate     string `json:"pickup_date"`
	ReturnDate     string `json:"return_date"`
	PickupLocation string `json:"pickup_location"`
	ReturnLocation string `json:"return_location"`
	TotalCostCents int64  `json:"total_cost_cents"`
}

func toResponse(r *Rental) rentalResponse {
	return rentalResponse{
		RentalID:       r.ID,
		BookingRef:     r.BookingRef,
		UserID:         r.UserID,
		VehicleID:      r.VehicleID,
		Status:         string(r.Status),
		PickupDate:     r.PickupDate.Format(DateLayout),
		ReturnDate:     r.ReturnDate.Format(DateLayout),
		PickupLocation: r.PickupLocation,
		ReturnLocation: r.ReturnLocation,
		TotalCostCents: r.TotalCostCents,
	}
}

func (h *HTTPHandler) handleRentals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleBook(w, r)
	case http.MethodGet:
		h.handleConfirmation(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) handleBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	rec, err := h.svc.Book(r.Context(), BookInput{
		UserID:     req.UserID,
		VehicleID:  req.VehicleID,
		PickupDate: req.PickupDate,
		ReturnDate: req.ReturnDate,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDateRange):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrVehicleUnavailable):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrVehicleNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(rec))
}

// handleConfirmation 按预订确认号查询租约（确认页数据源）。
func (h *HTTPHandler) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("booking_ref")
	if ref == "" {
		http.Error(w, "booking_ref required", http.StatusBadRequest)
		return
	}
	rec, err := h.svc.FindByBookingRef(r.Context(), ref)
	if err != nil {
		if errors.Is(err, ErrRentalNotFound) {
			http.Error(w, "rental not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

type updateStatusRequest struct {
	RentalID uint   `json:"rental_id"`
	Status   string `json:"status"` // Completed / Cancelled
}

func (h *HTTPHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	rec, err := h.svc.UpdateStatus(r.Context(), req.RentalID, Status(req.Status), time.Now())
	if err != nil {
		if errors.Is(err, ErrRentalNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// handleRecommendations 推荐查询：任何失败原因都降级为空列表返回 200。
func (h *HTTPHandler) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := strconv.ParseUint(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	outcome := h.svc.Recommend(r.Context(), uint(userID))

	type vehicleItem struct {
		VehicleID      uint   `json:"vehicle_id"`
		Make           string `json:"make"`
		Model          string `json:"model"`
		Year           int    `json:"year"`
		Type           string `json:"type"`
		DailyRateCents int64  `json:"daily_rate_cents"`
		Location       string `json:"location"`
	}
	items := make([]vehicleItem, 0, len(outcome.Vehicles))
	for _, v := range outcome.Vehicles {
		items = append(items, vehicleItem{
			VehicleID:      v.ID,
			Make:           v.Make,
			Model:          v.Model,
			Year:           v.Year,
			Type:           v.Type,
			DailyRateCents: v.DailyRateCents,
			Location:       v.Location(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reason":   string(outcome.Reason),
		"vehicles": items,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

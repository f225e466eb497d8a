package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rl1809/course-checkout/internal/core/domain"
	"github.com/rl1809/course-checkout/internal/core/service"
	"github.com/rl1809/course-checkout/internal/health"
)

const maxCallbackBytes = 64 << 10

type HTTPHandler struct {
	orderService     *service.OrderService
	reconcileService *service.ReconcileService
	health           *health.Registry
	devShortcut      bool
	logger           *slog.Logger
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type CreateOrderHTTPRequest struct {
	CourseIDs []string `json:"courseIds"`
}

type ForceProcessHTTPRequest struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type orderView struct {
	OrderID     string                  `json:"orderId"`
	RequestID   string                  `json:"requestId"`
	UserID      string                  `json:"userId"`
	Courses     []domain.CourseSnapshot `json:"courses"`
	Amount      int64                   `json:"amount"`
	Status      domain.OrderStatus      `json:"status"`
	PaymentURL  string                  `json:"paymentUrl"`
	PaymentInfo domain.PaymentInfo      `json:"paymentInfo"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

type orderListView struct {
	Orders     []orderView `json:"orders"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
}

type settleView struct {
	OrderID        string             `json:"orderId"`
	Status         domain.OrderStatus `json:"status"`
	Outcome        service.Outcome    `json:"outcome"`
	NewEnrollments *int               `json:"newEnrollments,omitempty"`
}

func NewHTTPHandler(orderService *service.OrderService, reconcileService *service.ReconcileService, checks *health.Registry, devShortcut bool, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		orderService:     orderService,
		reconcileService: reconcileService,
		health:           checks,
		devShortcut:      devShortcut,
		logger:           logger,
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/health", h.HealthCheck)

	r.Route("/orders", func(r chi.Router) {
		r.Use(Authenticate)
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{orderID}", h.GetOrder)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/ipn", h.PaymentIPN)
		if h.devShortcut {
			r.Get("/ipn/dev", h.DevIPN)
		}
		r.With(Authenticate, RequireRole(RoleAdmin)).Post("/force-process", h.ForceProcess)
	})

	return r
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req CreateOrderHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid request body"})
		return
	}

	res, err := h.orderService.CreateOrder(r.Context(), id.UserID, req.CourseIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: res})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	q := r.URL.Query()

	page, err := queryInt(q.Get("page"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "page must be an integer"})
		return
	}
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "limit must be an integer"})
		return
	}

	res, err := h.orderService.ListOrders(r.Context(), id.UserID, domain.OrderStatus(q.Get("status")), page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	view := orderListView{
		Orders:     make([]orderView, 0, len(res.Orders)),
		Total:      res.Total,
		Page:       res.Page,
		Limit:      res.Limit,
		TotalPages: res.TotalPages,
	}
	for _, o := range res.Orders {
		view.Orders = append(view.Orders, toOrderView(o))
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: view})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	order, err := h.orderService.GetOrder(r.Context(), id.UserID, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toOrderView(*order)})
}

func (h *HTTPHandler) PaymentIPN(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid callback body"})
		return
	}

	var cb domain.PaymentCallback
	if err := json.Unmarshal(raw, &cb); err != nil || cb.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid callback body"})
		return
	}

	res, err := h.reconcileService.HandleIPN(r.Context(), cb, raw)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toSettleView(res)})
}

func (h *HTTPHandler) DevIPN(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "orderId is required"})
		return
	}

	res, err := h.reconcileService.DevMarkPaid(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toSettleView(res)})
}

func (h *HTTPHandler) ForceProcess(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req ForceProcessHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid request body"})
		return
	}

	res, err := h.reconcileService.ForceProcess(r.Context(), req.OrderID, domain.OrderStatus(req.Status), id.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toSettleView(res)})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := h.health.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status, message := httpStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", slog.Any("error", err))
	}
	writeJSON(w, status, apiResponse{Message: message})
}

func httpStatus(err error) (int, string) {
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindNotFound:
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrOrderNotFound) {
			status = http.StatusNotFound
		}
		return status, err.Error()
	case domain.KindSignatureInvalid:
		return http.StatusBadRequest, "invalid callback"
	case domain.KindGatewayUnavailable:
		return http.StatusBadGateway, "payment gateway unavailable"
	case domain.KindAlreadySettled:
		return http.StatusOK, "order already settled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func toOrderView(o domain.Order) orderView {
	return orderView{
		OrderID:     o.OrderID,
		RequestID:   o.RequestID,
		UserID:      o.UserID,
		Courses:     o.Courses,
		Amount:      o.Amount,
		Status:      o.Status,
		PaymentURL:  o.PaymentURL,
		PaymentInfo: o.PaymentInfo,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func toSettleView(res *service.ReconcileResult) settleView {
	view := settleView{
		OrderID: res.Order.OrderID,
		Status:  res.Order.Status,
		Outcome: res.Outcome,
	}
	if res.Fulfillment != nil {
		n := res.Fulfillment.NewEnrollments
		view.NewEnrollments = &n
	}
	return view
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", v, err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

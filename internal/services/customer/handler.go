package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cafe-ordering/internal/logger"
	"cafe-ordering/internal/models"
)

// Handler handles HTTP requests for the customer API
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new customer API handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// SetupRoutes sets up the HTTP routes
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /customer/cart/", h.withLogging(h.withAuth(h.GetCart)))
	mux.HandleFunc("PUT /customer/update/{id}", h.withLogging(h.withAuth(h.UpdateQuantity)))
	mux.HandleFunc("DELETE /customer/remove/{id}", h.withLogging(h.withAuth(h.RemoveEntry)))
	mux.HandleFunc("DELETE /customer/clear", h.withLogging(h.withAuth(h.ClearCart)))
	mux.HandleFunc("POST /customer/create-payment-intent", h.withLogging(h.withAuth(h.CreatePaymentIntent)))
	mux.HandleFunc("POST /customer/orders", h.withLogging(h.withAuth(h.CreateOrder)))
	mux.HandleFunc("GET /customer/orders", h.withLogging(h.withAuth(h.ListOrders)))
	mux.HandleFunc("GET /customer/orders/{id}", h.withLogging(h.withAuth(h.GetOrder)))
	mux.HandleFunc("GET /health", h.withLogging(h.HealthCheck))

	return mux
}

// GetCart handles GET /customer/cart/ requests
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request, userID, requestID string) {
	entries, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.logger.Error("cart_fetch_failed", "Failed to fetch cart", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, models.CartResponse{Items: entries}, requestID)
}

// UpdateQuantity handles PUT /customer/update/{id} requests
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request, userID, requestID string) {
	entryID := r.PathValue("id")

	var req models.UpdateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", requestID)
		return
	}

	err := h.service.UpdateQuantity(r.Context(), userID, entryID, req.Quantity)
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error(), requestID)
	case errors.Is(err, ErrNotFound):
		h.writeErrorResponse(w, http.StatusNotFound, "Cart entry not found", requestID)
	case err != nil:
		h.logger.Error("cart_update_failed", "Failed to update cart entry", requestID, err, map[string]interface{}{
			"entry_id": entryID,
		})
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// RemoveEntry handles DELETE /customer/remove/{id} requests
func (h *Handler) RemoveEntry(w http.ResponseWriter, r *http.Request, userID, requestID string) {
	entryID := r.PathValue("id")

	err := h.service.RemoveEntry(r.Context(), userID, entryID)
	switch {
	case errors.Is(err, ErrNotFound):
		h.writeErrorResponse(w, http.StatusNotFound, "Cart entry not found", requestID)
	case err != nil:
		h.logger.Error("cart_remove_failed", "Failed to remove cart entry", requestID, err, map[string]interface{}{
			"entry_id": entryID,
		})
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// ClearCart handles DELETE /customer/clear requests
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request, userID, requestID string) {
	if err := h.service.ClearCart(r.Context(), userID); err != nil {
		h.logger.Error("cart_clear_failed", "Failed to clear cart", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// CreatePaymentIntent handles POST /customer/create-payment-intent requests
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request, userID, requestID string) {
	var req models.CreatePaymentIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", requestID)
		return
	}

	clientSecret, err := h.service.CreatePaymentIntent(r.Context(), userID, req.Amount, requestID)
	switch {
	case errors.Is(err, ErrInvalidAmount):
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error(), requestID)
	case err != nil:
		h.writeErrorResponse(w, http.StatusBadGateway, "Payment processor unavailable", requestID)
	default:
		h.writeJSON(w, http.StatusOK, models.CreatePaymentIntentResponse{ClientSecret: clientSecret}, requestID)
	}
}

// CreateOrder handles POST /customer/orders requests
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request, userID, requestID string) {
	var req models.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	order, err := h.service.CreateOrder(ctx, userID, &req, requestID)
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.writeErrorResponse(w, http.StatusBadRequest, validationErr.Error(), requestID)
	case err != nil:
		h.logger.Error("order_creation_failed", "Failed to create order", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
	default:
		h.writeJSON(w, http.StatusCreated, order, requestID)
	}
}

// ListOrders handles GET /customer/orders requests
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request, userID, requestID string) {
	orders, err := h.service.ListOrders(r.Context(), userID)
	if err != nil {
		h.logger.Error("orders_list_failed", "Failed to list orders", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, orders, requestID)
}

// GetOrder handles GET /customer/orders/{id} requests
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request, userID, requestID string) {
	orderID := r.PathValue("id")

	order, err := h.service.GetOrder(r.Context(), userID, orderID)
	switch {
	case errors.Is(err, ErrNotFound):
		h.writeErrorResponse(w, http.StatusNotFound, "Order not found", requestID)
	case err != nil:
		h.logger.Error("order_fetch_failed", "Failed to fetch order", requestID, err, map[string]interface{}{
			"order_id": orderID,
		})
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
	default:
		h.writeJSON(w, http.StatusOK, order, requestID)
	}
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := h.service.HealthCheck(ctx)

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "customer-api",
		"healthy":   healthy,
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}

	h.writeJSON(w, status, response, "")
}

// authedHandler is an HTTP handler that requires a resolved session.
type authedHandler func(w http.ResponseWriter, r *http.Request, userID, requestID string)

// withAuth resolves the bearer token to a user before calling next.
func (h *Handler) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := requestIDFrom(r)

		token := bearerToken(r)
		userID, err := h.service.ResolveSession(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				h.writeErrorResponse(w, http.StatusUnauthorized, "Invalid or missing session token", requestID)
				return
			}
			h.logger.Error("session_lookup_failed", "Failed to resolve session", requestID, err, nil)
			h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
			return
		}

		next(w, r, userID, requestID)
	}
}

// withLogging adds request logging middleware
func (h *Handler) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logger.GenerateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.Header.Get("User-Agent"),
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(rw, r)

		duration := time.Since(start)
		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": duration.Milliseconds(),
			})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// writeErrorResponse writes an error response in JSON format
func (h *Handler) writeErrorResponse(w http.ResponseWriter, statusCode int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	}

	json.NewEncoder(w).Encode(errorResponse)
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, payload interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

type requestIDKey struct{}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return id
	}
	return logger.GenerateRequestID()
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func decodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dbayan/storefront/internal/auth"
	"github.com/dbayan/storefront/internal/metrics"
	"github.com/dbayan/storefront/internal/notify"
	"github.com/dbayan/storefront/internal/session"
	"github.com/dbayan/storefront/internal/storage"
)

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Items(r.Context())
	if err != nil {
		metrics.RequestErrorsTotal.WithLabelValues("stock").Inc()
		respondError(w, http.StatusInternalServerError, "Failed to load stock")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	banned, err := s.store.IsBanned(r.Context(), email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to check ban list")
		return
	}
	if banned {
		respondError(w, http.StatusForbidden, "This email is banned")
		return
	}

	role := s.resolver.Resolve(email, req.Password)
	s.sessions.Touch(email, "")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"email":   email,
		"isAdmin": role == auth.RoleOperator,
	})
}

func (s *Server) handleCheckBan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}

	banned, err := s.store.IsBanned(r.Context(), req.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to check ban list")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"banned": banned})
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string              `json:"email"`
		Name  string              `json:"name"`
		Items []storage.OrderLine `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Name) == "" || len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "Invalid request data")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	banned, err := s.store.IsBanned(r.Context(), email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to check ban list")
		return
	}
	if banned {
		respondError(w, http.StatusForbidden, "This email is banned")
		return
	}

	s.sessions.Touch(email, req.Name)
	cart := make([]session.CartLine, len(req.Items))
	for i, line := range req.Items {
		cart[i] = session.CartLine{ItemID: line.ItemID, Quantity: line.Quantity}
	}
	s.sessions.SetCart(email, cart)

	result, err := s.store.ApplyOrder(r.Context(), req.Items)
	if err != nil {
		metrics.RequestErrorsTotal.WithLabelValues("order").Inc()
		msg := "Failed to process order"
		if errors.Is(err, storage.ErrInvalidInput) {
			msg = "Quantity must be positive"
		}
		respondError(w, statusFromErr(err), msg)
		return
	}

	// The decrement is persisted; the cart served its purpose.
	s.sessions.ClearCart(email)

	metrics.OrdersTotal.Inc()
	for range result.Rejected {
		metrics.OrderLinesRejectedTotal.Inc()
	}

	s.mailer.Enqueue(notify.OrderConfirmation(email, result))
	if s.config.OperatorEmail != "" {
		s.mailer.Enqueue(notify.OrderNotice(s.config.OperatorEmail, req.Name, email, result))
	}

	notInStock := make([]string, 0, len(result.Rejected))
	for _, rej := range result.Rejected {
		notInStock = append(notInStock, rej.Reason)
	}

	s.log.Info("order processed",
		zap.String("email", email),
		zap.Int("fulfilled", len(result.Fulfilled)),
		zap.Int("rejected", len(result.Rejected)),
		zap.Float64("total", result.Total),
	)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"not_in_stock": notInStock,
	})
}

// pickupTimeLayouts are accepted on /schedule-pickup, tried in order.
var pickupTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

func parsePickupTime(value string) (time.Time, error) {
	for _, layout := range pickupTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized pickup time %q", value)
}

func (s *Server) handleSchedulePickup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Name       string `json:"name"`
		PickupTime string `json:"pickupTime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.PickupTime) == "" {
		respondError(w, http.StatusBadRequest, "Email and pickup time are required")
		return
	}

	pickupAt, err := parsePickupTime(req.PickupTime)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid pickup time format")
		return
	}
	if pickupAt.Before(time.Now()) {
		respondError(w, http.StatusBadRequest, "Pickup time is in the past")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	s.sessions.Touch(email, req.Name)

	s.mailer.Enqueue(notify.PickupConfirmation(email, pickupAt))
	if s.config.OperatorEmail != "" {
		s.mailer.Enqueue(notify.PickupNotice(s.config.OperatorEmail, req.Name, email, pickupAt))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"pickupTime": pickupAt.Format(time.RFC3339),
	})
}

func (s *Server) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    *int     `json:"id"`
		Name  string   `json:"name"`
		Price *float64 `json:"price"`
		Stock *int     `json:"stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		strings.TrimSpace(req.Name) == "" || req.Price == nil || req.Stock == nil {
		respondError(w, http.StatusBadRequest, "Invalid item data")
		return
	}

	item, err := s.store.Upsert(r.Context(), storage.ItemUpdate{
		ID:    req.ID,
		Name:  req.Name,
		Price: *req.Price,
		Stock: *req.Stock,
	})
	if err != nil {
		metrics.RequestErrorsTotal.WithLabelValues("update-stock").Inc()
		respondError(w, statusFromErr(err), upsertErrorMessage(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      item.ID,
	})
}

func upsertErrorMessage(err error) string {
	switch statusFromErr(err) {
	case http.StatusBadRequest:
		return "Invalid item data"
	case http.StatusNotFound:
		return "Item not found"
	default:
		return "Failed to update stock"
	}
}

func (s *Server) handleDeleteStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID <= 0 {
		respondError(w, http.StatusBadRequest, "Item ID required")
		return
	}

	if err := s.store.Remove(r.Context(), req.ID); err != nil {
		metrics.RequestErrorsTotal.WithLabelValues("delete-stock").Inc()
		if statusFromErr(err) == http.StatusNotFound {
			respondError(w, http.StatusNotFound, "Item not found")
		} else {
			respondError(w, http.StatusInternalServerError, "Failed to delete item")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleBanEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.store.Ban(r.Context(), email); err != nil {
		metrics.RequestErrorsTotal.WithLabelValues("ban-email").Inc()
		respondError(w, statusFromErr(err), "Failed to ban email")
		return
	}

	// Banning cascades: the session, its cart, and any queued or active
	// chat for that identity all go away in the same action.
	s.sessions.Remove(email)
	s.hub.DropUser(email)

	metrics.BansTotal.Inc()
	s.log.Info("email banned", zap.String("email", email))
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleShutdownSite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.window.Activate(req.Seconds); err != nil {
		respondError(w, http.StatusBadRequest, "Shutdown duration must be a positive number of seconds")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleEndSessions(w http.ResponseWriter, r *http.Request) {
	ended := s.sessions.ClearAll()
	s.log.Info("all sessions ended", zap.Int("ended", ended))
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "ended": ended})
}

func (s *Server) handleEndIdleSessions(w http.ResponseWriter, r *http.Request) {
	ended := s.sessions.ExpireIdle(s.config.SessionIdleTimeout)
	s.log.Info("idle sessions ended", zap.Int("ended", ended))
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "ended": ended})
}

func (s *Server) handleClearCarts(w http.ResponseWriter, r *http.Request) {
	cleared := s.sessions.ClearCarts()
	s.log.Info("carts cleared", zap.Int("cleared", cleared))
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.sessions.Users())
}

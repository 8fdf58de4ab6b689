package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flx-it/assistbot/core/logger"
	"log/slog"

	"github.com/flx-it/assistbot/internal/payment"
	"github.com/flx-it/assistbot/internal/storage"
)

// Server exposes the payment HTTP surface: checkout initialization for the
// web frontend and the provider notification webhook.
type Server struct {
	payments *payment.Service
	srv      *http.Server
}

// New builds the server bound to addr.
func New(addr string, payments *payment.Service) *Server {
	s := &Server{payments: payments}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /payment/create-payment", s.handleCreatePayment)
	mux.HandleFunc("POST /webhook/tinkoff", s.handleTinkoffWebhook)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.HTTP.Info("api listening",
			slog.String("event", "http.listen"),
			slog.String("addr", s.srv.Addr),
		)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type createPaymentRequest struct {
	CompanyID   int64  `json:"company_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type createPaymentResponse struct {
	PaymentURL string `json:"payment_url"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CompanyID == 0 || strings.TrimSpace(req.Amount) == "" {
		writeError(w, http.StatusBadRequest, "company_id and amount are required")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be a positive decimal")
		return
	}

	url, err := s.payments.CreatePayment(r.Context(), req.CompanyID, amount, req.Description)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "company wallet not found")
			return
		}
		logger.HTTP.Error("create payment failed",
			slog.String("event", "http.create_payment"),
			slog.Int64("company_id", req.CompanyID),
			slog.String("err", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "payment initialization failed")
		return
	}

	logger.HTTP.Info("payment created",
		slog.String("event", "http.create_payment"),
		slog.Int64("company_id", req.CompanyID),
		slog.Duration("duration", logger.Took(start)),
	)
	writeJSON(w, http.StatusOK, createPaymentResponse{PaymentURL: url})
}

// The webhook body is decoded into a flat map because every field except
// Token participates in the signature, including ones we do not model.
// The provider posts JSON or form-encoded bodies depending on terminal setup.
func (s *Server) handleTinkoffWebhook(w http.ResponseWriter, r *http.Request) {
	fields, token, err := decodeWebhookFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !s.payments.VerifyWebhook(fields, token) {
		logger.HTTP.Warn("webhook signature mismatch",
			slog.String("event", "http.webhook"),
			slog.String("status", "fail"),
		)
		writeError(w, http.StatusBadRequest, "invalid token")
		return
	}

	paymentID := fields["PaymentId"]
	status := fields["Status"]
	if paymentID == "" || status == "" {
		writeError(w, http.StatusBadRequest, "PaymentId and Status are required")
		return
	}

	if err := s.payments.HandleNotification(r.Context(), paymentID, status); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown payment")
			return
		}
		logger.HTTP.Error("webhook handling failed",
			slog.String("event", "http.webhook"),
			slog.String("err", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "notification handling failed")
		return
	}

	// The provider expects a literal OK acknowledgement.
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func decodeWebhookFields(r *http.Request) (map[string]string, string, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return nil, "", err
		}
		fields := make(map[string]string, len(r.PostForm))
		var token string
		for k := range r.PostForm {
			if k == "Token" {
				token = r.PostForm.Get(k)
				continue
			}
			fields[k] = r.PostForm.Get(k)
		}
		return fields, token, nil
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, "", err
	}
	fields := make(map[string]string, len(raw))
	var token string
	for k, v := range raw {
		str := flattenValue(v)
		if k == "Token" {
			token = str
			continue
		}
		fields[k] = str
	}
	return fields, token, nil
}

// flattenValue renders a JSON value the way the provider does when signing:
// numbers without exponent notation, booleans as "true"/"false".
func flattenValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", t), "0"), ".")
	default:
		return fmt.Sprintf("%v", t)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/LeventeLantos/sms-webhook/internal/extract"
	"github.com/LeventeLantos/sms-webhook/internal/metrics"
	"github.com/LeventeLantos/sms-webhook/internal/model"
	"github.com/LeventeLantos/sms-webhook/internal/service"
)

const (
	Version = "1.0.2"

	defaultPhoneLimit = 10
	defaultAllLimit   = 50
	maxLimit          = 1000
	maxWebhookBytes   = 1 << 20
	maxLoggedBody     = 2048
)

type CodeService interface {
	Receive(ctx context.Context, body map[string]any) (service.Receipt, error)
	LatestCode(ctx context.Context, phone string) (*model.Message, error)
	ConsumeCode(ctx context.Context, phone string, platform model.Platform) (*model.Message, error)
	Messages(ctx context.Context, phone string, limit int) ([]model.Message, error)
	AllMessages(ctx context.Context, limit int) ([]model.Message, error)
	Health(ctx context.Context) (service.Health, error)
}

// Handler reports failures in the JSON body with HTTP 200 so existing
// pollers keep working. Strict mode adds matching 4xx/5xx status codes.
type Handler struct {
	svc    CodeService
	strict bool
	log    *slog.Logger
}

func NewHandler(svc CodeService, strict bool) *Handler {
	return &Handler{svc: svc, strict: strict, log: slog.Default()}
}

func (h *Handler) WithLogger(l *slog.Logger) *Handler {
	h.log = l
	return h
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "Telnyx SMS Webhook Server Running",
		"version": Version,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health, err := h.svc.Health(r.Context())
	if err != nil {
		h.log.Error("health check failed", "error", err)
		writeJSON(w, h.status(http.StatusServiceUnavailable), map[string]any{
			"status":   "error",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"database":       "connected",
		"messages_24h":   health.Messages24h,
		"total_messages": health.Total,
	})
}

func (h *Handler) TelnyxWebhook(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err == nil {
		err = json.Unmarshal(raw, &body)
	}
	if err != nil || body == nil {
		if err == nil {
			err = errors.New("body is not a JSON object")
		}
		metrics.WebhooksReceived.WithLabelValues("invalid_json").Inc()
		h.log.Warn("webhook body is not valid JSON", "error", err, "body", truncate(raw, maxLoggedBody))
		writeJSON(w, h.status(http.StatusBadRequest), map[string]any{
			"status":  "error",
			"message": fmt.Sprintf("invalid JSON body: %v", err),
		})
		return
	}

	rc, err := h.svc.Receive(r.Context(), body)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, extract.ErrNoPhoneOrMessage) {
			code = http.StatusUnprocessableEntity
		}
		writeJSON(w, h.status(code), map[string]any{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "received",
		"code_extracted": rc.Code != nil,
		"sender":         rc.Phone,
		"phone":          rc.Phone,
		"platform":       rc.Platform,
	})
}

func (h *Handler) LatestCode(w http.ResponseWriter, r *http.Request) {
	phone := pathParam(r, "phone")

	m, err := h.svc.LatestCode(r.Context(), phone)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if m == nil {
		writeJSON(w, http.StatusOK, map[string]any{"code": nil, "message": "No codes found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"code":      m.ExtractedCode,
		"platform":  m.Platform,
		"timestamp": m.Timestamp,
	})
}

func (h *Handler) ConsumeCode(w http.ResponseWriter, r *http.Request) {
	phone := pathParam(r, "phone")
	platform := model.Platform(pathParam(r, "platform"))

	m, err := h.svc.ConsumeCode(r.Context(), phone, platform)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if m == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"code":    nil,
			"message": fmt.Sprintf("No unused codes for %s", platform),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"code":      m.ExtractedCode,
		"timestamp": m.Timestamp,
		"platform":  platform,
	})
}

type messageView struct {
	Message       string         `json:"message"`
	Timestamp     string         `json:"timestamp"`
	ExtractedCode *string        `json:"extracted_code"`
	Platform      model.Platform `json:"platform"`
}

type phoneMessageView struct {
	Phone string `json:"phone"`
	messageView
}

func toView(m model.Message) messageView {
	return messageView{
		Message:       m.Message,
		Timestamp:     m.Timestamp,
		ExtractedCode: m.ExtractedCode,
		Platform:      m.Platform,
	}
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	phone := pathParam(r, "phone")
	limit := parseLimit(r.URL.Query().Get("limit"), defaultPhoneLimit)

	msgs, err := h.svc.Messages(r.Context(), phone, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, toView(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"phone": phone, "messages": views})
}

func (h *Handler) AllMessages(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), defaultAllLimit)

	msgs, err := h.svc.AllMessages(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	views := make([]phoneMessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, phoneMessageView{Phone: m.Phone, messageView: toView(m)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"total_messages": len(views), "messages": views})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, h.status(http.StatusInternalServerError), map[string]any{"error": err.Error()})
}

func (h *Handler) status(strictCode int) int {
	if h.strict {
		return strictCode
	}
	return http.StatusOK
}

// pathParam undoes percent encoding so %2B1555 and +1555 look up the same phone.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	if v > maxLimit {
		return maxLimit
	}
	return v
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "...(truncated)"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package webhook

import (
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/junctionhq/junction/pkg/logger"
)

// maxBodyBytes caps inbound webhook bodies at 5 MiB.
const maxBodyBytes = 5 << 20

// HTTPHandler adapts a Manager to net/http. It accepts POST requests,
// feeds the raw body and headers through the manager, and maps the
// processing outcome to an HTTP status.
type HTTPHandler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHTTPHandler wraps a Manager for mounting on an HTTP mux.
func NewHTTPHandler(manager *Manager) *HTTPHandler {
	return &HTTPHandler{
		manager: manager,
		logger:  logger.Get().With(zap.String("component", "webhook_http")),
	}
}

type webhookResponse struct {
	Success bool   `json:"success"`
	Source  string `json:"source"`
	Event   string `json:"event,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusRequestEntityTooLarge)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	res := h.manager.ProcessWebhook(r.Context(), body, headers)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(res.Outcome))
	if err := json.NewEncoder(w).Encode(webhookResponse{
		Success: res.Success,
		Source:  res.Source,
		Event:   res.Event,
		Error:   res.Error,
	}); err != nil {
		h.logger.Error("failed to write webhook response", zap.Error(err))
	}
}

func statusFor(outcome Outcome) int {
	switch outcome {
	case OutcomeOK:
		return http.StatusOK
	case OutcomeInvalidJSON:
		return http.StatusBadRequest
	case OutcomeBadSignature:
		return http.StatusUnauthorized
	case OutcomeNoHandler:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

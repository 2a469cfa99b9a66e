package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ruteri/tdf-pipeline/api"
	"github.com/ruteri/tdf-pipeline/converter"
	"github.com/ruteri/tdf-pipeline/interfaces"
)

// maxBodySize bounds conversion requests. It leaves room for a full
// NanoTDF sized payload once base64 encoded.
const maxBodySize = 64 << 20

// ConverterSource hands out batch converters, e.g. *config.Runtime.
type ConverterSource interface {
	Converter(direction converter.Direction, format interfaces.ContainerFormat) (interfaces.BatchConverter, error)
}

// ClientAdmin controls the shared SDK client, e.g. *sdkclient.Manager.
type ClientAdmin interface {
	Reconfigure(settings interfaces.PlatformSettings) bool
	Invalidate()
	Generation() uint64
}

// RequestError carries the HTTP status a failure should be reported with.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Handler serves batch conversion and client administration.
type Handler struct {
	converters ConverterSource
	clients    ClientAdmin
	pullSize   int
	log        *slog.Logger
}

// NewHandler creates a Handler converting submitted items in chunks of pullSize.
func NewHandler(converters ConverterSource, clients ClientAdmin, pullSize int, log *slog.Logger) *Handler {
	if pullSize < 1 {
		pullSize = 1
	}
	return &Handler{
		converters: converters,
		clients:    clients,
		pullSize:   pullSize,
		log:        log,
	}
}

// RegisterRoutes mounts:
//   - POST /api/v1/encrypt/{format}
//   - POST /api/v1/decrypt/{format}
//   - PUT /api/admin/platform
//   - POST /api/admin/invalidate
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/encrypt/{format}", h.handleConvert(converter.DirectionEncrypt))
	r.Post("/api/v1/decrypt/{format}", h.handleConvert(converter.DirectionDecrypt))
	r.Put("/api/admin/platform", h.HandlePlatform)
	r.Post("/api/admin/invalidate", h.HandleInvalidate)
}

func (h *Handler) handleConvert(direction converter.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcomes, err := h.convert(w, r, direction)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, api.ConvertResponse{Outcomes: outcomes})
	}
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request, direction converter.Direction) ([]api.Outcome, error) {
	format, err := interfaces.ParseContainerFormat(chi.URLParam(r, "format"))
	if err != nil {
		return nil, &RequestError{StatusCode: http.StatusBadRequest, Err: err}
	}

	var req api.ConvertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		return nil, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid request body: %w", err)}
	}

	batchConverter, err := h.converters.Converter(direction, format)
	if err != nil {
		return nil, err
	}

	items := make([]interfaces.Item, 0, len(req.Items))
	for _, wire := range req.Items {
		item := wire.ToItem()
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		items = append(items, item)
	}

	outcomes := make([]api.Outcome, 0, len(items))
	for start := 0; start < len(items); start += h.pullSize {
		end := min(start+h.pullSize, len(items))

		converted, err := batchConverter.Convert(r.Context(), items[start:end])
		if err != nil {
			h.log.Error("Batch aborted", "direction", direction, "format", format.String(), "items", end-start, "err", err)
			return nil, err
		}
		for _, outcome := range converted {
			outcomes = append(outcomes, api.OutcomeFrom(outcome))
		}
	}
	return outcomes, nil
}

// HandlePlatform replaces the platform settings. The shared client is
// dropped when they differ from the current ones.
func (h *Handler) HandlePlatform(w http.ResponseWriter, r *http.Request) {
	var req api.PlatformSettings
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid request body: %w", err)})
		return
	}
	if req.Endpoint == "" || req.ClientID == "" || req.ClientSecret == "" {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: errors.New("endpoint, client_id and client_secret are required")})
		return
	}

	changed := h.clients.Reconfigure(req.ToSettings())
	h.log.Info("Platform settings updated", "endpoint", req.Endpoint, "plaintext", req.UsePlaintext, "changed", changed)

	h.writeJSON(w, api.PlatformResponse{Changed: changed, Generation: h.clients.Generation()})
}

// HandleInvalidate drops the shared client so the next batch builds a new one.
func (h *Handler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	h.clients.Invalidate()
	h.log.Info("SDK client invalidated")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "status", status, "err", err)
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.StatusCode
	case interfaces.IsClientBuildError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"hermes/internal/adapters/providers"
	"hermes/internal/services/gateway"
	"hermes/internal/streaming"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// wsRequestTimeout bounds how long a WebSocket client may take to send its
// request envelope after connecting.
const wsRequestTimeout = 30 * time.Second

// Handler serves the /v1 API surface in front of the gateway service.
type Handler struct {
	svc      *gateway.Service
	maxBody  int64
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewHandler creates the API handler. maxBody caps request body size in bytes.
func NewHandler(svc *gateway.Service, maxBody int64) *Handler {
	return &Handler{
		svc:     svc,
		maxBody: maxBody,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement happens at the ingress
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.Get().With("component", "api"),
	}
}

// requestConfig is the config block every /v1 endpoint accepts. Provider may
// be empty, in which case the registry primary serves the request.
type requestConfig struct {
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Stream      bool     `json:"stream"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	// UseAgent is accepted and ignored; every request runs the plain
	// completion path.
	UseAgent bool `json:"use_agent"`
}

type generatePayload struct {
	Text   string                 `json:"text"`
	System string                 `json:"system"`
	Schema map[string]interface{} `json:"schema"`
}

// generateEnvelope is the request body for the generation endpoints.
// A non-empty payload.schema switches the call to structured output.
type generateEnvelope struct {
	Payload generatePayload `json:"payload"`
	Config  requestConfig   `json:"config"`
}

type visionPayload struct {
	Image    string                 `json:"image"` // base64-encoded
	MimeType string                 `json:"mime_type"`
	Prompt   string                 `json:"prompt"`
	Schema   map[string]interface{} `json:"schema"` // OCR only
}

type visionEnvelope struct {
	Payload visionPayload `json:"payload"`
	Config  requestConfig `json:"config"`
}

type generateResponse struct {
	Summary  string          `json:"summary"`
	Provider string          `json:"provider"`
	Model    string          `json:"model"`
	Usage    providers.Usage `json:"usage"`
}

type structuredResponse struct {
	Data       interface{}     `json:"data"`
	Valid      bool            `json:"valid"`
	ParseError string          `json:"parse_error,omitempty"`
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	Usage      providers.Usage `json:"usage"`
}

type describeResponse struct {
	Description string          `json:"description"`
	Provider    string          `json:"provider"`
	Model       string          `json:"model"`
	Usage       providers.Usage `json:"usage"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleGenerate serves POST /v1/generate: single-shot text completion, or
// structured output when the payload carries a schema.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var env generateEnvelope
	if err := h.decode(w, r, &env); err != nil {
		h.respondError(w, err)
		return
	}
	if env.Config.Stream {
		h.respondError(w, errors.Wrap(errors.ErrInvalidInput, "streaming requests must use /v1/generate/stream"))
		return
	}
	if env.Payload.Text == "" {
		h.respondError(w, errors.Wrap(errors.ErrInvalidInput, "payload.text is required"))
		return
	}

	if len(env.Payload.Schema) > 0 {
		res, err := h.svc.GenerateStructured(r.Context(), env.Config.Provider, providers.StructuredRequest{
			Model:       env.Config.Model,
			System:      env.Payload.System,
			Prompt:      env.Payload.Text,
			Schema:      env.Payload.Schema,
			Temperature: env.Config.Temperature,
			MaxTokens:   env.Config.MaxTokens,
		})
		if err != nil {
			h.respondError(w, err)
			return
		}
		h.respondJSON(w, http.StatusOK, structuredResponse{
			Data:       res.Data,
			Valid:      res.Valid,
			ParseError: res.ParseError,
			Provider:   res.Provider,
			Model:      res.Model,
			Usage:      res.Usage,
		})
		return
	}

	res, err := h.svc.GenerateText(r.Context(), env.Config.Provider, textRequest(env))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, generateResponse{
		Summary:  res.Text,
		Provider: res.Provider,
		Model:    res.Model,
		Usage:    res.Usage,
	})
}

// HandleGenerateStream serves POST /v1/generate/stream as Server-Sent Events.
// Each data: line carries one stream event; the final event has done=true.
func (h *Handler) HandleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var env generateEnvelope
	if err := h.decode(w, r, &env); err != nil {
		h.respondError(w, err)
		return
	}
	if env.Payload.Text == "" {
		h.respondError(w, errors.Wrap(errors.ErrInvalidInput, "payload.text is required"))
		return
	}

	stream, err := h.svc.GenerateTextStream(r.Context(), env.Config.Provider, textRequest(env))
	if err != nil {
		h.respondError(w, err)
		return
	}

	sink, err := streaming.NewSSESink(w)
	if err != nil {
		h.respondError(w, err)
		return
	}

	// Headers are out once the sink exists; from here every failure is
	// delivered as a terminal error event, never as an HTTP status.
	if err := streaming.Relay(r.Context(), stream, streaming.NewWriter(sink)); err != nil {
		h.log.Warnw("SSE relay ended early", "error", err)
	}
}

// HandleGenerateWS serves GET /v1/generate/ws. The client sends one request
// envelope as a text message and receives the stream events as JSON frames;
// the connection closes after the terminal event.
func (h *Handler) HandleGenerateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.log.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(h.maxBody)
	_ = conn.SetReadDeadline(time.Now().Add(wsRequestTimeout))

	writer := streaming.NewWriter(streaming.NewWSSink(conn))

	var env generateEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		_ = writer.Emit(providers.ErrorEvent("invalid request envelope"))
		_ = writer.Close()
		return
	}
	if env.Payload.Text == "" {
		_ = writer.Emit(providers.ErrorEvent("payload.text is required"))
		_ = writer.Close()
		return
	}

	stream, err := h.svc.GenerateTextStream(r.Context(), env.Config.Provider, textRequest(env))
	if err != nil {
		_ = writer.Emit(providers.ErrorEvent(err.Error()))
		_ = writer.Close()
		return
	}

	if err := streaming.Relay(r.Context(), stream, writer); err != nil {
		h.log.Warnw("WebSocket relay ended early", "error", err)
	}
}

// HandleVisionDescribe serves POST /v1/vision/describe.
func (h *Handler) HandleVisionDescribe(w http.ResponseWriter, r *http.Request) {
	req, cfg, err := h.decodeVision(w, r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	res, err := h.svc.DescribeImage(r.Context(), cfg.Provider, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, describeResponse{
		Description: res.Text,
		Provider:    res.Provider,
		Model:       res.Model,
		Usage:       res.Usage,
	})
}

// HandleVisionOCR serves POST /v1/vision/ocr.
func (h *Handler) HandleVisionOCR(w http.ResponseWriter, r *http.Request) {
	req, cfg, err := h.decodeVision(w, r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	res, err := h.svc.PerformOCR(r.Context(), cfg.Provider, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, structuredResponse{
		Data:       res.Data,
		Valid:      res.Valid,
		ParseError: res.ParseError,
		Provider:   res.Provider,
		Model:      res.Model,
		Usage:      res.Usage,
	})
}

// HandleModels serves GET /v1/models?provider=. Without the query parameter
// it lists models for every enabled provider.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.svc.ListModels(r.Context(), r.URL.Query().Get("provider"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"models": models})
}

// HandleProviders serves GET /v1/providers: the registry snapshot.
func (h *Handler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"providers": h.svc.Providers()})
}

// HandleUsage serves GET /v1/usage: accumulated token and cost counters.
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"usage": h.svc.Usage()})
}

func textRequest(env generateEnvelope) providers.TextRequest {
	return providers.TextRequest{
		Model:       env.Config.Model,
		System:      env.Payload.System,
		Prompt:      env.Payload.Text,
		Temperature: env.Config.Temperature,
		MaxTokens:   env.Config.MaxTokens,
	}
}

func (h *Handler) decodeVision(w http.ResponseWriter, r *http.Request) (providers.VisionRequest, requestConfig, error) {
	var env visionEnvelope
	if err := h.decode(w, r, &env); err != nil {
		return providers.VisionRequest{}, requestConfig{}, err
	}
	if env.Payload.Image == "" {
		return providers.VisionRequest{}, requestConfig{}, errors.Wrap(errors.ErrInvalidInput, "payload.image is required")
	}

	raw, err := base64.StdEncoding.DecodeString(env.Payload.Image)
	if err != nil {
		return providers.VisionRequest{}, requestConfig{}, errors.Wrap(errors.ErrInvalidInput, "payload.image is not valid base64")
	}

	return providers.VisionRequest{
		Model:       env.Config.Model,
		Prompt:      env.Payload.Prompt,
		Image:       raw,
		MimeType:    env.Payload.MimeType,
		Schema:      env.Payload.Schema,
		Temperature: env.Config.Temperature,
		MaxTokens:   env.Config.MaxTokens,
	}, env.Config, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorw("Failed to encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorw("Request failed", "status", status, "error", err)
	}
	h.respondJSON(w, status, errorResponse{Error: err.Error()})
}

// statusForError maps gateway errors onto HTTP status codes.
func statusForError(err error) int {
	var rateLimited *providers.RateLimitError

	switch {
	case errors.As(err, &rateLimited), errors.Is(err, errors.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, errors.ErrProviderNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrCapabilityNotSupported), errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrProviderTransport):
		return http.StatusBadGateway
	case errors.Is(err, errors.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

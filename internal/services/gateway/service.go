package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"hermes/internal/adapters/providers"
	"hermes/internal/alerting"
	"hermes/internal/metrics"
	"hermes/pkg/breaker"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Operation labels used in logs and metrics.
const (
	opText       = "generate_text"
	opStructured = "generate_structured"
	opStream     = "generate_stream"
	opDescribe   = "describe_image"
	opOCR        = "perform_ocr"
)

// Service is the single dispatch surface in front of the provider registry.
// Every call resolves a provider, fails fast on missing capabilities, invokes
// the adapter and records usage, metrics and circuit state. It never falls
// back to a different provider than the one resolved.
type Service struct {
	registry *providers.Registry
	tracker  *providers.UsageTracker
	breakers *breaker.Set
	notifier alerting.Notifier
	pricing  map[string]providers.ModelInfo
	log      *logger.Logger
}

// NewService wires the dispatch facade.
func NewService(
	registry *providers.Registry,
	tracker *providers.UsageTracker,
	breakers *breaker.Set,
	notifier alerting.Notifier,
) *Service {
	pricing := make(map[string]providers.ModelInfo)
	for _, m := range providers.KnownModels() {
		pricing[pricingKey(m.Provider.String(), m.Name)] = m
	}

	return &Service{
		registry: registry,
		tracker:  tracker,
		breakers: breakers,
		notifier: notifier,
		pricing:  pricing,
		log:      logger.Get().With("component", "gateway"),
	}
}

// GenerateText dispatches a single-shot completion.
func (s *Service) GenerateText(ctx context.Context, provider string, req providers.TextRequest) (*providers.TextResult, error) {
	p, err := s.resolve(provider)
	if err != nil {
		return nil, err
	}

	log := s.requestLog(p.Name(), opText)
	log.Debugw("Dispatching", "model", req.Model, "prompt_len", len(req.Prompt))

	start := time.Now()
	result, err := p.GenerateText(ctx, req)
	s.observe(p.Name(), opText, time.Since(start), err)
	if err != nil {
		log.Errorw("Text generation failed", "error", err)
		return nil, err
	}

	s.recordUsage(result.Provider, result.Model, result.Usage)
	log.Infow("Text generation complete", "model", result.Model, "total_tokens", result.Usage.TotalTokens)
	return result, nil
}

// GenerateStructured dispatches a schema-constrained completion. Output that
// fails validation is still returned; only transport problems are errors.
func (s *Service) GenerateStructured(ctx context.Context, provider string, req providers.StructuredRequest) (*providers.StructuredResult, error) {
	p, err := s.resolve(provider)
	if err != nil {
		return nil, err
	}

	log := s.requestLog(p.Name(), opStructured)
	log.Debugw("Dispatching", "model", req.Model, "has_schema", req.Schema != nil)

	start := time.Now()
	result, err := p.GenerateStructured(ctx, req)
	s.observe(p.Name(), opStructured, time.Since(start), err)
	if err != nil {
		log.Errorw("Structured generation failed", "error", err)
		return nil, err
	}

	if !result.Valid {
		metrics.RecordValidationFailure(result.Provider)
		log.Warnw("Structured output failed validation", "model", result.Model, "parse_error", result.ParseError)
	}

	s.recordUsage(result.Provider, result.Model, result.Usage)
	return result, nil
}

// GenerateTextStream dispatches a streaming completion. A provider without
// streaming support yields a one-event error stream, not an error return.
// The returned stream is instrumented: usage and circuit bookkeeping happen
// as its terminal event passes through.
func (s *Service) GenerateTextStream(ctx context.Context, provider string, req providers.TextRequest) (*providers.Stream, error) {
	p, err := s.resolve(provider)
	if err != nil {
		return nil, err
	}

	log := s.requestLog(p.Name(), opStream)

	sp, ok := p.(providers.StreamingProvider)
	if !ok {
		log.Warnw("Streaming requested from non-streaming provider")
		return providers.NewSingleEventStream(providers.ErrorEvent(providers.StreamingUnsupportedMessage)), nil
	}

	log.Debugw("Opening stream", "model", req.Model)

	start := time.Now()
	stream, err := sp.GenerateTextStream(ctx, req)
	if err != nil {
		s.observe(p.Name(), opStream, time.Since(start), err)
		log.Errorw("Stream open failed", "error", err)
		return nil, err
	}

	return s.instrumentStream(p.Name(), req.Model, log, start, stream), nil
}

// DescribeImage dispatches an image description to a vision-capable provider.
func (s *Service) DescribeImage(ctx context.Context, provider string, req providers.VisionRequest) (*providers.TextResult, error) {
	vp, err := s.resolveVision(provider)
	if err != nil {
		return nil, err
	}

	log := s.requestLog(vp.Name(), opDescribe)
	log.Debugw("Dispatching", "model", req.Model, "image_bytes", len(req.Image))

	start := time.Now()
	result, err := vp.DescribeImage(ctx, req)
	s.observe(vp.Name(), opDescribe, time.Since(start), err)
	if err != nil {
		log.Errorw("Image description failed", "error", err)
		return nil, err
	}

	s.recordUsage(result.Provider, result.Model, result.Usage)
	return result, nil
}

// PerformOCR dispatches structured text extraction from an image.
func (s *Service) PerformOCR(ctx context.Context, provider string, req providers.VisionRequest) (*providers.StructuredResult, error) {
	vp, err := s.resolveVision(provider)
	if err != nil {
		return nil, err
	}

	log := s.requestLog(vp.Name(), opOCR)
	log.Debugw("Dispatching", "model", req.Model, "image_bytes", len(req.Image))

	start := time.Now()
	result, err := vp.PerformOCR(ctx, req)
	s.observe(vp.Name(), opOCR, time.Since(start), err)
	if err != nil {
		log.Errorw("OCR failed", "error", err)
		return nil, err
	}

	if !result.Valid {
		metrics.RecordValidationFailure(result.Provider)
		log.Warnw("OCR output failed validation", "parse_error", result.ParseError)
	}

	s.recordUsage(result.Provider, result.Model, result.Usage)
	return result, nil
}

// ListModels returns model listings keyed by provider name. With an explicit
// provider, only that provider is queried; listing stays best-effort, so
// discovery failures come back as an empty slice rather than an error.
func (s *Service) ListModels(ctx context.Context, provider string) (map[string][]providers.ModelInfo, error) {
	if providers.NormalizeProviderName(provider) == "" {
		return s.registry.ListModels(ctx), nil
	}

	p, err := s.resolve(provider)
	if err != nil {
		return nil, err
	}

	models, err := p.ListModels(ctx)
	if err != nil {
		s.log.Warnw("Model listing failed", "provider", p.Name(), "error", err)
		models = []providers.ModelInfo{}
	}

	return map[string][]providers.ModelInfo{p.Name(): models}, nil
}

// Providers returns the registry snapshot for introspection.
func (s *Service) Providers() []providers.RegistrationInfo {
	return s.registry.All()
}

// Usage returns the in-memory usage aggregate per provider and model.
func (s *Service) Usage() map[string]providers.ProviderUsage {
	return s.tracker.Snapshot()
}

// BreakerStats returns circuit state per provider for health reporting.
func (s *Service) BreakerStats() map[string]breaker.Stats {
	return s.breakers.Stats()
}

// ProvidersHealthy reports whether every provider circuit is closed.
func (s *Service) ProvidersHealthy() bool {
	return s.breakers.AllClosed()
}

// resolve picks the provider for a request: the named one, or the registry
// primary when the caller did not choose. Unknown and disabled names fail
// identically; there is no fallback.
func (s *Service) resolve(name string) (providers.Provider, error) {
	normalized := providers.NormalizeProviderName(name)
	if normalized == "" {
		p, ok := s.registry.Primary()
		if !ok {
			return nil, errors.Wrap(errors.ErrProviderNotRegistered, "no providers enabled")
		}
		return p, nil
	}

	return s.registry.Lookup(normalized)
}

// resolveVision resolves a provider and requires vision capability before
// any network traffic.
func (s *Service) resolveVision(name string) (providers.VisionProvider, error) {
	p, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	vp, ok := p.(providers.VisionProvider)
	if !ok {
		return nil, errors.Wrapf(errors.ErrCapabilityNotSupported, "provider %s does not support vision", p.Name())
	}

	return vp, nil
}

func (s *Service) requestLog(provider, operation string) *logger.Logger {
	return s.log.With(
		"request_id", uuid.NewString(),
		"provider", provider,
		"operation", operation,
	)
}

// observe feeds one call outcome into metrics and the provider's circuit.
// Rate-limit rejections never reach the provider, so they count separately
// and leave the circuit alone; only transport-class failures trip it.
func (s *Service) observe(provider, operation string, latency time.Duration, err error) {
	var rateErr *providers.RateLimitError

	switch {
	case err == nil:
		metrics.RecordProviderCall(provider, operation, latency, nil)
		s.recordSuccess(provider)
	case errors.As(err, &rateErr):
		metrics.RecordRateLimited(provider, operation)
	case errors.Is(err, errors.ErrProviderTransport) || errors.Is(err, errors.ErrTimeout):
		metrics.RecordProviderCall(provider, operation, latency, err)
		s.recordFailure(provider)
	default:
		metrics.RecordProviderCall(provider, operation, latency, err)
	}
}

func (s *Service) recordFailure(provider string) {
	b := s.breakers.For(provider)
	if b.RecordFailure() {
		metrics.RecordCircuitTrip(provider)
		stats := b.Stats()
		s.notifier.Alert(
			fmt.Sprintf("Circuit opened: %s", provider),
			fmt.Sprintf("%d consecutive failures, retry backoff %s", stats.ConsecutiveFailures, stats.RetryBackoff),
		)
		return
	}
	metrics.RecordCircuitState(provider, circuitGauge(b.State()))
}

func (s *Service) recordSuccess(provider string) {
	b := s.breakers.For(provider)
	if b.RecordSuccess() {
		metrics.RecordCircuitState(provider, 0)
		stats := b.Stats()
		s.notifier.Alert(
			fmt.Sprintf("Circuit closed: %s", provider),
			fmt.Sprintf("provider recovered, last failure %s", humanize.Time(stats.LastFailure)),
		)
	}
}

func (s *Service) recordUsage(provider, model string, usage providers.Usage) {
	info := s.modelInfo(provider, model)
	s.tracker.Record(provider, info, usage)

	cost := providers.EstimateCost(info, usage)
	metrics.RecordUsage(provider, model, usage.InputTokens, usage.OutputTokens, cost.InexactFloat64())
}

// instrumentStream mirrors the provider stream onto a fresh channel, doing
// the bookkeeping a synchronous call gets in observe as the terminal event
// passes through.
func (s *Service) instrumentStream(provider, model string, log *logger.Logger, start time.Time, inner *providers.Stream) *providers.Stream {
	out := make(chan providers.StreamEvent)

	go func() {
		defer close(out)

		for event := range inner.Events() {
			metrics.RecordStreamEvent(provider, string(event.Type))

			switch event.Type {
			case providers.StreamEventDone:
				metrics.RecordProviderCall(provider, opStream, time.Since(start), nil)
				s.recordSuccess(provider)
				s.recordUsage(provider, doneModel(event, model), event.Usage)
				log.Infow("Stream complete", "total_tokens", event.Usage.TotalTokens)
			case providers.StreamEventError:
				metrics.RecordProviderCall(provider, opStream, time.Since(start), errors.New(event.Message))
				s.recordFailure(provider)
				log.Warnw("Stream aborted", "error", event.Message)
			}

			out <- event
		}
	}()

	return providers.NewStream(out)
}

// doneModel prefers the model identity the adapter stamped on the terminal
// event over the caller's requested model, which may have been empty.
func doneModel(event providers.StreamEvent, requested string) string {
	if m, ok := event.Extra["model"].(string); ok && m != "" {
		return m
	}
	return requested
}

func circuitGauge(state breaker.State) float64 {
	switch state {
	case breaker.StateOpen:
		return 2
	case breaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

func pricingKey(provider, model string) string {
	return provider + ":" + model
}

func (s *Service) modelInfo(provider, model string) providers.ModelInfo {
	if info, ok := s.pricing[pricingKey(provider, model)]; ok {
		return info
	}
	return providers.ModelInfo{Provider: providers.ProviderName(provider), Name: model}
}

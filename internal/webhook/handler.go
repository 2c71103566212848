package webhook

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/derafu/github/internal/apperror"
	"github.com/derafu/github/internal/notification"
	"github.com/derafu/github/internal/response"
)

// Handler validates notifications and dispatches them to per-event
// callbacks. Register callbacks with On before serving; the registry is not
// guarded for concurrent writes.
type Handler struct {
	secret    string
	hashToken string
	algorithm string
	handlers  map[string]EventFunc
	logger    *slog.Logger
}

// NewHandler creates a dispatcher. An empty secret is a configuration error.
func NewHandler(cfg Config, logger *slog.Logger) (*Handler, error) {
	if cfg.Secret == "" {
		return nil, apperror.Config("webhook secret is required (set webhook.secret or GITHUB_WEBHOOK_SECRET)")
	}
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	if !supportedAlgorithm(algorithm) {
		return nil, apperror.Config(fmt.Sprintf("unsupported signature algorithm %q", algorithm))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		secret:    cfg.Secret,
		hashToken: cfg.HashToken,
		algorithm: algorithm,
		handlers:  make(map[string]EventFunc),
		logger:    logger,
	}, nil
}

// On registers fn for event, replacing any earlier registration. Use
// EventDefault for the fallback handler.
func (h *Handler) On(event string, fn EventFunc) {
	h.handlers[event] = fn
}

// Validate checks a notification before dispatch. Checks run in a fixed
// order and the first failure wins; only the final signature comparison
// depends on the secret.
func (h *Handler) Validate(n *notification.Notification) error {
	if h.hashToken != "" {
		token, _ := n.HashToken()
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.hashToken)) != 1 {
			return apperror.InvalidToken()
		}
	}

	method, _ := n.RequestMethod()
	if method != http.MethodPost {
		return apperror.InvalidMethod(method)
	}

	if _, err := n.Event(); err != nil {
		return apperror.MissingEvent()
	}

	received, err := n.SignatureHeader()
	if err != nil {
		return apperror.MissingSignature()
	}
	algorithm, err := n.SignatureAlgorithm()
	if err != nil {
		return err
	}
	if algorithm != h.algorithm {
		return apperror.InvalidSignature()
	}

	expected, err := computeSignature(h.algorithm, n.Body(), h.secret)
	if err != nil {
		return fmt.Errorf("compute signature: %w", err)
	}
	if !signaturesEqual(expected, received) {
		return apperror.InvalidSignature()
	}
	return nil
}

// Dispatch routes a validated notification to its handler.
func (h *Handler) Dispatch(ctx context.Context, n *notification.Notification) error {
	event, err := n.Event()
	if err != nil {
		return apperror.MissingEvent()
	}

	switch event {
	case EventPing:
		if fn, ok := h.handlers[event]; ok {
			return fn(ctx, n)
		}
		return h.ping(n)
	case EventFork, EventPullRequest, EventPush, EventRelease, EventStar, EventStatus, EventWatch,
		EventWorkflowRun, EventDependabotAlert, EventMarketplacePurchase, EventPageBuild:
		if fn, ok := h.handlers[event]; ok {
			return fn(ctx, n)
		}
		return h.fallback(ctx, n, event)
	default:
		return h.fallback(ctx, n, event)
	}
}

// Handle validates, dispatches and returns the response the handler set.
func (h *Handler) Handle(ctx context.Context, n *notification.Notification) (response.Response, error) {
	delivery, _ := n.DeliveryID()
	event, _ := n.Event()
	logger := h.logger.With("delivery_id", delivery, "event", event)

	if err := h.Validate(n); err != nil {
		logger.Warn("notification rejected", "error", err)
		return response.Response{}, err
	}

	logger.Debug("dispatching notification")
	if err := h.Dispatch(ctx, n); err != nil {
		return response.Response{}, err
	}

	r, err := n.Response()
	if err != nil {
		logger.Error("handler did not set a response")
		return response.Response{}, err
	}
	logger.Info("notification handled", "code", r.Code(), "status", r.Status())
	return r, nil
}

func (h *Handler) ping(n *notification.Notification) error {
	fullName, err := n.String("repository.full_name")
	if err != nil {
		return err
	}
	return n.SetResponse(fmt.Sprintf("Ping from %s received.", fullName))
}

func (h *Handler) fallback(ctx context.Context, n *notification.Notification, event string) error {
	if fn, ok := h.handlers[EventDefault]; ok {
		return fn(ctx, n)
	}
	return n.SetResponse(fmt.Sprintf("Unhandled event \"%s\" received, no handler is set.", event))
}

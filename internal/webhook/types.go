package webhook

import (
	"context"

	"github.com/derafu/github/internal/notification"
	"github.com/derafu/github/internal/response"
)

// EventFunc handles one notification. It is expected to call
// n.SetResponse; a returned error aborts the request.
type EventFunc func(ctx context.Context, n *notification.Notification) error

// Processor turns a notification into the response for the caller.
type Processor interface {
	Handle(ctx context.Context, n *notification.Notification) (response.Response, error)
}

// Config holds the dispatcher secrets.
type Config struct {
	// Secret is the shared HMAC secret (required).
	Secret string `yaml:"secret"`

	// HashToken is an optional secondary token compared against the "hash"
	// query parameter.
	HashToken string `yaml:"hash_token,omitempty"`

	// Algorithm is the only HMAC algorithm accepted (default: sha256).
	Algorithm string `yaml:"algorithm,omitempty"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Listen      string
	Path        string
	MaxBodySize int64
}

// Events with a dedicated dispatch branch.
const (
	EventDefault             = "default"
	EventDependabotAlert     = "dependabot_alert"
	EventFork                = "fork"
	EventMarketplacePurchase = "marketplace_purchase"
	EventPageBuild           = "page_build"
	EventPing                = "ping"
	EventPullRequest         = "pull_request"
	EventPush                = "push"
	EventRelease             = "release"
	EventStar                = "star"
	EventStatus              = "status"
	EventWatch               = "watch"
	EventWorkflowRun         = "workflow_run"
)

// KnownEvents lists the event names the dispatcher routes explicitly.
var KnownEvents = []string{
	EventFork,
	EventPing,
	EventPullRequest,
	EventPush,
	EventRelease,
	EventStar,
	EventStatus,
	EventWatch,
	EventWorkflowRun,
	EventDependabotAlert,
	EventMarketplacePurchase,
	EventPageBuild,
}

// Default values
const (
	DefaultAlgorithm   = "sha256"
	DefaultPath        = "/webhook"
	DefaultMaxBodySize = 1048576 // 1 MB
)

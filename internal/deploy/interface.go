package deploy

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/mock_deploy.go -package=mocks github.com/derafu/github/internal/deploy Launcher,Recorder

// Launcher starts a deploy command.
type Launcher interface {
	Launch(ctx context.Context, cmd Command) (Outcome, error)
}

// Recorder persists launched deployments.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Outcome is what a launcher knows once it returns. Background strategies
// only know the command was started.
type Outcome struct {
	Mode     string
	PID      int
	ExitCode int
	Output   string
	Stderr   string
	LogFile  string
}

// Entry is one row of the deployment history.
type Entry struct {
	DeliveryID string
	Site       string
	Repository string
	Branch     string
	Workflow   string
	Actor      string
	Command    string
	Mode       string
	ExitCode   int
	CreatedAt  time.Time
}

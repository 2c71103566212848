package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/derafu/github/internal/notification"
	"github.com/derafu/github/internal/response"
)

// TriggerConfig describes the deploy tool and the sites it may deploy.
type TriggerConfig struct {
	Host       string
	Binary     string
	DeployFile string
	Task       string
	Sites      []Site
}

// Trigger deploys the site matching a workflow_run notification.
type Trigger struct {
	config   TriggerConfig
	launcher Launcher
	recorder Recorder
	logger   *slog.Logger
}

// Result describes a launched deployment.
type Result struct {
	Site    Site
	Command Command
	Outcome Outcome
}

// NewTrigger creates a trigger. recorder may be nil.
func NewTrigger(config TriggerConfig, launcher Launcher, recorder Recorder, logger *slog.Logger) *Trigger {
	if config.Host == "" {
		config.Host = DefaultHost
	}
	if config.Binary == "" {
		config.Binary = DefaultBinary
	}
	if config.DeployFile == "" {
		config.DeployFile = DefaultDeployFile
	}
	if config.Task == "" {
		config.Task = DefaultTask
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		config:   config,
		launcher: launcher,
		recorder: recorder,
		logger:   logger,
	}
}

// Deploy launches the first matching site. It returns nil when no site
// matched.
func (t *Trigger) Deploy(ctx context.Context, n *notification.Notification) (*Result, error) {
	_, result, err := t.deploy(ctx, n)
	return result, err
}

// Handle is the workflow_run event handler. The response code is the deploy
// exit code.
func (t *Trigger) Handle(ctx context.Context, n *notification.Notification) error {
	run, result, err := t.deploy(ctx, n)
	if err != nil {
		return err
	}
	if result == nil {
		return n.SetResponse(fmt.Sprintf("No deployment matched workflow run of %s.", run.FullName))
	}

	data := map[string]any{
		"site":      result.Site.Name,
		"command":   result.Command.String(),
		"mode":      result.Outcome.Mode,
		"exit_code": result.Outcome.ExitCode,
	}
	switch result.Outcome.Mode {
	case ModeSync:
		data["output"] = result.Outcome.Output
	default:
		data["log_file"] = result.Outcome.LogFile
	}
	if result.Outcome.PID != 0 {
		data["pid"] = result.Outcome.PID
	}

	r, err := response.FromMap(map[string]any{
		response.DataKey: data,
		"code":           result.Outcome.ExitCode,
	})
	if err != nil {
		return err
	}
	return n.SetResponse(r)
}

func (t *Trigger) deploy(ctx context.Context, n *notification.Notification) (Run, *Result, error) {
	run, err := RunFromNotification(n)
	if err != nil {
		return Run{}, nil, err
	}

	delivery, _ := n.DeliveryID()
	logger := t.logger.With("delivery_id", delivery, "repository", run.FullName, "branch", run.Branch)

	site, ok := Match(t.config.Sites, run, t.config.Host)
	if !ok {
		logger.Info("no site matched workflow run",
			"workflow", run.Workflow, "status", run.Status, "conclusion", run.Conclusion)
		return run, nil, nil
	}

	cmd := Command{
		Binary:     t.config.Binary,
		DeployFile: t.config.DeployFile,
		Task:       t.config.Task,
		Site:       site.Name,
	}
	logger = logger.With("site", site.Name)
	logger.Info("launching deployment", "command", cmd.String())

	outcome, err := t.launcher.Launch(ctx, cmd)
	if err != nil {
		return run, nil, fmt.Errorf("launch deployment of %s: %w", site.Name, err)
	}

	if t.recorder != nil {
		entry := Entry{
			DeliveryID: delivery,
			Site:       site.Name,
			Repository: run.FullName,
			Branch:     run.Branch,
			Workflow:   run.Workflow,
			Actor:      run.Actor,
			Command:    cmd.String(),
			Mode:       outcome.Mode,
			ExitCode:   outcome.ExitCode,
			CreatedAt:  time.Now().UTC(),
		}
		// history is an audit trail; a write failure must not hide the launch
		if err := t.recorder.Record(ctx, entry); err != nil {
			logger.Error("failed to record deployment", "error", err)
		}
	}

	return run, &Result{Site: site, Command: cmd, Outcome: outcome}, nil
}

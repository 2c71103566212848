package deploy

import (
	"fmt"

	"github.com/derafu/github/internal/apperror"
	"github.com/derafu/github/internal/notification"
)

// Site defaults.
const (
	DefaultWorkflow = "CI"
	DefaultBranch   = "main"
	DefaultHost     = "github.com"
)

// Values a run must carry to be deployable.
const (
	requiredEvent      = "push"
	requiredStatus     = "completed"
	requiredConclusion = "success"
)

// Site is a deployable target.
type Site struct {
	Name       string
	Repository string
	Workflow   string
	Branch     string
	// Actor restricts deployments to runs started by this login when set.
	Actor string
}

// Run holds the workflow_run fields used for matching.
type Run struct {
	FullName   string
	Branch     string
	Workflow   string
	Event      string
	Status     string
	Conclusion string
	Actor      string
}

// RunFromNotification extracts a Run from a workflow_run payload.
func RunFromNotification(n *notification.Notification) (Run, error) {
	var (
		run Run
		err error
	)

	run.FullName, err = firstString(n, "workflow_run.repository.full_name", "repository.full_name")
	if err != nil {
		return Run{}, err
	}
	if run.Branch, err = n.String("workflow_run.head_branch"); err != nil {
		return Run{}, err
	}
	if run.Workflow, err = firstString(n, "workflow_run.name", "workflow.name"); err != nil {
		return Run{}, err
	}
	if run.Event, err = n.String("workflow_run.event"); err != nil {
		return Run{}, err
	}
	if run.Status, err = n.String("workflow_run.status"); err != nil {
		return Run{}, err
	}
	// conclusion is null until the run completes
	run.Conclusion, _ = n.String("workflow_run.conclusion")
	run.Actor, _ = firstString(n, "workflow_run.actor.login", "sender.login")

	return run, nil
}

func firstString(n *notification.Notification, paths ...string) (string, error) {
	for _, path := range paths {
		if v, err := n.String(path); err == nil {
			return v, nil
		}
	}
	return "", apperror.MissingField(paths[0])
}

// RepositoryURLs returns the HTTPS and SSH clone URLs of the run's repository.
func (r Run) RepositoryURLs(host string) (https, ssh string) {
	if host == "" {
		host = DefaultHost
	}
	return fmt.Sprintf("https://%s/%s.git", host, r.FullName),
		fmt.Sprintf("git@%s:%s.git", host, r.FullName)
}

// Matches reports whether site should be deployed for run.
func (s Site) Matches(run Run, host string) bool {
	https, ssh := run.RepositoryURLs(host)
	if s.Repository != https && s.Repository != ssh {
		return false
	}
	if s.branch() != run.Branch || s.workflow() != run.Workflow {
		return false
	}
	if run.Event != requiredEvent || run.Status != requiredStatus || run.Conclusion != requiredConclusion {
		return false
	}
	return s.Actor == "" || s.Actor == run.Actor
}

func (s Site) branch() string {
	if s.Branch == "" {
		return DefaultBranch
	}
	return s.Branch
}

func (s Site) workflow() string {
	if s.Workflow == "" {
		return DefaultWorkflow
	}
	return s.Workflow
}

// Match returns the first site in order that matches run.
func Match(sites []Site, run Run, host string) (Site, bool) {
	for _, site := range sites {
		if site.Matches(run, host) {
			return site, true
		}
	}
	return Site{}, false
}

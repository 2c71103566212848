package deploy

import (
	"strings"

	"github.com/alessio/shellescape"
)

// Command defaults.
const (
	DefaultBinary     = "vendor/bin/dep"
	DefaultDeployFile = "deploy.php"
	DefaultTask       = "derafu:deploy:single"
)

// Command is one invocation of the deploy tool.
type Command struct {
	Binary     string
	DeployFile string
	Task       string
	Site       string
}

// Args returns the argument vector without shell quoting.
func (c Command) Args() []string {
	task := c.Task
	if task == "" {
		task = DefaultTask
	}
	return []string{c.Binary, "-f", c.DeployFile, task, "--site=" + c.Site}
}

// String renders the command for sh -c. Binary, deploy file and site name
// are escaped separately.
func (c Command) String() string {
	task := c.Task
	if task == "" {
		task = DefaultTask
	}
	return strings.Join([]string{
		shellescape.Quote(c.Binary),
		"-f",
		shellescape.Quote(c.DeployFile),
		shellescape.Quote(task),
		"--site=" + shellescape.Quote(c.Site),
	}, " ")
}

package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandString(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "plain tokens",
			cmd:  Command{Binary: "vendor/bin/dep", DeployFile: "deploy.php", Site: "www.example.com"},
			want: "vendor/bin/dep -f deploy.php derafu:deploy:single --site=www.example.com",
		},
		{
			name: "spaces",
			cmd:  Command{Binary: "/opt/my tools/dep", DeployFile: "deploy.php", Site: "www.example.com"},
			want: "'/opt/my tools/dep' -f deploy.php derafu:deploy:single --site=www.example.com",
		},
		{
			name: "injection in site",
			cmd:  Command{Binary: "dep", DeployFile: "deploy.php", Site: "x; rm -rf /"},
			want: "dep -f deploy.php derafu:deploy:single --site='x; rm -rf /'",
		},
		{
			name: "single quote",
			cmd:  Command{Binary: "dep", DeployFile: "it's.php", Site: "a"},
			want: `dep -f 'it'"'"'s.php' derafu:deploy:single --site=a`,
		},
		{
			name: "custom task",
			cmd:  Command{Binary: "dep", DeployFile: "deploy.php", Task: "deploy", Site: "a"},
			want: "dep -f deploy.php deploy --site=a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestCommandArgs(t *testing.T) {
	cmd := Command{Binary: "dep", DeployFile: "deploy.php", Site: "x; y"}
	assert.Equal(t, []string{"dep", "-f", "deploy.php", "derafu:deploy:single", "--site=x; y"}, cmd.Args())
}

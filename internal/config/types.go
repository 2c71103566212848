package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete derafu-github configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Webhook WebhookConfig `yaml:"webhook"`
	Deploy  DeployConfig  `yaml:"deploy"`
	Sites   Sites         `yaml:"sites"`

	// Path is the absolute path the configuration was loaded from.
	Path string `yaml:"-"`
}

// ServiceConfig defines the HTTP listener and process settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// MaxBodySize accepts sizes like "1MiB", "512KB" or a plain byte count.
	MaxBodySize  string `yaml:"max_body_size"`
	MaxBodyBytes int64  `yaml:"-"`
	PIDFile      string `yaml:"pid_file"`
}

// WebhookConfig holds the shared secrets. Empty values fall back to the
// GITHUB_WEBHOOK_SECRET and GITHUB_WEBHOOK_TOKEN environment variables.
type WebhookConfig struct {
	Secret    string `yaml:"secret"`
	HashToken string `yaml:"hash_token,omitempty"`
	Algorithm string `yaml:"algorithm,omitempty"`
}

// DeployConfig describes the deploy tool invocation.
type DeployConfig struct {
	Host       string `yaml:"host"`
	Binary     string `yaml:"binary"`
	DeployFile string `yaml:"deploy_file"`
	Task       string `yaml:"task"`
	Mode       string `yaml:"mode"` // background | at | sync
	LogFile    string `yaml:"log_file"`
	// History is the SQLite path of the deployment log; empty disables it.
	History string `yaml:"history"`
}

// SiteConfig is one deployable site.
type SiteConfig struct {
	Name       string `yaml:"name,omitempty"`
	Repository string `yaml:"repository"`
	Workflow   string `yaml:"workflow,omitempty"`
	Branch     string `yaml:"branch,omitempty"`
	Actor      string `yaml:"actor,omitempty"`
}

// Sites keeps the order sites are written in, which decides which site
// wins when several match.
type Sites []SiteConfig

// UnmarshalYAML accepts either a mapping keyed by site name or a sequence
// of objects carrying a name field.
func (s *Sites) UnmarshalYAML(n *yaml.Node) error {
	if n == nil {
		*s = nil
		return nil
	}

	switch n.Kind {
	case yaml.MappingNode:
		out := make(Sites, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			var site SiteConfig
			if value.Kind != yaml.ScalarNode || value.Tag != "!!null" {
				if err := value.Decode(&site); err != nil {
					return fmt.Errorf("site %q: %w", key.Value, err)
				}
			}
			site.Name = strings.TrimSpace(key.Value)
			out = append(out, site)
		}
		*s = out
	case yaml.SequenceNode:
		out := make(Sites, 0, len(n.Content))
		for i, item := range n.Content {
			var site SiteConfig
			if err := item.Decode(&site); err != nil {
				return fmt.Errorf("sites[%d]: %w", i, err)
			}
			site.Name = strings.TrimSpace(site.Name)
			out = append(out, site)
		}
		*s = out
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			*s = nil
			return nil
		}
		return fmt.Errorf("sites must be a mapping or a sequence")
	default:
		return fmt.Errorf("sites must be a mapping or a sequence")
	}
	return nil
}

// Names returns the site names in configured order.
func (s Sites) Names() []string {
	names := make([]string, len(s))
	for i, site := range s {
		names[i] = site.Name
	}
	return names
}

// ChecksumManifest is the content of a .checksums file.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns a Config with default values.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "derafu-github",
			Listen:      "127.0.0.1:8080",
			Path:        "/webhook",
			LogLevel:    "info",
			LogFormat:   "json",
			MaxBodySize: "1MiB",
			PIDFile:     "./data/derafu-github.pid",
		},
		Webhook: WebhookConfig{
			Algorithm: "sha256",
		},
		Deploy: DeployConfig{
			Host:       "github.com",
			Binary:     "vendor/bin/dep",
			DeployFile: "deploy.php",
			Task:       "derafu:deploy:single",
			Mode:       "background",
			LogFile:    "./data/deploy.log",
		},
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/derafu/github/internal/apperror"
)

// Environment variables consulted when the secrets are not in the file.
const (
	EnvSecret    = "GITHUB_WEBHOOK_SECRET"
	EnvHashToken = "GITHUB_WEBHOOK_TOKEN"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "text": true}
	validModes      = map[string]bool{"background": true, "at": true, "sync": true}
	validAlgorithms = map[string]bool{"sha256": true}
)

// Load reads, verifies and validates the configuration at configPath. A
// directory is taken to contain config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	if err := VerifyLock(absPath); err != nil {
		return nil, err
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}
	cfg.Path = absPath

	cfg = applyConfigDefaults(cfg)
	resolveSecrets(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML %s: %w", path, err)
	}
	return &cfg, nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.Listen == "" {
		cfg.Service.Listen = defaults.Service.Listen
	}
	if cfg.Service.Path == "" {
		cfg.Service.Path = defaults.Service.Path
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.Service.MaxBodySize == "" {
		cfg.Service.MaxBodySize = defaults.Service.MaxBodySize
	}
	if cfg.Service.PIDFile == "" {
		cfg.Service.PIDFile = defaults.Service.PIDFile
	}

	if cfg.Webhook.Algorithm == "" {
		cfg.Webhook.Algorithm = defaults.Webhook.Algorithm
	}

	if cfg.Deploy.Host == "" {
		cfg.Deploy.Host = defaults.Deploy.Host
	}
	if cfg.Deploy.Binary == "" {
		cfg.Deploy.Binary = defaults.Deploy.Binary
	}
	if cfg.Deploy.DeployFile == "" {
		cfg.Deploy.DeployFile = defaults.Deploy.DeployFile
	}
	if cfg.Deploy.Task == "" {
		cfg.Deploy.Task = defaults.Deploy.Task
	}
	if cfg.Deploy.Mode == "" {
		cfg.Deploy.Mode = defaults.Deploy.Mode
	}
	if cfg.Deploy.LogFile == "" {
		cfg.Deploy.LogFile = defaults.Deploy.LogFile
	}

	for i := range cfg.Sites {
		if cfg.Sites[i].Workflow == "" {
			cfg.Sites[i].Workflow = "CI"
		}
		if cfg.Sites[i].Branch == "" {
			cfg.Sites[i].Branch = "main"
		}
	}

	return cfg
}

// resolveSecrets falls back to the environment for secrets that are empty
// or still hold an unexpanded placeholder.
func resolveSecrets(cfg *Config) {
	if unresolved(cfg.Webhook.Secret) {
		cfg.Webhook.Secret = os.Getenv(EnvSecret)
	}
	if unresolved(cfg.Webhook.HashToken) {
		cfg.Webhook.HashToken = os.Getenv(EnvHashToken)
	}
}

func unresolved(value string) bool {
	return strings.TrimSpace(value) == "" || envVarPattern.MatchString(value)
}

// validate performs basic validation on the configuration. Every failure is
// a configuration error.
func validate(cfg *Config) error {
	if cfg.Service.Listen == "" {
		return apperror.Config("service.listen is required")
	}
	if !strings.HasPrefix(cfg.Service.Path, "/") {
		return apperror.Config(fmt.Sprintf("service.path must start with / (got %q)", cfg.Service.Path))
	}
	if !validLogLevels[cfg.Service.LogLevel] {
		return apperror.Config(fmt.Sprintf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel))
	}
	if !validLogFormats[cfg.Service.LogFormat] {
		return apperror.Config(fmt.Sprintf("service.log_format must be one of: json, text (got %q)", cfg.Service.LogFormat))
	}
	size, err := ParseSize(cfg.Service.MaxBodySize)
	if err != nil {
		return apperror.Config(fmt.Sprintf("service.max_body_size: %v", err))
	}
	cfg.Service.MaxBodyBytes = size

	if cfg.Webhook.Secret == "" {
		return apperror.Config(fmt.Sprintf("webhook.secret is required (set it in the config file or export %s)", EnvSecret))
	}
	if !validAlgorithms[cfg.Webhook.Algorithm] {
		return apperror.Config(fmt.Sprintf("webhook.algorithm must be sha256, the only algorithm GitHub signs X-Hub-Signature-256 with (got %q)", cfg.Webhook.Algorithm))
	}

	if !validModes[cfg.Deploy.Mode] {
		return apperror.Config(fmt.Sprintf("deploy.mode must be one of: background, at, sync (got %q)", cfg.Deploy.Mode))
	}
	if cfg.Deploy.Binary == "" {
		return apperror.Config("deploy.binary is required")
	}

	seen := make(map[string]bool, len(cfg.Sites))
	for i, site := range cfg.Sites {
		if site.Name == "" {
			return apperror.Config(fmt.Sprintf("sites[%d]: name is required", i))
		}
		if seen[site.Name] {
			return apperror.Config(fmt.Sprintf("site %q is defined more than once", site.Name))
		}
		seen[site.Name] = true
		if site.Repository == "" {
			return apperror.Config(fmt.Sprintf("site %q: repository is required", site.Name))
		}
		if envVarPattern.MatchString(site.Repository) {
			return apperror.Config(fmt.Sprintf("site %q: repository has an unresolved environment variable", site.Name))
		}
	}

	return nil
}

// ParseSize parses sizes like "1MiB", "512KB" or "1048576" to bytes. SI
// suffixes are powers of 1000 and IEC suffixes powers of 1024.
func ParseSize(size string) (int64, error) {
	if strings.TrimSpace(size) == "" {
		return 0, fmt.Errorf("size is empty")
	}
	n, err := humanize.ParseBytes(size)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", size, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	if n > 1<<40 {
		return 0, fmt.Errorf("size %q too large", size)
	}
	return int64(n), nil
}

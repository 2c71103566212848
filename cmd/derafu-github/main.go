package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/derafu/github/internal/config"
	"github.com/derafu/github/internal/deploy"
	"github.com/derafu/github/internal/history"
	"github.com/derafu/github/internal/lock"
	"github.com/derafu/github/internal/log"
	"github.com/derafu/github/internal/webhook"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const defaultConfigPath = "./config.yaml"

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "deploy":
		return runDeployNoun(args)

	case "start":
		return runStart(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("derafu-github %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    strings.TrimSpace(gitCommit),
		BuildTime: strings.TrimSpace(buildDate),
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}
	if info.Commit == "" || info.Commit == "unknown" {
		info.Commit = readBuildSetting("vcs.revision")
	}
	if len(info.Commit) > 12 {
		info.Commit = info.Commit[:12]
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.BuildTime == "" || info.BuildTime == "unknown" {
		info.BuildTime = "unknown"
		if t, err := time.Parse(time.RFC3339Nano, readBuildSetting("vcs.time")); err == nil {
			info.BuildTime = t.UTC().Format(time.RFC3339)
		}
	}
	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`derafu-github - GitHub webhook receiver and site deployer

Usage:
  derafu-github <noun> <action> [flags]

System Commands:
  system start      Start the webhook server in foreground
  system status     Show whether a server holds the PID lock

Config Commands:
  config check      Validate syntax, secrets, sites and integrity
  config lock       Record the config file hash in .checksums

Deploy Commands:
  deploy history    List recent deployments

General:
  version           Show version information
  help              Show this help message

Use 'derafu-github <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printNounHelp(os.Stderr, "system", "start, status")
		return 1
	}
	if isHelpToken(args[0]) {
		printNounHelp(os.Stdout, "system", "start, status")
		return 0
	}

	switch args[0] {
	case "start":
		return runStart(args[1:])
	case "status":
		return runSystemStatus(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", args[0])
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printNounHelp(os.Stderr, "config", "check, lock")
		return 1
	}
	if isHelpToken(args[0]) {
		printNounHelp(os.Stdout, "config", "check, lock")
		return 0
	}

	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "lock":
		return runConfigLock(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

func runDeployNoun(args []string) int {
	if len(args) < 1 {
		printNounHelp(os.Stderr, "deploy", "history")
		return 1
	}
	if isHelpToken(args[0]) {
		printNounHelp(os.Stdout, "deploy", "history")
		return 0
	}

	switch args[0] {
	case "history":
		return runDeployHistory(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown deploy action: %s\n", args[0])
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func printNounHelp(w *os.File, noun, actions string) {
	fmt.Fprintf(w, "Usage: derafu-github %s <action> [--config PATH]\n", noun)
	fmt.Fprintf(w, "Actions: %s\n", actions)
}

// --- ACTIONS ---

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		return 1
	}

	fmt.Printf("Configuration valid: %s\n", cfg.Path)
	fmt.Printf("  listen:  %s%s\n", cfg.Service.Listen, cfg.Service.Path)
	fmt.Printf("  deploy:  %s (%s mode)\n", cfg.Deploy.Binary, cfg.Deploy.Mode)
	fmt.Printf("  sites:   %d\n", len(cfg.Sites))
	for i, site := range cfg.Sites {
		fmt.Printf("    %d. %s <- %s [%s@%s]\n", i+1, site.Name, site.Repository, site.Workflow, site.Branch)
	}
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	path := *configPath
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, "config.yaml")
	}

	manifest, err := config.Lock(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}
	for name, hash := range manifest.Hashes {
		fmt.Printf("%s  %s\n", hash, name)
	}
	return 0
}

func runSystemStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	pid, running, err := lock.Status(cfg.Service.PIDFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read PID file: %v\n", err)
		return 1
	}
	if !running {
		fmt.Printf("%s is not running\n", cfg.Service.Name)
		return 1
	}
	fmt.Printf("%s is running (pid %d) on %s%s\n", cfg.Service.Name, pid, cfg.Service.Listen, cfg.Service.Path)
	return 0
}

func runDeployHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file or directory")
	site := fs.String("site", "", "Only show deployments of this site")
	limit := fs.Int("limit", history.DefaultLimit, "Maximum number of entries")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if cfg.Deploy.History == "" {
		fmt.Fprintln(os.Stderr, "Deployment history is disabled (set deploy.history)")
		return 1
	}

	ctx := context.Background()
	store, err := history.Open(ctx, cfg.Deploy.History)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		return 1
	}
	defer store.Close()

	records, err := store.Recent(ctx, *site, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read history: %v\n", err)
		return 1
	}
	if len(records) == 0 {
		fmt.Println("No deployments recorded.")
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSITE\tREPOSITORY\tBRANCH\tMODE\tEXIT\tDELIVERY")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			humanize.Time(r.CreatedAt), r.Site, r.Repository, r.Branch, r.Mode, r.ExitCode, r.DeliveryID)
	}
	_ = w.Flush()
	return 0
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("derafu-github starting", "version", version, "config", cfg.Path)

	pidLock, err := lock.AcquirePIDLock(cfg.Service.PIDFile)
	if err != nil {
		logger.Error("failed to acquire PID lock", "path", cfg.Service.PIDFile, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	runErr := make(chan error, 1)
	go func() {
		runErr <- a.run(ctx)
	}()

	logger.Info("derafu-github running (press Ctrl+C to stop)", "sites", len(cfg.Sites), "deploy_mode", cfg.Deploy.Mode)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		if err := <-runErr; err != nil {
			logger.Error("webhook server shutdown failed", "error", err)
			return 1
		}
	case err := <-runErr:
		logger.Error("webhook server failed", "error", err)
		return 1
	}

	logger.Info("derafu-github stopped")
	return 0
}

// app is the wired service.
type app struct {
	handler *webhook.Handler
	trigger *deploy.Trigger
	server  *webhook.Server
	history *history.Store
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	handler, err := webhook.NewHandler(webhook.Config{
		Secret:    cfg.Webhook.Secret,
		HashToken: cfg.Webhook.HashToken,
		Algorithm: cfg.Webhook.Algorithm,
	}, log.WithComponent("webhook"))
	if err != nil {
		return nil, err
	}
	a.handler = handler

	var recorder deploy.Recorder
	if cfg.Deploy.History != "" {
		store, err := history.Open(ctx, cfg.Deploy.History)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.history = store
		recorder = store
	}

	deployLogger := log.WithComponent("deploy")
	launcher, err := deploy.NewLauncher(cfg.Deploy.Mode, cfg.Deploy.LogFile, deployLogger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.trigger = deploy.NewTrigger(deploy.TriggerConfig{
		Host:       cfg.Deploy.Host,
		Binary:     cfg.Deploy.Binary,
		DeployFile: cfg.Deploy.DeployFile,
		Task:       cfg.Deploy.Task,
		Sites:      sitesFromConfig(cfg.Sites),
	}, launcher, recorder, deployLogger)
	handler.On(webhook.EventWorkflowRun, a.trigger.Handle)

	a.server = webhook.NewServer(webhook.ServerConfig{
		Listen:      cfg.Service.Listen,
		Path:        cfg.Service.Path,
		MaxBodySize: cfg.Service.MaxBodyBytes,
	}, handler, log.WithComponent("http"))

	return a, nil
}

// run serves until ctx is cancelled. In-flight deliveries are drained by the
// server before the history store is closed.
func (a *app) run(ctx context.Context) error {
	defer a.Close()
	if err := a.server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Default().Warn("failed to close history", "error", err)
		}
	}
}

func sitesFromConfig(sites config.Sites) []deploy.Site {
	out := make([]deploy.Site, 0, len(sites))
	for _, s := range sites {
		out = append(out, deploy.Site{
			Name:       s.Name,
			Repository: s.Repository,
			Workflow:   s.Workflow,
			Branch:     s.Branch,
			Actor:      s.Actor,
		})
	}
	return out
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"interviewcoach/pkg/config"
	"interviewcoach/pkg/logx"
	"interviewcoach/pkg/version"
)

func main() {
	var (
		projectDir  = flag.String("projectdir", ".", "Directory holding .interviewcoach/config.json, .env and the secrets file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("interviewcoach %s\n", version.String())
		os.Exit(0)
	}

	os.Exit(run(*projectDir))
}

// run contains the main application logic and returns an exit code.
func run(projectDir string) int {
	logger := logx.NewLogger("main")

	if err := config.LoadConfig(projectDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if err := loadSecrets(projectDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load secrets: %v\n", err)
		return 1
	}
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get config: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		return 1
	}
	defer app.Close()

	logger.Info("🚀 Interview coach %s starting (primary: %s, secondary: %s)",
		version.Version, app.health.Status().Primary, app.secondaryName())

	go app.sessions.Run(ctx)
	if err := app.server.StartServer(ctx, cfg.Server.ListenAddr); err != nil {
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}
	logger.Info("👋 Shutdown complete")
	return 0
}

// loadSecrets decrypts the secrets file when present, prompting for the password on a
// terminal when it is not in the environment.
func loadSecrets(projectDir string) error {
	if !config.SecretsFileExists(projectDir) {
		return nil
	}
	password := os.Getenv(config.EnvSecretsPassword)
	if password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("secrets file present but %s is not set", config.EnvSecretsPassword)
		}
		fmt.Fprint(os.Stderr, "🔐 Secrets password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}
	if err := config.LoadSecrets(projectDir, password); err != nil {
		return fmt.Errorf("failed to decrypt secrets: %w", err)
	}
	return nil
}

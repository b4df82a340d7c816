package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/mindcare/ai/agents/orchestrator"
	"github.com/hrygo/mindcare/ai/core/llm"
	"github.com/hrygo/mindcare/ai/metrics"
	"github.com/hrygo/mindcare/ai/triage"
	"github.com/hrygo/mindcare/internal/profile"
	"github.com/hrygo/mindcare/internal/version"
	"github.com/hrygo/mindcare/server"
	"github.com/hrygo/mindcare/store"
	"github.com/hrygo/mindcare/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "mindcare",
		Short: `A conversational mental-health support service with risk triage, crisis escalation and mood tracking.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// Systemd services get their environment from the unit file.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			instanceProfile := &profile.Profile{
				Mode:    viper.GetString("mode"),
				Addr:    viper.GetString("addr"),
				Port:    viper.GetInt("port"),
				Data:    viper.GetString("data"),
				Driver:  viper.GetString("driver"),
				DSN:     viper.GetString("dsn"),
				Version: version.GetCurrentVersion(viper.GetString("mode")),
			}
			instanceProfile.FromEnv()
			instanceProfile.EscalationExpr = viper.GetString("escalation-expr")
			if err := instanceProfile.Validate(); err != nil {
				return err
			}

			logger := newLogger(instanceProfile)
			slog.SetDefault(logger)
			return run(instanceProfile, logger)
		},
	}
)

func run(instanceProfile *profile.Profile, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !version.IsValid(version.Version) {
		logger.Warn("build version is not a semantic version", "version", version.Version)
	}

	policy, err := buildPolicy(instanceProfile, logger)
	if err != nil {
		return err
	}

	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		logger.Error("failed to create db driver", "driver", instanceProfile.Driver, "error", err)
		return err
	}

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	storeInstance := store.New(dbDriver,
		store.WithLogger(logger),
		store.WithObserver(exporter),
		store.WithFlushInterval(instanceProfile.FlushInterval),
	)

	if !instanceProfile.IsAIEnabled() {
		logger.Warn("no LLM API key configured, every message will receive the fail-safe crisis response",
			"provider", instanceProfile.LLMProvider)
	}
	llmService, err := llm.NewService(&llm.Config{
		Provider:          instanceProfile.LLMProvider,
		Model:             instanceProfile.LLMModel,
		APIKey:            instanceProfile.LLMAPIKey,
		BaseURL:           instanceProfile.LLMBaseURL,
		Timeout:           instanceProfile.LLMTimeout,
		RequestsPerSecond: instanceProfile.LLMRequestsPerSecond,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create llm service: %w", err)
	}

	orch := orchestrator.New(storeInstance, llmService,
		orchestrator.WithPolicy(policy),
		orchestrator.WithMetrics(exporter),
		orchestrator.WithLogger(logger),
		orchestrator.WithHistoryLimit(instanceProfile.HistoryLimit),
		orchestrator.WithGenerationTimeout(instanceProfile.GenerationTimeout),
		orchestrator.WithMaxConcurrentPipelines(int64(instanceProfile.MaxConcurrentPipelines)),
	)
	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to load stores", "error", err)
		_ = dbDriver.Close()
		return err
	}

	s, err := server.NewServer(ctx, instanceProfile, orch, exporter, logger)
	if err != nil {
		return err
	}

	c := make(chan os.Signal, 1)
	// Trigger graceful shutdown on SIGINT or SIGTERM.
	signal.Notify(c, terminationSignals...)

	if err := s.Start(ctx); err != nil {
		_ = orch.Shutdown(ctx)
		return err
	}

	// Warm the provider connection without delaying startup.
	go func() {
		warmupCtx, warmupCancel := context.WithTimeout(ctx, 10*time.Second)
		defer warmupCancel()
		llmService.Warmup(warmupCtx)
	}()

	printGreetings(instanceProfile, policy)

	<-c
	s.Shutdown(context.WithoutCancel(ctx))
	return nil
}

func buildPolicy(p *profile.Profile, logger *slog.Logger) (*triage.Policy, error) {
	shortCircuit, err := triage.ParseRiskLevel(p.ShortCircuitLevel)
	if err != nil {
		return nil, fmt.Errorf("short circuit level: %w", err)
	}
	followUp, err := triage.ParseRiskLevel(p.FollowUpLevel)
	if err != nil {
		return nil, fmt.Errorf("follow-up level: %w", err)
	}
	return triage.NewPolicy(shortCircuit, followUp, p.EscalationExpr, logger)
}

func newLogger(p *profile.Profile) *slog.Logger {
	if p.IsDev() {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "storage driver ("+strings.Join(profile.Drivers, ", ")+")")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("escalation-expr", "", "CEL expression deciding when a message goes straight to the crisis response")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "escalation-expr"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("mindcare")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func printGreetings(profile *profile.Profile, policy *triage.Policy) {
	fmt.Printf("MindCare %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" && profile.Driver == "sqlite" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Storage driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	fmt.Printf("LLM: %s (%s)\n", profile.LLMProvider, profile.LLMModel)
	if expr := policy.Expression(); expr != "" {
		fmt.Printf("Escalation: %s\n", expr)
	} else {
		fmt.Printf("Escalation: risk level >= %s\n", policy.ShortCircuitAt)
	}

	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
	fmt.Println()
	fmt.Println("If you or someone you know is in crisis, call or text 988.")
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

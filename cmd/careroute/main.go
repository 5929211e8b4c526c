package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"careroute/pkg/app"
	"careroute/pkg/config"
	"careroute/pkg/escalation"
)

var rulesFile string

var rootCmd = &cobra.Command{
	Use:   "careroute",
	Short: "Conversation routing and escalation service",
	Long: `careroute routes user messages to support capabilities, tracks
conversation sessions, handles crisis messages and escalates to human
professionals according to the configured escalation rules.

Configuration is read from the environment (REDIS_URL, PORT, LOG_LEVEL,
SESSION_BACKEND, STORE_BACKEND, NLG_BACKEND, NOTIFIER_BACKEND, ...).`,
	SilenceUsage: true,
}

// serveCmd runs the HTTP service until SIGINT or SIGTERM
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE:  runServe,
}

// rulesCmd prints the effective escalation rules
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective escalation rules as YAML",
	RunE:  runRules,
}

func init() {
	rulesCmd.Flags().StringVar(&rulesFile, "file", "", "rules file to overlay on the defaults (defaults to ESCALATION_RULES_FILE)")
	rootCmd.AddCommand(serveCmd, rulesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger(cfg)

	logger.WithField("pod_id", cfg.PodID).Info("Starting careroute")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service, err := app.NewService(ctx, cfg, logger, reg)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}

	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := service.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during service shutdown")
	}

	logger.Info("careroute shutdown complete")
	return nil
}

func runRules(cmd *cobra.Command, args []string) error {
	path := rulesFile
	if path == "" {
		path = config.Load().EscalationRulesFile
	}

	rules := escalation.DefaultRules()
	if path != "" {
		var err error
		if rules, err = escalation.LoadRules(path); err != nil {
			return err
		}
	}

	out, err := rules.YAML()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lireddit/server/internal/orchestrator"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Run one-shot infrastructure bootstrap and exit",
	Long: `Bootstrap prepares the infrastructure the server depends on:
database migrations, a Redis connectivity check and, when NATS is
configured, the POSTS JetStream stream.

The command runs once, prints a JSON result to stdout, and exits 0 on
success or non-zero on failure.`,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Bootstrap.Timeout)
	defer cancel()
	defer app.Close()

	slog.Info("starting bootstrap")

	if err := app.pg.Connect(ctx); err != nil {
		slog.Warn("database connection failed", "err", err)
	}

	result, err := app.orchestrator.RunBootstrap(ctx)
	if err != nil {
		printResult("error", err.Error())
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	printBootstrapResult(result)

	if result.Status == orchestrator.StatusError {
		return errors.New("bootstrap completed with errors")
	}
	// The server tolerates a broker outage, a one-shot provisioning run does not.
	if phase := result.Phases[orchestrator.PhaseNATS]; phase.Status == orchestrator.StatusDegraded {
		return fmt.Errorf("provisioning NATS streams: %s", phase.Error)
	}

	slog.Info("bootstrap completed successfully")
	return nil
}

func printBootstrapResult(result *orchestrator.BootstrapResult) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stdout, `{"status":%q}`+"\n", result.Status)
	}
}

func printResult(status, errMsg string) {
	result := map[string]string{"status": status}
	if errMsg != "" {
		result["error"] = errMsg
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stdout, `{"status":%q}`+"\n", status)
	}
}

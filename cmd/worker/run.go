package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/notifier/internal/jobs"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate all due rules once",
	RunE:  runOnce(jobs.JobEvaluate),
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Send all pending delivery items once",
	RunE:  runOnce(jobs.JobDispatch),
}

// runOnce runs a job outside the scheduler, for external schedulers and
// manual recovery. The run summary is printed as JSON.
func runOnce(name string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.runner.RunNow(ctx, name)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunRetryCmd(clientFn, outputFn),
		newRunWatchCmd(clientFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "FLOW_ID", "STATUS", "FAILED_NODE", "DURATION", "CREATED"}

func runRow(r *RunResponse) []string {
	duration := ""
	if r.DurationMs > 0 {
		duration = strconv.FormatInt(r.DurationMs, 10) + "ms"
	}
	return []string{r.ID, r.FlowID, r.Status, r.FailedNodeID, duration, r.CreatedAt}
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flowID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				FlowID: flowID,
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i := range runs {
				rows[i] = runRow(&runs[i])
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&flowID, "flow-id", "", "Filter by flow ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var rf rangeFlags
	var watch bool

	cmd := &cobra.Command{
		Use:   "start FLOW_ID",
		Short: "Queue a new run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req, err := rf.request()
			if err != nil {
				return err
			}

			run, err := client.CreateRun(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run queued: %s", run.ID))
			if watch {
				return watchRun(cmd, client, out, run.ID)
			}
			out.Print(runHeaders, [][]string{runRow(run)}, run)
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Stream progress until the run finishes")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var showResults bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				append(runHeaders, "ERROR"),
				[][]string{append(runRow(run), run.Error)},
				run,
			)
			if showResults && !out.jsonMode && len(run.Results) > 0 {
				fmt.Fprintln(out.w)
				out.Results(run.Results)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showResults, "results", false, "Also print node results")

	return cmd
}

func newRunRetryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "retry ID",
		Short: "Re-run a failed run from the node that failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.RetryRun(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Retry queued: %s (from node %s)", run.ID, run.StartNodeID))
			if watch {
				return watchRun(cmd, client, out, run.ID)
			}
			out.Print(runHeaders, [][]string{runRow(run)}, run)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Stream progress until the run finishes")

	return cmd
}

func newRunWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "watch ID",
		Short: "Stream progress of a run until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchRun(cmd, clientFn(), outputFn(), args[0])
		},
	}
}

// watchRun выводит события run до финальной строки.
// Неуспешный run даёт ненулевой код выхода.
func watchRun(cmd *cobra.Command, client *Client, out *Output, runID string) error {
	var failed error
	err := client.RunEvents(cmd.Context(), runID, func(line StreamLine) error {
		out.Line(line)
		if line.Type == LineError {
			failed = errors.New(line.Error)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return silentError(failed)
}

package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Synapse/internal/capability"
	"github.com/shaiso/Synapse/internal/capability/httpbackend"
	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/engine"
	"github.com/shaiso/Synapse/internal/flowfile"
	"github.com/shaiso/Synapse/internal/orchestrator"
	"github.com/shaiso/Synapse/internal/steps"
)

// ExitError — ошибка, о которой пользователь уже уведомлён.
// main завершает процесс с кодом 1, не печатая её повторно.
type ExitError struct {
	Err error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func silentError(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Err: err}
}

// rangeFlags — флаги частичного run, общие для execute, start и exec.
type rangeFlags struct {
	start string
	stop  string
	seeds []string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "Node ID to start from (partial run)")
	cmd.Flags().StringVar(&f.stop, "stop", "", "Node ID to stop after (inclusive)")
	cmd.Flags().StringArrayVar(&f.seeds, "seed", nil, "Upstream result as NAME=TEXT (repeatable)")
}

func (f *rangeFlags) request() (ExecuteRequest, error) {
	seeds, err := parseSeeds(f.seeds)
	if err != nil {
		return ExecuteRequest{}, err
	}
	return ExecuteRequest{
		StartNodeID:     f.start,
		StopAfterNodeID: f.stop,
		InitialResults:  seeds,
	}, nil
}

func (f *rangeFlags) options() (orchestrator.Options, error) {
	req, err := f.request()
	if err != nil {
		return orchestrator.Options{}, err
	}
	return orchestrator.Options{
		StartNodeID:     req.StartNodeID,
		StopAfterNodeID: req.StopAfterNodeID,
		InitialResults:  req.InitialResults,
	}, nil
}

// parseSeeds разбирает значения вида NAME=TEXT. Имя узла может содержать
// пробелы, текст — знак "=" (делим по первому).
func parseSeeds(values []string) (map[string]domain.Payload, error) {
	if len(values) == 0 {
		return nil, nil
	}

	seeds := make(map[string]domain.Payload, len(values))
	for _, kv := range values {
		name, text, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid seed format %q, expected NAME=TEXT", kv)
		}
		seeds[name] = domain.TextPayload(text)
	}
	return seeds, nil
}

// NewValidateCmd создаёт команду проверки flow из файла (без API).
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a flow definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := flowfile.Load(args[0])
			if err != nil {
				return err
			}

			report := engine.Validate(flow.Nodes, flow.Edges)
			return printReport(outputFn(), report.Valid, report.Errors)
		},
	}
}

// NewOrderCmd создаёт команду вывода порядка выполнения flow из файла.
func NewOrderCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "order FILE",
		Short: "Print the execution order of a flow definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := flowfile.Load(args[0])
			if err != nil {
				return err
			}

			graph, err := engine.BuildGraph(flow.Nodes, flow.Edges)
			if err != nil {
				return err
			}

			ids := graph.Order()
			order := make([]OrderedNode, len(ids))
			for i, id := range ids {
				node := graph.Node(id)
				order[i] = OrderedNode{Position: i, ID: node.ID, Name: node.Name, Type: string(node.Type)}
			}
			printOrder(outputFn(), order)
			return nil
		},
	}
}

// NewExecCmd создаёт команду локального выполнения flow из файла.
// Узлы вызывают HTTP шлюз моделей напрямую, API и БД не нужны.
func NewExecCmd(outputFn func() *Output) *cobra.Command {
	var rf rangeFlags
	var capabilityURL string
	var capabilityToken string
	var stepDelay time.Duration
	var timeout time.Duration
	var verbose bool

	cmd := &cobra.Command{
		Use:   "exec FILE",
		Short: "Execute a flow definition file against a capability gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			flow, err := flowfile.Load(args[0])
			if err != nil {
				return err
			}

			opts, err := rf.options()
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			caps := capability.NewRegistry()
			httpbackend.New(httpbackend.Config{
				BaseURL: capabilityURL,
				Token:   capabilityToken,
				Timeout: timeout,
				Logger:  logger,
			}).Register(caps)

			orch := orchestrator.New(orchestrator.Config{
				Dispatcher: steps.NewDispatcher(steps.DispatcherConfig{
					Registry: steps.DefaultRegistry(caps),
					Logger:   logger,
				}),
				StepDelay: stepDelay,
				Logger:    logger,
			})

			obs := orchestrator.ObserverFuncs{
				OnProgress: func(ev domain.ProgressEvent) {
					out.Line(StreamLine{Type: LineProgress, Event: &ev})
				},
				OnComplete: func(results map[string]domain.Payload) {
					out.Line(StreamLine{Type: LineComplete, Results: results})
				},
				OnError: func(err error) {
					line := StreamLine{Type: LineError, Error: err.Error()}
					var nodeErr *orchestrator.NodeError
					if errors.As(err, &nodeErr) {
						line.FailedNodeID = nodeErr.NodeID
					}
					out.Line(line)
				},
			}

			_, err = orch.Run(cmd.Context(), flow.Nodes, flow.Edges, opts, obs)
			return silentError(err)
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVar(&capabilityURL, "capability-url", envOr("CAPABILITY_URL", httpbackend.DefaultURL), "Capability gateway URL")
	cmd.Flags().StringVar(&capabilityToken, "capability-token", os.Getenv("CAPABILITY_TOKEN"), "Capability gateway bearer token")
	cmd.Flags().DurationVar(&stepDelay, "step-delay", 0, "Pause between nodes")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-request gateway timeout (default 2m)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log engine activity to stderr")

	return cmd
}

// printReport выводит отчёт валидации. Невалидный граф — ненулевой код выхода.
func printReport(out *Output, valid bool, problems []string) error {
	if out.jsonMode {
		out.JSON(ValidationResponse{Valid: valid, Errors: problems})
	} else if valid {
		out.Success("Flow is valid")
	} else {
		for _, p := range problems {
			out.Error(p)
		}
	}

	if !valid {
		return silentError(fmt.Errorf("flow is invalid: %d problem(s)", len(problems)))
	}
	return nil
}

func printOrder(out *Output, order []OrderedNode) {
	rows := make([][]string, len(order))
	for i, n := range order {
		rows[i] = []string{fmt.Sprint(n.Position + 1), n.ID, n.Name, n.Type}
	}
	out.Print([]string{"#", "NODE_ID", "NAME", "TYPE"}, rows, order)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

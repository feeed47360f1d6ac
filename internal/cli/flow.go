package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/flowfile"
)

// NewFlowCmd создаёт группу команд для управления flows.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage flows",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowCreateCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowUpdateCmd(clientFn, outputFn),
		newFlowDeleteCmd(clientFn, outputFn),
		newFlowValidateCmd(clientFn, outputFn),
		newFlowOrderCmd(clientFn, outputFn),
		newFlowExportCmd(clientFn, outputFn),
		newFlowExecuteCmd(clientFn, outputFn),
	)

	return cmd
}

var flowHeaders = []string{"ID", "NAME", "NODES", "EDGES", "CREATED"}

func flowRow(f *FlowResponse) []string {
	return []string{f.ID, f.Name, strconv.Itoa(len(f.Nodes)), strconv.Itoa(len(f.Edges)), f.CreatedAt}
}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flows, err := client.ListFlows()
			if err != nil {
				return err
			}

			rows := make([][]string, len(flows))
			for i := range flows {
				rows[i] = flowRow(&flows[i])
			}

			out.Print(flowHeaders, rows, flows)
			return nil
		},
	}
}

func newFlowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a flow from a JSON or YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := FlowRequest{Name: name}
			if file != "" {
				def, err := flowfile.Load(file)
				if err != nil {
					return err
				}
				req = FlowRequestFrom(def)
				if cmd.Flags().Changed("name") {
					req.Name = name
				}
			}
			if req.Name == "" && file == "" {
				return errors.New("either --file or --name is required")
			}

			flow, err := client.CreateFlow(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow created: %s", flow.ID))
			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Flow definition file (.json, .yaml, - for stdin)")
	cmd.Flags().StringVar(&name, "name", "", "Flow name (overrides the file)")

	return cmd
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show flow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetFlow(args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(flow)
				return nil
			}

			out.Table(flowHeaders, [][]string{flowRow(flow)})
			fmt.Fprintln(out.w)

			rows := make([][]string, len(flow.Nodes))
			for i, n := range flow.Nodes {
				rows[i] = []string{n.ID, n.Name, string(n.Type)}
			}
			out.Table([]string{"NODE_ID", "NAME", "TYPE"}, rows)
			return nil
		},
	}
}

func newFlowUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string
	var name string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace a flow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var req FlowRequest
			if file != "" {
				def, err := flowfile.Load(file)
				if err != nil {
					return err
				}
				req = FlowRequestFrom(def)
			} else {
				// Только переименование: граф берём текущий
				current, err := client.GetFlow(args[0])
				if err != nil {
					return err
				}
				req = FlowRequest{
					Name:        current.Name,
					Description: current.Description,
					Nodes:       current.Nodes,
					Edges:       current.Edges,
				}
			}
			if cmd.Flags().Changed("name") {
				req.Name = name
			}
			if file == "" && !cmd.Flags().Changed("name") {
				return errors.New("nothing to update: pass --file or --name")
			}

			flow, err := client.UpdateFlow(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Flow updated")
			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "New flow definition file")
	cmd.Flags().StringVar(&name, "name", "", "New flow name")

	return cmd
}

func newFlowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteFlow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow deleted: %s", args[0]))
			return nil
		},
	}
}

func newFlowValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate ID",
		Short: "Validate a stored flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := clientFn().ValidateFlow(args[0])
			if err != nil {
				return err
			}
			return printReport(outputFn(), report.Valid, report.Errors)
		},
	}
}

func newFlowOrderCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "order ID",
		Short: "Show the execution order of a stored flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := clientFn().FlowOrder(args[0])
			if err != nil {
				return err
			}
			printOrder(outputFn(), order)
			return nil
		},
	}
}

func newFlowExportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var outFile string
	var format string

	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Export a flow definition to JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetFlow(args[0])
			if err != nil {
				return err
			}

			def := &domain.Flow{
				Name:        flow.Name,
				Description: flow.Description,
				Nodes:       flow.Nodes,
				Edges:       flow.Edges,
			}

			if outFile != "" {
				if err := flowfile.Save(outFile, def); err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Flow exported to %s", outFile))
				return nil
			}

			f := flowfile.Format(format)
			if f != flowfile.FormatJSON && f != flowfile.FormatYAML {
				return fmt.Errorf("invalid value for --format: %s", format)
			}
			return flowfile.Encode(os.Stdout, def, f)
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Output file (format by extension)")
	cmd.Flags().StringVar(&format, "format", "yaml", "Format for stdout: json or yaml")

	return cmd
}

func newFlowExecuteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var rf rangeFlags

	cmd := &cobra.Command{
		Use:   "execute ID",
		Short: "Execute a stored flow and stream progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req, err := rf.request()
			if err != nil {
				return err
			}

			var failed error
			err = client.Execute(cmd.Context(), args[0], req, func(line StreamLine) error {
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
		},
	}

	rf.register(cmd)
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"goa.design/clue/log"
	"gopkg.in/yaml.v3"

	"goa.design/dashpanels/dashboard/mutator"
	"goa.design/dashpanels/dashboard/panel"
	"goa.design/dashpanels/dashboard/scene"
	"goa.design/dashpanels/dashboard/schema"
	"goa.design/dashpanels/dashboard/tool"
	"goa.design/dashpanels/integrations/grafana"
	"goa.design/dashpanels/runtime/telemetry"
	"goa.design/dashpanels/runtime/toolregistry"
)

type (
	rootOptions struct {
		configPath string
		cfg        *config
	}

	addOptions struct {
		file      string
		dashboard string
		message   string
	}
)

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "dashpanels",
		Short: "Add panels to Grafana dashboards",
		Long: `Add panels to Grafana dashboards from declarative panel configurations.

Configuration is read from the file given with --config and from
DASHPANELS_* environment variables, for example DASHPANELS_GRAFANA_URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the configuration file")

	cmd.AddCommand(newAddCmd(opts), newSchemaCmd(), newToolsCmd(opts))
	return cmd
}

func newAddCmd(root *rootOptions) *cobra.Command {
	opts := &addOptions{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add the panels of a batch file to a dashboard",
		Example: `  # Add the panels described in panels.yaml to dashboard ops
  $ dashpanels add -d ops -f panels.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAdd(cmd, root.cfg, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "YAML or JSON batch file, - for stdin")
	cmd.Flags().StringVarP(&opts.dashboard, "dashboard", "d", "", "UID of the dashboard to edit")
	cmd.Flags().StringVarP(&opts.message, "message", "m", grafana.DefaultSaveMessage, "dashboard version message")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("dashboard")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of panel batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(schema.JSON())
			return err
		},
	}
}

func newToolsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logContext(root.cfg)
			logger := telemetry.NewClueLogger()
			t := tool.New(mutator.New(panel.New(nil)), tool.WithLogger(logger), tool.WithOwnerID(root.cfg.Tool.OwnerID))
			reg := toolregistry.New(toolregistry.WithLogger(logger), toolregistry.WithReady())
			listing, err := t.Register(ctx, reg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), listing)
			return err
		},
	}
}

func runAdd(cmd *cobra.Command, cfg *config, opts *addOptions) error {
	ctx := logContext(cfg)
	payload, err := readBatch(cmd, opts.file)
	if err != nil {
		return err
	}

	logger := telemetry.NewClueLogger()
	client, err := grafana.NewClient(cfg.grafanaClientConfig(), grafana.WithLogger(logger))
	if err != nil {
		return err
	}
	d, err := client.OpenDashboard(ctx, opts.dashboard)
	if err != nil {
		return err
	}
	d.SetSaveMessage(opts.message)

	m := mutator.New(
		panel.New(client.Resolver(), panel.WithLogger(logger)),
		mutator.WithIDAllocator(allocator(cfg.Tool.IDs)),
		mutator.WithLogger(logger),
		mutator.WithMetrics(telemetry.NewClueMetrics()),
		mutator.WithTracer(telemetry.NewClueTracer()),
	)
	t := tool.New(m, tool.WithLogger(logger), tool.WithOwnerID(cfg.Tool.OwnerID))
	reg := toolregistry.New(toolregistry.WithLogger(logger), toolregistry.WithReady())
	if _, err := t.Register(ctx, reg); err != nil {
		return err
	}

	res := reg.Invoke(scene.WithDashboard(ctx, d), tool.Name, payload)
	if res.Error != nil {
		for _, is := range res.Error.Issues {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s (%s)\n", is.Field, is.Message, is.Constraint)
		}
		return fmt.Errorf("%s: %s", res.Error.Code, res.Error.Message)
	}
	var msg string
	if err := json.Unmarshal(res.Result, &msg); err != nil {
		return fmt.Errorf("decode tool result: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
	return err
}

// readBatch reads a YAML or JSON batch file and returns it as JSON.
func readBatch(cmd *cobra.Command, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read batch %s: %w", path, err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", path, err)
	}
	if doc == nil {
		return nil, errors.New("batch file is empty")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert batch %s: %w", path, err)
	}
	return raw, nil
}

func allocator(kind string) mutator.IDAllocator {
	if kind == "sequential" {
		return mutator.SequentialIDs{}
	}
	return mutator.RandomIDs{}
}

func logContext(cfg *config) context.Context {
	format := log.FormatJSON
	switch cfg.Log.Format {
	case "terminal":
		format = log.FormatTerminal
	case "":
		if log.IsTerminal() {
			format = log.FormatTerminal
		}
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if cfg.Log.Debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	return ctx
}

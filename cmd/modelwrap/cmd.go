package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"modelwrap/internal/config"
	"modelwrap/internal/engine"
	"modelwrap/internal/logging"
	"modelwrap/internal/message"
	"modelwrap/internal/transform"
	"modelwrap/internal/transport"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "modelwrap",
		Short:        "Serve a feature/label transformer over REST and gRPC",
		SilenceUsage: true,
		// config.Load may log before serve applies log.level
		PersistentPreRun: func(*cobra.Command, []string) { logging.InitFromEnv() },
	}
	root.AddCommand(newServeCmd(), newInvokeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var cfgPath, modelPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the transformer server",
		Long: `Start the REST and gRPC front ends, plus the Kafka stream runner when
stream.enabled is set. Configuration comes from --config and MODELWRAP_*
environment variables.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if modelPath != "" {
				cfg.Model.File = modelPath
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := engine.Bootstrap(ctx, cfg, nil)
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			return e.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "modelwrap.yml", "config file (missing file means defaults)")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "builtin scaler model file, overrides model.file")
	return cmd
}

func newInvokeCmd() *cobra.Command {
	var (
		addr, dir, data string
		timeout         time.Duration
	)
	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Send one SeldonMessage to a running server over gRPC",
		Example: `  modelwrap invoke --addr localhost:5000 --direction input \
    --data '{"data":{"names":["a","b"],"ndarray":[[1,2]]}}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := transform.ParseDirection(dir)
			if err != nil {
				return err
			}
			var req message.Message
			if err := json.Unmarshal([]byte(data), &req); err != nil {
				return fmt.Errorf("--data: %w", err)
			}

			c, err := transport.Dial(addr)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			resp, err := c.Transform(ctx, d, &req)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:5000", "gRPC server address")
	cmd.Flags().StringVar(&dir, "direction", "input", "input or output")
	cmd.Flags().StringVar(&data, "data", "", "request body as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "call deadline")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// hubctl is the operator CLI for hubd: it sends mode and data-session
// commands over the hub's request/reply endpoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hubd/internal/transport"
	"hubd/pkg/types"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type cliConfig struct {
	address string
	token   string
	timeout time.Duration
}

func buildRootCmd() *cobra.Command {
	cfg := &cliConfig{}

	root := &cobra.Command{
		Use:           "hubctl",
		Short:         "Send commands to a running hubd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfg.address, "address", "a", "127.0.0.1:5555", "Hub address")
	root.PersistentFlags().StringVar(&cfg.token, "token", "", "Auth token, when the hub requires one")
	root.PersistentFlags().DurationVar(&cfg.timeout, "timeout", 3*time.Second, "Per-call timeout")

	root.AddCommand(
		&cobra.Command{
			Use:   "teleop <provider>",
			Short: "Enter teleoperation under the named provider",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendCommand(cfg, map[string]any{"teleop": args[0]})
			},
		},
		&cobra.Command{
			Use:   "infer <instruction...>",
			Short: "Enter AI mode with a task instruction",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendCommand(cfg, map[string]any{"infer": strings.Join(args, " ")})
			},
		},
		&cobra.Command{
			Use:   "idle",
			Short: "Return to idle",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendCommand(cfg, map[string]any{"idle": ""})
			},
		},
		&cobra.Command{
			Use:   "data <start|resume|go|reset|next|skip|rerecord|redo|stop|end>",
			Short: "Drive a data-recording session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendCommand(cfg, map[string]any{"data": map[string]any{"command": args[0]}})
			},
		},
		&cobra.Command{
			Use:   "raw <json>",
			Short: "Send a raw passthrough payload",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var payload map[string]any
				if err := json.Unmarshal([]byte(args[0]), &payload); err != nil {
					return fmt.Errorf("payload must be a JSON object: %w", err)
				}
				return sendCommand(cfg, map[string]any{"raw": payload})
			},
		},
		&cobra.Command{
			Use:   "shutdown",
			Short: "Shut the hub down",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendCommand(cfg, map[string]any{"shutdown": ""})
			},
		},
		&cobra.Command{
			Use:   "ping",
			Short: "Check the hub is reachable",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client := newClient(cfg)
				defer client.Close()
				if err := client.Ping(context.Background()); err != nil {
					return err
				}
				fmt.Println("OK")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the hub status as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client := newClient(cfg)
				defer client.Close()
				var status types.StatusResponse
				if err := client.Call(context.Background(), "status", nil, &status); err != nil {
					return err
				}
				out, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			},
		},
	)
	root.AddCommand(buildWatchCmd(cfg))
	return root
}

func newClient(cfg *cliConfig) *transport.Client {
	return transport.NewClient(cfg.address, cfg.timeout, cfg.token)
}

func sendCommand(cfg *cliConfig, body map[string]any) error {
	client := newClient(cfg)
	defer client.Close()
	var reply struct {
		Status string `cbor:"status"`
	}
	if err := client.Call(context.Background(), "command", body, &reply); err != nil {
		return err
	}
	fmt.Println(reply.Status)
	return nil
}

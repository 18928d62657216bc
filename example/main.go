package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"
	"go.uber.org/zap"

	"github.com/BenBurnett/graphqllink"
)

const HelloQuery = `
	query {
		hello
	}
`

const EchoMutation = `
	mutation($message: String!) {
		echo(message: $message)
	}
`

const SubscriptionQuery = `
	subscription {
		messageSent
	}
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var variables string

	root := &cobra.Command{
		Use:           "example",
		Short:         "Send GraphQL operations over HTTP or websocket depending on their kind",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&variables, "variables", "", "operation variables as a JSON object")

	root.AddCommand(&cobra.Command{
		Use:   "query [document]",
		Short: "Run a query or mutation and print its data",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), configPath, func(ctx context.Context, client *graphqllink.Client) error {
				document := HelloQuery
				if len(args) == 1 {
					document = args[0]
				}
				vars, err := parseVariables(variables)
				if err != nil {
					return err
				}
				var data json.RawMessage
				if err := client.Execute(ctx, document, vars, &data); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "subscribe [document]",
		Short: "Subscribe and print every event until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), configPath, func(ctx context.Context, client *graphqllink.Client) error {
				document := SubscriptionQuery
				if len(args) == 1 {
					document = args[0]
				}
				vars, err := parseVariables(variables)
				if err != nil {
					return err
				}
				sub, err := client.Subscribe(ctx, document, vars)
				if err != nil {
					return err
				}
				for event := range sub.Events() {
					fmt.Fprintln(cmd.OutOrStdout(), string(event.Data))
				}
				return sub.Err()
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "echo [message]",
		Short: "Run the echo mutation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), configPath, func(ctx context.Context, client *graphqllink.Client) error {
				var result struct {
					Echo string `json:"echo"`
				}
				if err := client.Execute(ctx, EchoMutation, map[string]interface{}{"message": args[0]}, &result); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Echo)
				return nil
			})
		},
	})

	return root
}

func withClient(parent context.Context, configPath string, fn func(context.Context, *graphqllink.Client) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := graphqllink.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := graphqllink.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := graphqllink.NewClient(cfg, graphqllink.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close client", zap.Error(err))
		}
	}()

	return fn(ctx, client)
}

func parseVariables(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return nil, nil
	}
	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &vars); err != nil {
		return nil, zerr.Wrap(err, "failed to parse variables")
	}
	return vars, nil
}

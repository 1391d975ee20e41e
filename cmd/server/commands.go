package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func queueCMD(configPath *string) *cobra.Command {
	queue := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or clear the regeneration queue",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Print queue status as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, _, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			st, err := application.Queue().Status(ctx)
			if err != nil {
				return err
			}
			return printJSON(st)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every queued job and pending timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, _, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Queue().Clear(ctx); err != nil {
				return err
			}
			fmt.Println("queue cleared")
			return nil
		},
	}

	queue.AddCommand(status, clearCmd)
	return queue
}

func testConnectionCMD(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Send a minimal request to the configured summarization provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, _, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			msg, err := application.Summaries().TestConnection(ctx)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

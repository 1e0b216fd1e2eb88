package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/Resilient-Tool-Gateway/pkg/config"
	logx "github.com/tanpawarit/Resilient-Tool-Gateway/pkg/logger"
	_ "github.com/tanpawarit/Resilient-Tool-Gateway/pkg/logger/autoload"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "tool-gateway",
	Short: "Resilient tool-call gateway for a dental office voice agent",
	Long: `tool-gateway serves the dental office tools over MCP and calls them
through a retrying, circuit-broken client.

  serve   run the tool server on stdio
  call    invoke one tool through the client runtime
  tools   print the tool catalog`,
	PersistentPreRunE: loadEnvironment,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file")
	rootCmd.AddCommand(serveCmd, callCmd, toolsCmd)
}

// loadEnvironment applies --env and re-initialises logging from it. Logs go
// to stderr because stdout carries either the MCP stream or command output.
func loadEnvironment(cmd *cobra.Command, args []string) error {
	configx.SetEnvFile(envFile)

	logCfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		return fmt.Errorf("load log config: %w", err)
	}
	logCfg.Stderr = true
	logx.Init(*logCfg)
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Str("command", os.Args[0]).Msg("command_failed")
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}

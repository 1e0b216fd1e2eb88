package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	auditx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/audit"
	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
	executorx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/executor"
	metricsx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/metrics"
	runtimex "github.com/tanpawarit/Resilient-Tool-Gateway/agent/runtime"
	transportx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/transport"
	configx "github.com/tanpawarit/Resilient-Tool-Gateway/pkg/config"
)

var promptVersion string

var callCmd = &cobra.Command{
	Use:   "call <tool> [json-args]",
	Short: "Invoke one tool through the retrying client",
	Long: `call spawns the tool server (TRANSPORT_COMMAND, or this binary's serve
command when unset), invokes one tool and prints the result with metrics.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&promptVersion, "prompt-version", "cli", "prompt version recorded in the audit trail")
}

type callOutput struct {
	Result   contractx.ToolResult `json:"result"`
	CallID   string               `json:"call_id"`
	Metrics  metricsx.Export      `json:"metrics"`
	Deadline string               `json:"worst_case_latency"`
}

func runCall(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()

	toolArgs := map[string]any{}
	if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("decode tool arguments: %w", err)
		}
	}

	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}

	opts := []runtimex.Option{}
	auditCfg, err := configx.New[auditx.UpstashRedisConfig]("AUDIT_REDIS")
	if err != nil {
		return fmt.Errorf("load audit config: %w", err)
	}
	if auditCfg.Enabled() {
		store, err := auditx.NewUpstashRedisStore(*auditCfg)
		if err != nil {
			return err
		}
		opts = append(opts, runtimex.WithAuditStore(store))
	}

	rt, err := runtimex.New(transportx.CommandConnector(cfg.Transport), cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, rt.Close())
	}()

	call := rt.BeginCall(promptVersion)
	res := call.Tool(ctx, args[0], toolArgs)
	if _, err := call.Finish(ctx); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(callOutput{
		Result:   res,
		CallID:   call.ID(),
		Metrics:  rt.Metrics(),
		Deadline: cfg.WorstCaseLatency().String(),
	})
}

func loadRuntimeConfig() (runtimex.Config, error) {
	execCfg, err := configx.New[executorx.Config]("EXECUTOR")
	if err != nil {
		return runtimex.Config{}, fmt.Errorf("load executor config: %w", err)
	}
	transportCfg, err := configx.New[transportx.Config]("TRANSPORT")
	if err != nil {
		return runtimex.Config{}, fmt.Errorf("load transport config: %w", err)
	}
	metricsCfg, err := configx.New[metricsx.Config]("METRICS")
	if err != nil {
		return runtimex.Config{}, fmt.Errorf("load metrics config: %w", err)
	}

	if strings.TrimSpace(transportCfg.Command) == "" {
		self, err := os.Executable()
		if err != nil {
			return runtimex.Config{}, fmt.Errorf("resolve tool server command: %w", err)
		}
		transportCfg.Command = self
		transportCfg.Args = []string{"serve"}
		if envFile != "" {
			transportCfg.Args = append(transportCfg.Args, "--env", envFile)
		}
	}

	return runtimex.Config{
		Executor:  *execCfg,
		Transport: *transportCfg,
		Metrics:   *metricsCfg,
	}, nil
}

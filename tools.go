package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	toolx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/tool"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalog as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		type entry struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"input_schema"`
		}
		out := make([]entry, 0, len(toolx.Names()))
		for _, name := range toolx.Names() {
			out = append(out, entry{
				Name:        name,
				Description: toolx.Description(name),
				InputSchema: toolx.InputSchema(name),
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

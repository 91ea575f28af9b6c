package main

import (
	"encoding/json"
	"occupancy/internal/core"

	"github.com/spf13/cobra"
)

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeResult prints res and turns a failed command into a non-zero exit.
func writeResult(cmd *cobra.Command, res core.CommandResult) error {
	if err := writeJSON(cmd, res); err != nil {
		return err
	}
	return res.Err()
}

package main

import (
	"occupancy/internal/blob"

	"github.com/spf13/cobra"
)

func newSnapshotCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export and inspect archived snapshots of the committed state",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "export",
			Short: "Write a snapshot to the blob store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := c.open(cmd)
				if err != nil {
					return err
				}
				info, snap, err := a.exporter.Export(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd, map[string]any{"key": info.Key, "size": info.Size, "counts": snap.Counts})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored snapshots, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := c.open(cmd)
				if err != nil {
					return err
				}
				infos, err := a.exporter.List(cmd.Context())
				if err != nil {
					return err
				}
				if infos == nil {
					infos = []blob.Info{}
				}
				return writeJSON(cmd, infos)
			},
		},
		&cobra.Command{
			Use:   "latest",
			Short: "Print the most recent snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := c.open(cmd)
				if err != nil {
					return err
				}
				snap, _, err := a.exporter.Latest(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd, snap)
			},
		},
	)
	return cmd
}

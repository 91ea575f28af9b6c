package main

import (
	"github.com/spf13/cobra"
)

func newBootstrapCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the block/entry/unit topology (once)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			return writeResult(cmd, a.svc.Bootstrap(cmd.Context()))
		},
	}
}

func newHierarchyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "hierarchy",
		Short: "Print blocks with their entries and units",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			tree, err := a.svc.Hierarchy(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, tree)
		},
	}
}

func newEntriesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "entries BLOCK_ID",
		Short: "List the entries of a block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			entries, err := a.svc.EntriesForBlock(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, entries)
		},
	}
}

func newUnitsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "units ENTRY_ID",
		Short: "List the units of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			units, err := a.svc.UnitsForEntry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, units)
		},
	}
}

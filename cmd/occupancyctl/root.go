package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"occupancy/internal/config"
	"os"

	"github.com/spf13/cobra"
)

// cli carries state shared by every subcommand of one invocation.
type cli struct {
	out        io.Writer
	logOut     io.Writer
	envFiles   []string
	loadConfig func(envFiles []string) (*config.Config, error)
	app        *app
}

func newCLI(out io.Writer) *cli {
	return &cli{
		out:    out,
		logOut: os.Stderr,
		loadConfig: func(files []string) (*config.Config, error) {
			return config.Load(files...)
		},
	}
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "occupancyctl",
		Short:         "Manage residential units, persons and their occupancy links",
		SilenceUsage: true,
	}
	cmd.SetOut(c.out)
	cmd.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", nil, "Env files to load before reading OCCUPANCY_* variables (default .env,.env.local)")

	cmd.AddCommand(
		newServeCmd(c),
		newBootstrapCmd(c),
		newHierarchyCmd(c),
		newEntriesCmd(c),
		newUnitsCmd(c),
		newLinkCmd(c),
		newPersonCmd(c),
		newSnapshotCmd(c),
	)
	return cmd
}

// open builds the application on first use.
func (c *cli) open(cmd *cobra.Command) (*app, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.loadConfig(c.envFiles)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := buildApp(cmd.Context(), cfg, c.logOut)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// execute runs the command line and always releases the application.
func execute(ctx context.Context, c *cli, args []string) error {
	cmd := newRootCmd(c)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if c.app != nil {
		err = errors.Join(err, c.app.Close())
		c.app = nil
	}
	return err
}

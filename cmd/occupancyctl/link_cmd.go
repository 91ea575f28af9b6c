package main

import (
	"errors"
	"occupancy/pkg/domain"

	"github.com/spf13/cobra"
)

func newLinkCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Create, move and retire occupancy links",
	}
	cmd.AddCommand(
		newLinkCreateCmd(c),
		newLinkTransferCmd(c),
		newLinkCategoryCmd(c),
		newLinkDeactivateCmd(c),
		newLinkDeleteCmd(c),
		newLinkPurgeCmd(c),
		newLinkListCmd(c),
	)
	return cmd
}

func newLinkCreateCmd(c *cli) *cobra.Command {
	var personID, unitID, category string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Link an existing person to a unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			return writeResult(cmd, a.svc.CreateLink(cmd.Context(), personID, unitID, cat))
		},
	}
	cmd.Flags().StringVar(&personID, "person", "", "Person id (required)")
	cmd.Flags().StringVar(&unitID, "unit", "", "Unit id (required)")
	cmd.Flags().StringVar(&category, "category", "", "Link category (required)")
	_ = cmd.MarkFlagRequired("person")
	_ = cmd.MarkFlagRequired("unit")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newLinkTransferCmd(c *cli) *cobra.Command {
	var personID, linkID, unitID, category string
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "End a link and relink the person to another unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			return writeResult(cmd, a.svc.TransferPerson(cmd.Context(), personID, linkID, unitID, cat))
		},
	}
	cmd.Flags().StringVar(&personID, "person", "", "Person id (required)")
	cmd.Flags().StringVar(&linkID, "link", "", "Link being ended (required)")
	cmd.Flags().StringVar(&unitID, "unit", "", "Destination unit id (required)")
	cmd.Flags().StringVar(&category, "category", "", "Category of the new link (required)")
	for _, f := range []string{"person", "link", "unit", "category"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newLinkCategoryCmd(c *cli) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "category LINK_ID",
		Short: "Change the category of a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			return writeResult(cmd, a.svc.UpdateLinkCategory(cmd.Context(), args[0], cat))
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "New category (required)")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newLinkDeactivateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate LINK_ID",
		Short: "End a link today",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			return writeResult(cmd, a.svc.DeactivateLink(cmd.Context(), args[0]))
		},
	}
}

func newLinkDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete LINK_ID",
		Short: "Hard-delete a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			return writeResult(cmd, a.svc.DeleteLink(cmd.Context(), args[0]))
		},
	}
}

func newLinkPurgeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "purge PERSON_ID",
		Short: "Hard-delete the inactive links of a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			return writeResult(cmd, a.svc.PurgeInactiveLinks(cmd.Context(), args[0]))
		},
	}
}

func newLinkListCmd(c *cli) *cobra.Command {
	var unitID, personID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the active links of a unit or every link of a person",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (unitID == "") == (personID == "") {
				return errors.New("exactly one of --unit or --person is required")
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			var links []domain.Link
			if unitID != "" {
				links, err = a.svc.ListActiveLinksForUnit(cmd.Context(), unitID)
			} else {
				links, err = a.svc.ListLinksForPerson(cmd.Context(), personID)
			}
			if err != nil {
				return err
			}
			if links == nil {
				links = []domain.Link{}
			}
			return writeJSON(cmd, links)
		},
	}
	cmd.Flags().StringVar(&unitID, "unit", "", "Unit id")
	cmd.Flags().StringVar(&personID, "person", "", "Person id")
	return cmd
}

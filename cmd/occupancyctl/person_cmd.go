package main

import (
	"occupancy/internal/core"
	"occupancy/pkg/domain"
	"strings"

	"github.com/spf13/cobra"
)

func newPersonCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Resolve, edit and search persons",
	}
	cmd.AddCommand(
		newPersonResolveCmd(c),
		newPersonGetCmd(c),
		newPersonUpdateCmd(c),
		newPersonDeleteCmd(c),
		newPersonSearchCmd(c),
		newPersonVehicleCmd(c),
	)
	return cmd
}

func newPersonResolveCmd(c *cli) *cobra.Command {
	var (
		candidate core.PersonCandidate
		unitID    string
		category  string
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Find or create a person by identifier and link them to a unit",
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
			return writeResult(cmd, a.svc.ResolveAndLinkPerson(cmd.Context(), candidate, unitID, cat))
		},
	}
	cmd.Flags().StringVar(&candidate.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&candidate.PrimaryID, "primary-id", "", "Primary document number")
	cmd.Flags().StringVar(&candidate.AltID, "alt-id", "", "Alternate document number")
	cmd.Flags().StringVar(&candidate.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&candidate.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&unitID, "unit", "", "Unit id (required)")
	cmd.Flags().StringVar(&category, "category", "", "Link category (required)")
	_ = cmd.MarkFlagRequired("unit")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newPersonGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get PERSON_ID",
		Short: "Show a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			p, err := a.svc.GetPerson(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, p)
		},
	}
}

func newPersonUpdateCmd(c *cli) *cobra.Command {
	var name, primaryID, altID, email, phone string
	cmd := &cobra.Command{
		Use:   "update PERSON_ID",
		Short: "Edit the fields of a person; only flags given are changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update core.PersonUpdate
			flags := cmd.Flags()
			for flag, dst := range map[string]**string{
				"name":       &update.FullName,
				"primary-id": &update.PrimaryID,
				"alt-id":     &update.AltID,
				"email":      &update.Email,
				"phone":      &update.Phone,
			} {
				if flags.Changed(flag) {
					v, _ := flags.GetString(flag)
					*dst = &v
				}
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			return writeResult(cmd, a.svc.UpdatePerson(cmd.Context(), args[0], update))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&primaryID, "primary-id", "", "Primary document number (empty clears)")
	cmd.Flags().StringVar(&altID, "alt-id", "", "Alternate document number (empty clears)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number")
	return cmd
}

func newPersonDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete PERSON_ID",
		Short: "Delete a person with all links and vehicles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			return writeResult(cmd, a.svc.DeletePerson(cmd.Context(), args[0]))
		},
	}
}

func newPersonSearchCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Rank persons by name or identifier prefix",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			matches, err := a.svc.SearchPersons(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if matches == nil {
				matches = []core.PersonMatch{}
			}
			return writeJSON(cmd, matches)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum matches (0 for all)")
	return cmd
}

func newPersonVehicleCmd(c *cli) *cobra.Command {
	var plate, model string
	cmd := &cobra.Command{
		Use:   "vehicle PERSON_ID",
		Short: "Attach a vehicle to a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			return writeResult(cmd, a.svc.AttachVehicle(cmd.Context(), args[0], plate, model))
		},
	}
	cmd.Flags().StringVar(&plate, "plate", "", "License plate (required)")
	cmd.Flags().StringVar(&model, "model", "", "Vehicle model")
	_ = cmd.MarkFlagRequired("plate")
	return cmd
}

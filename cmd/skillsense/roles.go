package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/skillsense/internal/observability"
	"github.com/jonathan/skillsense/internal/pipeline"
	"github.com/jonathan/skillsense/internal/types"
	"github.com/spf13/cobra"
)

func newRolesCmd(root *rootOptions) *cobra.Command {
	var (
		category string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List the target roles in the ontology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, "text", "json"); err != nil {
				return err
			}
			cfg, err := root.resolve(cmd)
			if err != nil {
				return err
			}
			ont, err := pipeline.LoadOntology(cfg)
			if err != nil {
				return err
			}

			roles := make([]types.Role, 0)
			for _, r := range ont.Roles() {
				if category == "" || strings.EqualFold(string(r.Category), category) {
					roles = append(roles, r)
				}
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(roles)
			}
			if len(roles) == 0 {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "No roles in category %q\n", category)
				return err
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintRoles(roles)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only list roles in this category (e.g. Tech, Finance)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func newValidateOntologyCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-ontology [path]",
		Short: "Check an ontology file for schema and consistency errors",
		Long: `Load an ontology file and report every problem found: schema violations, duplicate
skill IDs, alias collisions and roles that require unknown skills.
Without a path the configured ontology (or the bundled catalog) is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.resolve(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Ontology = args[0]
			}

			ont, err := pipeline.LoadOntology(cfg)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			source := cfg.Ontology
			if source == "" {
				source = "bundled catalog"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Validation passed: %s (version %s, %d skills, %d roles)\n",
				source, ont.Version(), len(ont.SkillIDs()), len(ont.Roles()))
			return err
		},
	}
}

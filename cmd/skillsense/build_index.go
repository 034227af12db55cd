package main

import (
	"fmt"

	"github.com/jonathan/skillsense/internal/db"
	"github.com/jonathan/skillsense/internal/index"
	"github.com/jonathan/skillsense/internal/pipeline"
	"github.com/spf13/cobra"
)

func newBuildIndexCmd(root *rootOptions) *cobra.Command {
	var (
		out         string
		toDB        bool
		batchSize   int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Precompute skill embeddings for semantic mode",
		Long: `Embed the display name of every skill in the ontology with the configured provider and
write the index to a file (--out) or to PostgreSQL (--db, using --db-url or DATABASE_URL).
Semantic mode loads the index instead of embedding the ontology at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (out != "") == toDB {
				return fmt.Errorf("exactly one of --out or --db is required")
			}

			cfg, err := root.resolve(cmd)
			if err != nil {
				return err
			}
			if toDB && cfg.DatabaseURL == "" {
				return fmt.Errorf("--db requires --db-url or DATABASE_URL")
			}

			ctx := cmd.Context()
			logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)

			ont, err := pipeline.LoadOntology(cfg)
			if err != nil {
				return err
			}
			emb, err := pipeline.NewEmbedder(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer emb.Close() //nolint:errcheck

			idx, err := index.Build(ctx, ont, emb, index.BuildOptions{
				BatchSize:   batchSize,
				Concurrency: concurrency,
				Logger:      logger,
			})
			if err != nil {
				return fmt.Errorf("failed to build index: %w", err)
			}

			dest := out
			if toDB {
				database, err := db.Connect(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer database.Close()
				if err := database.EnsureSchema(ctx); err != nil {
					return err
				}
				if err := database.SaveIndex(ctx, idx); err != nil {
					return err
				}
				dest = "database"
			} else if err := idx.SaveFile(out); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Built index: %d skills, model %s, dimension %d, ontology %s\nOutput: %s\n",
				idx.Len(), idx.Model(), idx.Dimension(), idx.OntologyVersion(), dest)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the index to this file")
	cmd.Flags().BoolVar(&toDB, "db", false, "Store the index in PostgreSQL")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Skills per embedding request (default 64)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent embedding requests (default 4)")
	return cmd
}

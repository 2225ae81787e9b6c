package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/smokeshop-backend/internal/checkout"
	"github.com/angelmondragon/smokeshop-backend/internal/seed"
)

type seeder interface {
	Apply(ctx context.Context, f *seed.File) (seed.Summary, error)
}

type reconciler interface {
	RunOnce(ctx context.Context) (checkout.ReconcileSummary, error)
}

type sitemapBuilder interface {
	Products(ctx context.Context) ([]byte, error)
	Blog(ctx context.Context) ([]byte, error)
}

// runtime opens the backing services for a command. Each opener returns a
// cleanup that releases connections.
type runtime struct {
	seeder     func(ctx context.Context) (seeder, func(), error)
	reconciler func(ctx context.Context) (reconciler, func(), error)
	sitemaps   func(ctx context.Context) (sitemapBuilder, func(), error)
}

func rootCmd(rt runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "storectl",
		Short:         "Operator tooling for the smoke shop backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(seedCmd(rt), reconcileCmd(rt), sitemapCmd(rt))
	return cmd
}

func seedCmd(rt runtime) *cobra.Command {
	var (
		path   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert catalog lookups, products, blog, faq and seo pages from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.LoadFile(path)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "seed file ok: %d products, %d articles, %d faqs, %d seo pages\n",
					len(f.Products), len(f.Articles), len(f.Faqs), len(f.SeoPages))
				return nil
			}

			s, cleanup, err := rt.seeder(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := s.Apply(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("apply seed: %w", err)
			}
			return writeJSON(cmd, summary)
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "seed file (YAML)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func reconcileCmd(rt runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one payment reconciliation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, cleanup, err := rt.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := rec.RunOnce(cmd.Context())
			if writeErr := writeJSON(cmd, summary); writeErr != nil {
				return writeErr
			}
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			return nil
		},
	}
}

func sitemapCmd(rt runtime) *cobra.Command {
	return &cobra.Command{
		Use:       "sitemap [products|blog]",
		Short:     "Print a sitemap to stdout",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"products", "blog"},
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, cleanup, err := rt.sitemaps(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			var out []byte
			switch args[0] {
			case "products":
				out, err = builder.Products(cmd.Context())
			case "blog":
				out, err = builder.Blog(cmd.Context())
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

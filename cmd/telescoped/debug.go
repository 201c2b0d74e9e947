package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/strrl/telescope-dashboard/pkg/family"
	"github.com/strrl/telescope-dashboard/pkg/fixture"
)

func debugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Debugging utilities for development",
	}

	cmd.AddCommand(debugSeedCmd())
	return cmd
}

func debugSeedCmd() *cobra.Command {
	var families bool

	cmd := &cobra.Command{
		Use:   "seed <file.ndjson>",
		Short: "Load NDJSON entry records into the configured database",
		Long: `Read one JSON entry record per line ("-" for stdin) and insert them in
batches, filling the projection columns from content. Records may carry uuid,
batch_id, family_hash, type, content, should_display_on_index, created_at and
tags. Queries, exceptions and logs without a family_hash are grouped into
families of similar statements or messages.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			_, s, err := setup(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			records, err := fixture.Read(ctx, args[0])
			if err != nil {
				return err
			}

			start := time.Now()
			var opts []fixture.Option
			if families {
				opts = append(opts, fixture.WithFamilies(family.NewGrouper()))
			}
			stats, err := fixture.Seed(ctx, s, records, opts...)
			if err != nil {
				return errors.Errorf("seed after %d entries: %w", stats.Entries, err)
			}
			fmt.Fprintf(os.Stderr, "Seeded %d entries and %d tags in %s\n", stats.Entries, stats.Tags, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&families, "families", true, "derive missing family hashes")
	return cmd
}

package main

import (

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"
)

func showCmd() *cobra.Command {
	var withBatch bool

	cmd := &cobra.Command{
		Use:   "show <uuid>",
		Short: "Print one entry with its tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			q := newQuerier(s, cfg)
			var result any
			if withBatch {
				d, err := q.FindWithBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if d != nil {
					result = d
				}
			} else {
				d, err := q.Find(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if d != nil {
					result = d
				}
			}
			if result == nil {
				return errors.Errorf("entry %s not found", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&withBatch, "batch", false, "include the other entries of the same batch")
	return cmd
}

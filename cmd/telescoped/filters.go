package main

import (

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/strrl/telescope-dashboard/pkg/catalog"
	"github.com/strrl/telescope-dashboard/pkg/entry"
)

func filtersCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "filters <type>",
		Short: "List the filter values offered for an entry type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			values := catalog.FilterValues(entry.Type(args[0]), catalog.Env{RouteGroups: cfg.RouteGroups})

			out := cmd.OutOrStdout()
			switch output {
			case "json":
				return writeJSON(out, values)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(values); err != nil {
					return err
				}
				return enc.Close()
			default:
				return errors.Errorf("unknown output format %q", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newToolsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools <toolkit>",
		Short: "List the tools a toolkit declares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, stop, err := a.engine(cmd)
			if err != nil {
				return err
			}
			defer stop()

			tools, err := engine.Tools(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(tools, "", "  ")
				if err != nil {
					return fmt.Errorf("encode json: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			if len(tools) == 0 {
				cmd.Println("(no tools)")
				return nil
			}

			cmd.Printf("%-20s %-5s %-24s %s\n", "Tool", "Here", "Resources", "Description")
			for _, t := range tools {
				here := "no"
				if t.Available {
					here = "yes"
				}
				resources := strings.Join(t.Resources, ",")
				if resources == "" {
					resources = "-"
				}
				cmd.Printf("%-20s %-5s %-24s %s\n", t.ID, here, resources, t.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output machine-readable JSON")
	return cmd
}

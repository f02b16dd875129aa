package main

import (
	"sort"

	"github.com/spf13/cobra"
)

func newBinaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "binary <toolkit> <tool> <binary>",
		Short: "Ensure a tool binary is installed and print its path",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, stop, err := a.engine(cmd)
			if err != nil {
				return err
			}
			defer stop()

			path, err := engine.EnsureBinary(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			cmd.Println(path)
			return nil
		},
	}
}

func newResourceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resource <toolkit> <tool> <resource>",
		Short: "Ensure a resource bundle is downloaded and print its directory",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, stop, err := a.engine(cmd)
			if err != nil {
				return err
			}
			defer stop()

			dir, err := engine.EnsureResource(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			cmd.Println(dir)
			return nil
		},
	}
}

func newPrepareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare <toolkit> <tool>",
		Short: "Ensure every artifact of a tool is present",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, stop, err := a.engine(cmd)
			if err != nil {
				return err
			}
			defer stop()

			res, err := engine.Prepare(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			if res.BinaryPath != "" {
				cmd.Printf("binary    %s\n", res.BinaryPath)
			}
			names := make([]string, 0, len(res.Resources))
			for name := range res.Resources {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				cmd.Printf("resource  %s  %s\n", name, res.Resources[name])
			}
			return nil
		},
	}
}

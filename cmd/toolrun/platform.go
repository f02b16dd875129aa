package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/platform"
)

type platformView struct {
	Tag       platform.Tag `json:"tag"`
	OS        string       `json:"os"`
	Arch      string       `json:"arch"`
	Machine   string       `json:"machine"`
	Processor string       `json:"processor,omitempty"`
	Distro    string       `json:"distro,omitempty"`
	Family    string       `json:"family,omitempty"`
	Version   string       `json:"version,omitempty"`
}

func newPlatformCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "platform",
		Short: "Show the detected platform tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := a.platform
			if info == nil {
				detected, err := platform.NewDetector().Detect(cmd.Context())
				if err != nil {
					return err
				}
				info = detected
			}

			view := platformView{
				Tag:       info.Tag,
				OS:        info.OS,
				Arch:      info.Arch,
				Machine:   info.Machine,
				Processor: info.Processor,
			}
			if d := info.GetDistro(); d != nil {
				view.Distro, view.Family, view.Version = d.ID, d.Family, d.Version
			}

			if asJSON {
				data, err := json.MarshalIndent(view, "", "  ")
				if err != nil {
					return fmt.Errorf("encode json: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			cmd.Println(view.Tag)
			cmd.Printf("  os:      %s\n", view.OS)
			cmd.Printf("  arch:    %s (%s)\n", view.Arch, view.Machine)
			if view.Processor != "" {
				cmd.Printf("  cpu:     %s\n", view.Processor)
			}
			if view.Distro != "" {
				cmd.Printf("  distro:  %s %s (%s)\n", view.Distro, view.Version, view.Family)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output machine-readable JSON")
	return cmd
}

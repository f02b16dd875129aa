package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/tool"
)

func newBashCmd(a *app) *cobra.Command {
	var (
		cwd     string
		timeout time.Duration
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "bash <command>",
		Short: "Run a shell command through the bash tool",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.Join(args, " ")

			engine, stop, err := a.engine(cmd)
			if err != nil {
				return err
			}
			defer stop()

			b, err := tool.NewBash(cmd.Context(), engine)
			if err != nil {
				return err
			}

			if !b.IsSafeCommand(command) && !force {
				return fmt.Errorf("refusing %s-risk command that could %s (use --force to run it)",
					b.RiskLevel(command), b.RiskDescription(command))
			}

			res := b.Run(cmd.Context(), command, tool.BashOptions{Cwd: cwd, Timeout: timeout})
			if !res.Success {
				cmd.PrintErrln(res.Stderr)
				code := res.ExitCode
				if code <= 0 {
					code = 1
				}
				return &exitError{code: code}
			}
			if res.Stdout != "" {
				cmd.Println(res.Stdout)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cwd, "cwd", "", "Working directory")
	cmd.Flags().DurationVar(&timeout, "timeout", tool.DefaultBashTimeout, "Kill the command after this long")
	cmd.Flags().BoolVar(&force, "force", false, "Run commands flagged as dangerous")

	return cmd
}

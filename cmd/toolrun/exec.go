package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/executor"
)

func newExecCmd(a *app) *cobra.Command {
	var (
		async        bool
		cwd          string
		timeout      time.Duration
		skipDownload bool
	)

	cmd := &cobra.Command{
		Use:   "exec <toolkit> <tool> <binary> [-- args...]",
		Short: "Run a tool binary, downloading it first when needed",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, stop, err := a.engine(cmd)
			if err != nil {
				return err
			}
			defer stop()

			req := executor.Request{
				Toolkit:            args[0],
				Tool:               args[1],
				BinaryName:         args[2],
				Args:               args[3:],
				Options:            executor.Options{Async: async, Cwd: cwd, Timeout: timeout},
				SkipBinaryDownload: skipDownload,
			}
			if async {
				req.OnOutput = func(line string, isStderr bool) {
					if isStderr {
						cmd.PrintErrln(line)
						return
					}
					cmd.Println(line)
				}
			}

			res, err := engine.Run(cmd.Context(), req)
			if err != nil {
				var failed *executor.CommandFailedError
				if errors.As(err, &failed) {
					if failed.Stderr != "" {
						cmd.PrintErr(failed.Stderr)
					}
					return &exitError{code: failed.ExitCode}
				}
				return err
			}

			if !async {
				cmd.Print(res.Output)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "Run the binary directly and stream its output")
	cmd.Flags().StringVar(&cwd, "cwd", "", "Working directory")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Kill a sync command after this long (0 = no limit)")
	cmd.Flags().BoolVar(&skipDownload, "skip-download", false, "Run <binary> from PATH instead of the toolkit")

	return cmd
}

// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HelgeSverre/jake-sub003"
	"github.com/spf13/cobra"
)

func main() {
	signal.Ignore(syscall.SIGPIPE)

	var (
		file    string
		verbose bool
		dryRun  bool
		autoYes bool
		watch   bool
		jobs    int
		list    bool
	)

	root := &cobra.Command{
		Use:           "jake [target] [args...]",
		Short:         "jake runs recipes declared in a Jakefile",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return listRecipes(file)
			}

			var target string
			if len(args) > 0 {
				target = args[0]
				args = args[1:]
			}

			opts := jake.RunOptions{
				SourcePath: file,
				Target:     target,
				Args:       args,
				DryRun:     dryRun,
				Verbose:    verbose,
				AutoYes:    autoYes,
				WatchMode:  watch,
				Jobs:       jobs,
			}
			return jake.Run(opts)
		},
	}

	root.Flags().StringVarP(&file, "file", "f", "Jakefile", "Jakefile to read")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose diagnostic logging")
	root.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print commands without executing them")
	root.Flags().BoolVarP(&autoYes, "yes", "y", false, "answer @confirm prompts automatically")
	root.Flags().BoolVarP(&watch, "watch", "w", false, "re-run the target when its inputs change")
	root.Flags().IntVarP(&jobs, "jobs", "j", 0, "parallel worker count (0 = sequential)")
	root.Flags().BoolVarP(&list, "list", "l", false, "list recipes and exit")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(jake.ExitCode(err))
	}
}

func listRecipes(file string) error {
	idx, err := jake.Load(file)
	if err != nil {
		return err
	}
	for _, r := range idx.Recipes() {
		marker := " "
		if r.IsDefault {
			marker = "*"
		}
		desc := r.Description
		if desc == "" {
			desc = r.DocComment
		}
		if desc != "" {
			fmt.Printf("%s %-20s %s\n", marker, r.Name, desc)
		} else {
			fmt.Printf("%s %-20s\n", marker, r.Name)
		}
	}
	return nil
}

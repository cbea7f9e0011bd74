package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

type globalOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "focusctl",
		Short:         "Focus session timers that survive restarts and follow you across devices",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("FOCUS_CONFIG"), "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log sync activity to stderr")

	rootCmd.AddCommand(startCmd(opts))
	rootCmd.AddCommand(taskCmd(opts, "pause", "Pause a running timer", (*app).pause))
	rootCmd.AddCommand(taskCmd(opts, "resume", "Resume a paused timer", (*app).resume))
	rootCmd.AddCommand(taskCmd(opts, "complete", "Finish a timer now", (*app).complete))
	rootCmd.AddCommand(taskCmd(opts, "reset", "Discard a timer on this device", (*app).reset))
	rootCmd.AddCommand(taskCmd(opts, "cancel-task", "Mark a task canceled and stop its timer", (*app).cancelTask))
	rootCmd.AddCommand(statusCmd(opts))
	rootCmd.AddCommand(watchCmd(opts))

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

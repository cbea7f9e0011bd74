package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hperssn/focussync/internal/clock"
	"github.com/hperssn/focussync/internal/domain"
	"github.com/hperssn/focussync/internal/runner"
)

func startCmd(opts *globalOptions) *cobra.Command {
	var (
		minutes      int
		until        string
		defaultUntil string
	)

	cmd := &cobra.Command{
		Use:   "start <task>",
		Short: "Start a timer, or resume it when paused",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			end, err := parseUntil(until, now)
			if err != nil {
				return err
			}
			defEnd, err := parseUntil(defaultUntil, now)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			in := domain.StartInput{
				DurationSeconds:    minutes * 60,
				TargetEndAt:        end,
				DefaultTargetEndAt: defEnd,
			}
			if err := a.registry.StartOrResume(args[0], in); err != nil {
				if errors.Is(err, runner.ErrSessionActive) {
					return fmt.Errorf("%s already has a running timer", args[0])
				}
				return err
			}
			return printTask(cmd.OutOrStdout(), a, args[0])
		},
	}

	cmd.Flags().IntVarP(&minutes, "minutes", "m", 0, "Session length in minutes (default from config)")
	cmd.Flags().StringVarP(&until, "until", "u", "", "Finish at this time (HH:MM or RFC 3339)")
	cmd.Flags().StringVar(&defaultUntil, "default-until", "", "Task's default finish time, used when --until is not given")

	return cmd
}

func taskCmd(opts *globalOptions, use, short string, action func(*app, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			if err := action(a, args[0]); err != nil {
				if errors.Is(err, runner.ErrSessionNotFound) {
					return fmt.Errorf("no timer for %s", args[0])
				}
				return err
			}
			return printTask(cmd.OutOrStdout(), a, args[0])
		},
	}
}

func statusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List timers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(a.registry.List(), a.pomodoros(cmd.Context()), a.offline()))
			return nil
		},
	}
}

func printTask(w io.Writer, a *app, taskID string) error {
	v, ok := a.registry.Get(taskID)
	if !ok {
		v = runner.View{TaskID: taskID, State: runner.StateIdle, Text: domain.FormatRemaining(0)}
	}
	_, err := fmt.Fprintln(w, renderLine(v, a.offline()))
	return err
}

// parseUntil turns a wall-clock "HH:MM" into the next such local time;
// anything else is passed through for the timestamp parser.
func parseUntil(value string, now time.Time) (string, error) {
	if value == "" {
		return "", nil
	}
	if t, err := time.ParseInLocation("15:04", value, now.Location()); err == nil {
		end := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		if !end.After(now) {
			end = end.AddDate(0, 0, 1)
		}
		return clock.Format(end), nil
	}
	if _, err := clock.ParseTimestamp(value); err != nil {
		return "", fmt.Errorf("invalid time %q: use HH:MM or RFC 3339", value)
	}
	return value, nil
}

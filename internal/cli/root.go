// Package cli implements bookctl, an offline front end to the booking engine.
package cli

import (
	"fmt"
	"os"

	"bookbite/internal/engine"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bookctl",
		Short:         "Inspect slots, fees and conflicts with the bookbite engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newSlotsCmd())
	root.AddCommand(newFeeCmd())
	root.AddCommand(newCheckCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bookctl %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}

func newSlotsCmd() *cobra.Command {
	var (
		opening string
		closing string
		step    int
	)

	c := &cobra.Command{
		Use:   "slots",
		Short: "List the start times generated for an operating window",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := engine.GenerateSlots(engine.ResolveHours(opening, closing), step)
			if plan.FallbackUsed {
				fmt.Fprintf(cmd.ErrOrStderr(), "hours %q-%q are malformed, using %s-%s\n",
					opening, closing, plan.Hours.Opening, plan.Hours.Closing)
			}
			out := cmd.OutOrStdout()
			for _, s := range plan.Slots {
				fmt.Fprintln(out, s)
			}
			return nil
		},
	}

	c.Flags().StringVar(&opening, "open", "09:00", "opening time (HH:MM)")
	c.Flags().StringVar(&closing, "close", "22:00", "closing time (HH:MM)")
	c.Flags().IntVar(&step, "step", engine.DefaultSlotStepMinutes, "minutes between start times")
	return c
}

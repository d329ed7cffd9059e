package cli

import (
	"fmt"
	"os"
	"time"

	"bookbite/internal/engine"
	"bookbite/internal/models"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newCheckCmd() *cobra.Command {
	var (
		date     string
		start    string
		end      string
		tableID  int64
		existing string
		nowFlag  string
	)

	c := &cobra.Command{
		Use:   "check",
		Short: "Check whether a time range is free against a list of reservations",
		Long: "Reads reservations from a YAML list (fields date, start_time, end_time, status, table_id) " +
			"and reports whether the candidate range on --date conflicts with a confirmed one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := engine.ParseTime(start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			to, err := engine.ParseTime(end)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			if _, err := engine.ParseDate(date); err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}

			now := time.Now()
			if nowFlag != "" {
				if now, err = time.Parse(time.RFC3339, nowFlag); err != nil {
					return fmt.Errorf("invalid --now (want RFC3339): %w", err)
				}
			}

			var list []models.Reservation
			if existing != "" {
				if list, err = readReservations(existing); err != nil {
					return err
				}
			}

			free := engine.CheckAvailability(engine.AvailabilityQuery{
				TableID:      tableID,
				Date:         date,
				Candidate:    engine.Interval{Start: from, End: to},
				NowIfToday:   engine.NowIfToday(date, now),
				GraceMinutes: engine.DefaultSameDayGraceMinutes,
			}, list)

			if free {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s-%s is available\n", date, from, to)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s-%s is NOT available\n", date, from, to)
			}
			return nil
		},
	}

	c.Flags().StringVar(&date, "date", "", "reservation date (YYYY-MM-DD)")
	c.Flags().StringVar(&start, "start", "", "start time (HH:MM)")
	c.Flags().StringVar(&end, "end", "", "end time (HH:MM)")
	c.Flags().Int64Var(&tableID, "table", 0, "only consider reservations of this table")
	c.Flags().StringVar(&existing, "existing", "", "YAML file with existing reservations")
	c.Flags().StringVar(&nowFlag, "now", "", "current time (RFC3339), defaults to the wall clock")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

func readReservations(path string) ([]models.Reservation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reservations: %w", err)
	}
	var list []models.Reservation
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse reservations: %w", err)
	}
	return list, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	streamline "github.com/eugener/streamline/internal"
	"github.com/eugener/streamline/internal/storage/sqlite"
)

type historyFlags struct {
	limit   int
	offset  int
	outcome string
	url     string
	since   time.Duration
	json    bool
}

func newHistoryCmd(root *rootFlags) *cobra.Command {
	var f historyFlags

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded transfers, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if err := setupLogger(cmd.ErrOrStderr(), cfg.Log); err != nil {
				return err
			}

			filter := streamline.TransferFilter{
				Outcome: streamline.Outcome(f.outcome),
				URL:     f.url,
				Offset:  f.offset,
				Limit:   f.limit,
			}
			if filter.Outcome != "" && !filter.Outcome.Valid() {
				return fmt.Errorf("invalid outcome %q", f.outcome)
			}
			if f.since > 0 {
				filter.Since = time.Now().Add(-f.since)
			}

			store, err := sqlite.New(cfg.History.DSN)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			records, err := store.ListTransfers(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list transfers: %w", err)
			}
			if f.json {
				return writeRecordsJSON(cmd.OutOrStdout(), records)
			}
			return writeRecordsTable(cmd.OutOrStdout(), records)
		},
	}

	fl := cmd.Flags()
	fl.IntVarP(&f.limit, "limit", "n", 20, "maximum number of transfers")
	fl.IntVar(&f.offset, "offset", 0, "number of transfers to skip")
	fl.StringVar(&f.outcome, "outcome", "", "only transfers with this outcome (finished, failed, canceled, timed_out)")
	fl.StringVar(&f.url, "url", "", "only transfers of this exact URL")
	fl.DurationVar(&f.since, "since", 0, "only transfers started within this duration, e.g. 24h")
	fl.BoolVar(&f.json, "json", false, "print one JSON object per line")

	return cmd
}

func writeRecordsJSON(w io.Writer, records []streamline.TransferRecord) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func writeRecordsTable(w io.Writer, records []streamline.TransferRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tOUTCOME\tSTATUS\tLINES\tBYTES\tDURATION\tURL")
	for _, r := range records {
		status := "-"
		if r.StatusCode != 0 {
			status = strconv.Itoa(r.StatusCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s %s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Outcome,
			status,
			r.Lines,
			r.Received,
			time.Duration(r.DurationMs)*time.Millisecond,
			r.Method, r.URL,
		)
	}
	return tw.Flush()
}

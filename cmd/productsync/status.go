package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/productsync/scheduler"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last outcome of each upload job and the queue size",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			c, err := a.open()
			if err != nil {
				return err
			}
			defer c.Close()

			queue, err := c.store.PendingAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "pending uploads: %d\n", len(queue))

			status, err := a.openStatusStore()
			if err != nil {
				return err
			}
			if status == nil {
				return nil
			}
			defer status.Close()

			jobs, err := status.ByTag(scheduler.TagPendingUpload)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(out, "no jobs have run yet")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tSTATE\tATTEMPT\tSYNCED\tUPDATED\tERROR")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
					j.Name, j.State, j.Attempt, j.SyncedCount, j.UpdatedAt.Local().Format(time.RFC3339), j.Err)
			}
			return w.Flush()
		},
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/productsync/logging"
	"github.com/c0deZ3R0/productsync/scheduler"
	"github.com/c0deZ3R0/productsync/synckit"
)

const jobManual = "pending_uploader_manual"

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload queued products once",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.open()
			if err != nil {
				return err
			}
			defer c.Close()

			status, err := a.openStatusStore()
			if err != nil {
				return err
			}
			if status != nil {
				defer status.Close()
			}

			var res synckit.ProcessResult
			err = logging.Default().LogOperation(cmd.Context(), logging.Operation("process_pending"), logging.Component("cli"),
				func() error {
					var perr error
					res, perr = c.engine.ProcessPending(cmd.Context())
					return perr
				})

			st := scheduler.JobStatus{
				Name:        jobManual,
				Tag:         scheduler.TagPendingUpload,
				RunID:       uuid.NewString(),
				State:       scheduler.StateSucceeded,
				SyncedCount: res.Synced,
				Attempt:     1,
				UpdatedAt:   time.Now().UTC(),
			}
			if err != nil || res.Failed > 0 {
				st.State = scheduler.StateFailed
				if err != nil {
					st.Err = err.Error()
				} else {
					st.Err = fmt.Sprintf("%d of %d uploads failed", res.Failed, res.Before)
				}
			}
			if status != nil {
				if perr := status.Put(st); perr != nil {
					a.logger.Warn("Failed to record sync status", "error", perr)
				}
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "synced %d, failed %d, still queued %d\n", res.Synced, res.Failed, res.After)
			return nil
		},
	}
}

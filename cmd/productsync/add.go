package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/productsync/scheduler"
	"github.com/c0deZ3R0/productsync/synckit"
)

func newAddCmd(a *app) *cobra.Command {
	var in synckit.ProductInput
	var image string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product, saving it offline if the remote is unreachable",
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

			// An offline save kicks the one-shot uploader. The command waits for
			// its first attempt; retries are left to `run` or `sync`.
			sched := a.newScheduler(c, status)
			c.engine.SetScheduler(sched)
			attempted := make(chan scheduler.JobStatus, 1)
			if err := sched.Bus().Subscribe(scheduler.TopicJobStatus, func(st scheduler.JobStatus) {
				if st.Name != scheduler.JobOnce {
					return
				}
				if st.State == scheduler.StateRetrying || st.State.Finished() {
					select {
					case attempted <- st:
					default:
					}
				}
			}); err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				sched.Stop(ctx)
			}()

			in.Price = synckit.SanitizeDecimal(in.Price)
			in.Tax = synckit.SanitizeDecimal(in.Tax)
			if image != "" {
				in.Images = []string{image}
			}

			result := c.engine.Submit(cmd.Context(), in)
			out := cmd.OutOrStdout()
			switch result.Outcome {
			case synckit.SubmitOnline:
				fmt.Fprintf(out, "added %q\n", in.Name)
			case synckit.SubmitSavedOffline:
				fmt.Fprintf(out, "remote unavailable, saved %q offline (queue id %d)\n", in.Name, result.Pending.ID)
				select {
				case st := <-attempted:
					if st.State == scheduler.StateSucceeded {
						fmt.Fprintf(out, "queued upload went through (%d synced)\n", st.SyncedCount)
					} else {
						fmt.Fprintln(out, "upload attempt failed; run `productsync sync` or `productsync run` to retry")
					}
				case <-cmd.Context().Done():
				}
			default:
				return result.Err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "product name")
	cmd.Flags().StringVar(&in.Type, "type", string(synckit.ProductTypeProduct), "Product or Service")
	cmd.Flags().StringVar(&in.Price, "price", "", "selling price")
	cmd.Flags().StringVar(&in.Tax, "tax", "", "tax rate in percent")
	cmd.Flags().StringVar(&image, "image", "", "path to a product image")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("price")
	cmd.MarkFlagRequired("tax")
	return cmd
}

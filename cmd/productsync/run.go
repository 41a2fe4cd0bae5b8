package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/c0deZ3R0/productsync/logging"
	"github.com/c0deZ3R0/productsync/scheduler"
	"github.com/c0deZ3R0/productsync/synckit"
	"github.com/c0deZ3R0/productsync/view"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		query string
		sort  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep the local catalogue in sync until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			by, ok := view.ParseSort(sort)
			if !ok {
				return errUnknownSort(sort)
			}

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

			sched := a.newScheduler(c, status)
			c.engine.SetScheduler(sched)

			jobLog := logging.WithComponent(logging.Component("scheduler"))
			if err := sched.Bus().Subscribe(scheduler.TopicJobStatus, func(st scheduler.JobStatus) {
				if st.State == scheduler.StateFailed {
					jobLog.LogError(context.Background(), errors.New(st.Err), "Upload job failed",
						slog.String("job", st.Name),
						slog.Int("attempt", st.Attempt))
					return
				}
				a.logger.Info("Job status",
					"job", st.Name,
					"state", st.State,
					"attempt", st.Attempt,
					"synced", st.SyncedCount,
					"error", st.Err)
			}); err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := sched.Start(ctx); err != nil {
				return err
			}
			// drain whatever an earlier session left queued
			if err := sched.RequestImmediateSync(); err != nil {
				a.logger.Warn("Could not queue startup sync", "error", err)
			}

			v := view.New(c.engine,
				view.WithLogger(a.logger.With("component", "view")),
				view.WithOptions(view.Options{Query: query, Sort: by}),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				for state := range v.States(gctx) {
					state.Match(
						func() { a.logger.Info("Loading products") },
						func(records []synckit.ProductRecord) {
							pending := 0
							for _, r := range records {
								if r.IsPending {
									pending++
								}
							}
							a.logger.Info("Products updated", "count", len(records), "pending", pending)
						},
						func(err error) { a.logger.Error("Product feed failed", "error", err) },
					)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return sched.Stop(shutdownCtx)
			})

			err = g.Wait()
			calls, errs, synced, failed := c.metrics.Snapshot()
			a.logger.Info("Shutting down",
				"calls", calls,
				"errors", errs,
				"uploaded", synced,
				"upload_failures", failed)
			return err
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "only log products matching this search")
	cmd.Flags().StringVar(&sort, "sort", "", "sort order: name, price_asc, price_desc")
	return cmd
}

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/c0deZ3R0/productsync/transport/httptransport"
)

func newMockRemoteCmd(a *app) *cobra.Command {
	var addr, seed, uploadDir string

	cmd := &cobra.Command{
		Use:   "mock-remote",
		Short: "Serve an in-memory copy of the product API for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Mock.Addr
			}
			if !cmd.Flags().Changed("seed") {
				seed = a.cfg.Mock.Seed
			}
			if !cmd.Flags().Changed("upload-dir") {
				uploadDir = a.cfg.Mock.UploadDir
			}

			opts := []httptransport.ServerOption{
				httptransport.WithServerLogger(a.logger.With("component", "mock-remote")),
			}
			if uploadDir != "" {
				opts = append(opts, httptransport.WithUploadDir(uploadDir))
			}
			srv := httptransport.NewServer(opts...)
			if seed != "" {
				if err := srv.LoadSeed(seed); err != nil {
					return err
				}
			}

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				a.logger.Info("Mock remote listening", "addr", addr, "products", len(srv.Products()))
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config mock.addr)")
	cmd.Flags().StringVar(&seed, "seed", "", "YAML file of products to start with")
	cmd.Flags().StringVar(&uploadDir, "upload-dir", "", "directory for uploaded images (default: memory)")
	return cmd
}

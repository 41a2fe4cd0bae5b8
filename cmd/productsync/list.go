package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/productsync/synckit"
	"github.com/c0deZ3R0/productsync/view"
)

func errUnknownSort(s string) error {
	return fmt.Errorf("unknown sort %q (want name, price_asc or price_desc)", s)
}

func newListCmd(a *app) *cobra.Command {
	var (
		query   string
		sort    string
		typ     string
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Refresh from the remote and print the catalogue",
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

			ctx := cmd.Context()
			if !offline {
				if res := c.engine.Refresh(ctx); res.IsError() {
					fmt.Fprintf(cmd.ErrOrStderr(), "refresh failed, showing cached products: %v\n", res.Err())
				}
			}

			records, err := c.store.All(ctx)
			if err != nil {
				return err
			}
			rows := view.Build(records, view.Options{Query: query, Type: synckit.ProductType(typ), Sort: by})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tPRICE\tTAX\tSTATUS\tIMAGE")
			for _, r := range rows {
				state := "synced"
				if r.IsPending {
					state = "pending"
				}
				image := r.Image
				if image == "" {
					image = r.LocalThumbnail
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Name, r.Type, r.Price.StringFixed(2), r.Tax.String(), state, image)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive search on name or type")
	cmd.Flags().StringVar(&sort, "sort", "", "sort order: name, price_asc, price_desc")
	cmd.Flags().StringVar(&typ, "type", "", "only show Product or Service")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the remote refresh")
	return cmd
}

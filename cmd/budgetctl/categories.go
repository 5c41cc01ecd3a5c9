package main

import (
	"github.com/spf13/cobra"
)

func newCategoriesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the category catalogue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			cats, err := e.backend.Store.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable(opts.out, "ID", "Name")
			for _, c := range cats {
				t.Append([]string{c.ID, c.Name})
			}
			t.Render()
			return nil
		},
	}
}

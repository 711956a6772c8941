package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"scheme-admin/internal/models"
)

func newCatalogCmd(a *app, kind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   kind,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				items []models.NamedEntity
				err   error
			)
			if kind == "states" {
				items, err = a.api.ListStates(cmd.Context())
			} else {
				items, err = a.api.ListCategories(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintf(a.out, "no %s\n", kind)
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSLUG")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", it.ID, it.Name, it.Slug)
			}
			return tw.Flush()
		},
	}
}

// catalogNames maps state and category ids to names, fetching both lists
// concurrently.
type catalogNames struct {
	states     map[string]string
	categories map[string]string
}

func (a *app) loadNames(ctx context.Context) (catalogNames, error) {
	var states, categories []models.NamedEntity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		states, err = a.api.ListStates(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = a.api.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return catalogNames{}, err
	}
	return catalogNames{states: byID(states), categories: byID(categories)}, nil
}

func byID(items []models.NamedEntity) map[string]string {
	out := make(map[string]string, len(items))
	for _, it := range items {
		out[it.ID] = it.Name
	}
	return out
}

func (n catalogNames) category(ref models.Ref) string {
	if ref.Name != "" {
		return ref.Name
	}
	if name, ok := n.categories[ref.ID]; ok {
		return name
	}
	return ref.ID
}

func (n catalogNames) state(ref models.Ref) string {
	if ref.Name != "" {
		return ref.Name
	}
	if name, ok := n.states[ref.ID]; ok {
		return name
	}
	return ref.ID
}

package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scheme-admin/internal/apiclient"
	"scheme-admin/internal/filter"
	"scheme-admin/internal/listing"
	"scheme-admin/internal/schemeform"
)

func newSchemesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemes",
		Short: "List, inspect and edit schemes",
	}
	cmd.AddCommand(
		newSchemesListCmd(a),
		newSchemesGetCmd(a),
		newSchemesDeleteCmd(a),
		newSchemesCreateCmd(a),
		newSchemesEditCmd(a),
		newSchemesTemplateCmd(a),
	)
	return cmd
}

type listFlags struct {
	stateID    string
	categoryID string
	page       int
	pages      int
	limit      int
	all        bool
	names      bool
}

func newSchemesListCmd(a *app) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schemes, optionally scoped to a state or a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit := flags.limit
			if limit <= 0 {
				limit = a.cfg.PageSize
			}
			store := listing.New(a.api, listing.WithPageSize(limit), listing.WithLogger(a.log))

			sel := filter.New()
			switch {
			case flags.all:
				if flags.stateID != "" {
					sel.SetState(flags.stateID)
				} else if flags.categoryID != "" {
					sel.SetCategory(flags.categoryID)
				}
				cur := sel.Current()
				if err := store.LoadAll(ctx, cur.StateID, cur.CategoryID); err != nil {
					return err
				}
			case flags.page > 1 || (flags.stateID == "" && flags.categoryID == ""):
				if err := store.LoadPage(ctx, flags.page, false, flags.stateID, flags.categoryID); err != nil {
					return err
				}
			default:
				// The filter drives the first load; a scope change reloads page 1.
				store.Follow(ctx, sel)
				if flags.stateID != "" {
					sel.SetState(flags.stateID)
				} else {
					sel.SetCategory(flags.categoryID)
				}
			}
			for i := 1; i < flags.pages; i++ {
				if err := store.NextPage(ctx); err != nil {
					return err
				}
			}

			snap := store.Snapshot()
			if snap.Status == listing.StatusError {
				return errors.New(snap.Err)
			}
			if len(snap.Schemes) == 0 {
				fmt.Fprintln(a.out, "no schemes found")
				return nil
			}

			var names catalogNames
			if flags.names {
				var err error
				if names, err = a.loadNames(ctx); err != nil {
					return err
				}
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSLUG\tTITLE\tCATEGORY\tSTATES\tPUBLISHED")
			for _, s := range snap.Schemes {
				states := make([]string, 0, len(s.States))
				for _, ref := range s.States {
					states = append(states, names.state(ref))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Slug, s.Title, names.category(s.Category), strings.Join(states, ","), s.PublishedOn)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "page %d of %d, %d total\n", snap.CurrentPage, snap.TotalPages, snap.TotalItems)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.stateID, "state", "", "state id")
	cmd.Flags().StringVar(&flags.categoryID, "category", "", "category id")
	cmd.Flags().IntVar(&flags.page, "page", 1, "page to start from")
	cmd.Flags().IntVar(&flags.pages, "pages", 1, "number of pages to load")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "page size (defaults to SCHEME_ADMIN_PAGE_SIZE)")
	cmd.Flags().BoolVar(&flags.all, "all", false, "load every scheme in one request")
	cmd.Flags().BoolVar(&flags.names, "names", false, "resolve state and category names")
	cmd.MarkFlagsMutuallyExclusive("state", "category")
	cmd.MarkFlagsMutuallyExclusive("all", "page")
	return cmd
}

// editable is the YAML document printed by get and accepted by edit.
type editable struct {
	ID string `yaml:"id,omitempty"`

	schemeform.Draft `yaml:",inline"`
}

func newSchemesGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <slug|id>",
		Short: "Print a scheme as an editable YAML draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := listing.New(a.api, listing.WithLogger(a.log))
			detail, err := store.FetchDetailBySlugOrID(cmd.Context(), args[0])
			if err != nil {
				if msg := store.Snapshot().DetailErr; msg != "" {
					return errors.New(msg)
				}
				return err
			}
			form := schemeform.New(a.api, schemeform.WithLogger(a.log))
			if err := form.SeedForEdit(detail); err != nil {
				return err
			}
			enc := yaml.NewEncoder(a.out)
			enc.SetIndent(2)
			if err := enc.Encode(editable{ID: detail.ID, Draft: form.Draft()}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newSchemesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a scheme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			store := listing.New(a.api, listing.WithLogger(a.log))
			if err := store.DeleteByID(cmd.Context(), args[0]); err != nil {
				return errors.New(apiclient.UserMessage(err))
			}
			fmt.Fprintf(a.out, "deleted %s\n", args[0])
			return nil
		},
	}
}

type uploadFlags struct {
	file   string
	banner string
	card   string
}

func (f *uploadFlags) register(cmd *cobra.Command, fileHelp string) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", fileHelp)
	cmd.Flags().StringVar(&f.banner, "banner", "", "banner image to upload")
	cmd.Flags().StringVar(&f.card, "card", "", "card image to upload")
}

func newSchemesCreateCmd(a *app) *cobra.Command {
	var flags uploadFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a scheme from a YAML draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			form := schemeform.New(a.api, schemeform.WithLogger(a.log))
			if err := applyDraftFile(form, flags.file); err != nil {
				return err
			}
			form.SuggestSlug()
			if err := stageImages(form, flags); err != nil {
				return err
			}
			return submit(cmd, a, form)
		},
	}
	flags.register(cmd, "draft file (see schemes template)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSchemesEditCmd(a *app) *cobra.Command {
	var flags uploadFlags
	cmd := &cobra.Command{
		Use:   "edit <slug|id>",
		Short: "Apply YAML changes to an existing scheme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			store := listing.New(a.api, listing.WithLogger(a.log))
			detail, err := store.FetchDetailBySlugOrID(cmd.Context(), args[0])
			if errors.Is(err, listing.ErrPartialDetail) {
				return fmt.Errorf("refusing to edit %s: %w", args[0], err)
			}
			if err != nil {
				return err
			}
			form := schemeform.New(a.api, schemeform.WithLogger(a.log))
			if err := form.SeedForEdit(detail); err != nil {
				return err
			}
			if flags.file != "" {
				if err := applyDraftFile(form, flags.file); err != nil {
					return err
				}
			}
			if err := stageImages(form, flags); err != nil {
				return err
			}
			if !form.IsDirty() {
				fmt.Fprintln(a.out, "no changes")
				return nil
			}
			for _, f := range form.Changes() {
				a.log.Debug("schemes edit: changed", "field", string(f))
			}
			return submit(cmd, a, form)
		},
	}
	flags.register(cmd, "YAML file with the fields to change")
	return cmd
}

func newSchemesTemplateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "template",
		Short: "Print a blank draft",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			form := schemeform.New(a.api)
			enc := yaml.NewEncoder(a.out)
			enc.SetIndent(2)
			if err := enc.Encode(form.Draft()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

// applyDraftFile overlays the keys present in path onto the working draft.
func applyDraftFile(form *schemeform.Form, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read draft: %w", err)
	}
	var decodeErr error
	form.Update(func(d *schemeform.Draft) {
		next := *d
		if decodeErr = yaml.Unmarshal(raw, &next); decodeErr == nil {
			next.BannerImage, next.CardImage = d.BannerImage, d.CardImage
			*d = next
		}
	})
	if decodeErr != nil {
		return fmt.Errorf("parse draft %s: %w", path, decodeErr)
	}
	return nil
}

func stageImages(form *schemeform.Form, flags uploadFlags) error {
	slots := []struct {
		slot schemeform.ImageSlot
		path string
	}{
		{schemeform.SlotBanner, flags.banner},
		{schemeform.SlotCard, flags.card},
	}
	for _, s := range slots {
		if s.path == "" {
			continue
		}
		file, err := readUpload(s.path)
		if err != nil {
			return err
		}
		if err := form.SetFile(s.slot, file); err != nil {
			return err
		}
	}
	return nil
}

func readUpload(path string) (*apiclient.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return &apiclient.File{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

func submit(cmd *cobra.Command, a *app, form *schemeform.Form) error {
	editing := form.IsEditMode()
	saved, err := form.Submit(cmd.Context(), nil)
	if err != nil {
		var verr *schemeform.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%s: %s", verr.Field, verr.Message)
		}
		if msg := form.Err(); msg != "" {
			return errors.New(msg)
		}
		return err
	}
	verb := "created"
	if editing {
		verb = "updated"
	}
	fmt.Fprintf(a.out, "%s %s (%s)\n", verb, saved.Slug, saved.ID)
	return nil
}

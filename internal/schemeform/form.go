package schemeform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"scheme-admin/internal/apiclient"
	"scheme-admin/internal/models"
	"scheme-admin/internal/utils"
)

// ImageSlot is one of the two uploadable images.
type ImageSlot string

const (
	SlotBanner ImageSlot = "bannerImage"
	SlotCard   ImageSlot = "cardImage"
)

var ErrUnknownField = errors.New("unknown form field")

// API submits a serialized draft.
type API interface {
	CreateScheme(ctx context.Context, form *apiclient.Form) (*models.SchemeDetail, error)
	UpdateScheme(ctx context.Context, id string, form *apiclient.Form) (*models.SchemeDetail, error)
}

// Form owns one draft and its edit/create state.
type Form struct {
	api API
	log *slog.Logger
	now func() time.Time

	mu         sync.Mutex
	draft      Draft
	original   *Draft
	editMode   bool
	editingID  string
	bannerFile *apiclient.File
	cardFile   *apiclient.File
	submitting bool
	lastErr    string
}

type Option func(*Form)

func WithLogger(log *slog.Logger) Option {
	return func(f *Form) {
		if log != nil {
			f.log = log
		}
	}
}

// WithClock overrides the date source used for the creation template.
func WithClock(now func() time.Time) Option {
	return func(f *Form) {
		if now != nil {
			f.now = now
		}
	}
}

// New returns a form seeded for creation.
func New(api API, opts ...Option) *Form {
	f := &Form{
		api: api,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.SeedForCreate()
	return f
}

// Draft returns a copy of the working draft.
func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.clone()
}

func (f *Form) IsEditMode() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editMode
}

// EditingID is the id of the record being edited, "" when creating.
func (f *Form) EditingID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editingID
}

// Err is the last submission error shown to the operator.
func (f *Form) Err() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *Form) ClearErr() {
	f.mu.Lock()
	f.lastErr = ""
	f.mu.Unlock()
}

func (f *Form) SeedForCreate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seedForCreateLocked()
}

func (f *Form) seedForCreateLocked() {
	f.draft = blankDraft(f.now())
	f.original = nil
	f.editMode = false
	f.editingID = ""
	f.bannerFile = nil
	f.cardFile = nil
	f.lastErr = ""
}

func (f *Form) SeedForEdit(detail *models.SchemeDetail) error {
	if detail == nil {
		return errors.New("seed for edit: nil scheme")
	}
	if strings.TrimSpace(detail.ID) == "" {
		return errors.New("seed for edit: scheme has no id")
	}
	d := draftFromDetail(detail)
	snapshot := d.clone()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = d
	f.original = &snapshot
	f.editMode = true
	f.editingID = detail.ID
	f.bannerFile = nil
	f.cardFile = nil
	f.lastErr = ""
	return nil
}

// SetField assigns a top-level field. Each field accepts its own value type.
func (f *Form) SetField(key Field, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return setField(&f.draft, key, value)
}

// Update applies fn to the draft under the form lock.
func (f *Form) Update(fn func(d *Draft)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.draft)
}

// SetFile stages an image upload; nil clears the staged file.
func (f *Form) SetFile(slot ImageSlot, file *apiclient.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var staged *apiclient.File
	if file != nil {
		cp := *file
		staged = &cp
	}
	switch slot {
	case SlotBanner:
		f.bannerFile = staged
	case SlotCard:
		f.cardFile = staged
	default:
		return fmt.Errorf("%w: image slot %q", ErrUnknownField, slot)
	}
	return nil
}

// SuggestSlug fills an empty slug from the title.
func (f *Form) SuggestSlug() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.TrimSpace(f.draft.Slug) == "" {
		f.draft.Slug = utils.Slugify(f.draft.Title)
	}
	return f.draft.Slug
}

// AddRow appends an empty row to a section.
func (f *Form) AddRow(section Field) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &f.draft
	switch section {
	case FieldKeyHighlights:
		d.KeyHighlights = append(d.KeyHighlights, models.Highlight{})
	case FieldEligibility:
		d.Eligibility = append(d.Eligibility, models.SubSection{})
	case FieldBenefits:
		d.Benefits = append(d.Benefits, models.SubSection{})
	case FieldDocuments:
		d.Documents = append(d.Documents, models.SubSection{})
	case FieldSalientFeatures:
		d.SalientFeatures = append(d.SalientFeatures, models.SubSection{})
	case FieldApplicationProcess:
		d.ApplicationProcess = append(d.ApplicationProcess, models.SubSection{})
	case FieldImportantDates:
		d.ImportantDates = append(d.ImportantDates, models.DatedEntry{})
	case FieldFAQs:
		d.FAQs = append(d.FAQs, models.FAQ{})
	case FieldSources:
		d.Sources = append(d.Sources, models.Source{})
	default:
		return fmt.Errorf("%w: section %q", ErrUnknownField, section)
	}
	return nil
}

// RemoveRow deletes row i. The last row of a section is blanked instead so the
// section always keeps one editable row.
func (f *Form) RemoveRow(section Field, i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &f.draft
	var err error
	switch section {
	case FieldKeyHighlights:
		d.KeyHighlights, err = removeRow(d.KeyHighlights, i)
	case FieldEligibility:
		d.Eligibility, err = removeRow(d.Eligibility, i)
	case FieldBenefits:
		d.Benefits, err = removeRow(d.Benefits, i)
	case FieldDocuments:
		d.Documents, err = removeRow(d.Documents, i)
	case FieldSalientFeatures:
		d.SalientFeatures, err = removeRow(d.SalientFeatures, i)
	case FieldApplicationProcess:
		d.ApplicationProcess, err = removeRow(d.ApplicationProcess, i)
	case FieldImportantDates:
		d.ImportantDates, err = removeRow(d.ImportantDates, i)
	case FieldFAQs:
		d.FAQs, err = removeRow(d.FAQs, i)
	case FieldSources:
		d.Sources, err = removeRow(d.Sources, i)
	default:
		return fmt.Errorf("%w: section %q", ErrUnknownField, section)
	}
	return err
}

func removeRow[T any](rows []T, i int) ([]T, error) {
	if i < 0 || i >= len(rows) {
		return rows, fmt.Errorf("row %d out of range", i)
	}
	if len(rows) == 1 {
		var zero T
		return []T{zero}, nil
	}
	out := make([]T, 0, len(rows)-1)
	out = append(out, rows[:i]...)
	return append(out, rows[i+1:]...), nil
}

// Changes lists the fields that differ from the record being edited.
// Create mode has no baseline and reports nothing.
func (f *Form) Changes() []Field {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.editMode || f.original == nil {
		return nil
	}
	return diffDrafts(*f.original, f.draft)
}

// IsDirty reports unsaved edits. A staged image always counts as a change.
func (f *Form) IsDirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.editMode || f.original == nil {
		return false
	}
	if f.bannerFile != nil || f.cardFile != nil {
		return true
	}
	return len(diffDrafts(*f.original, f.draft)) > 0
}

var sectionEquality = cmpopts.EquateEmpty()

func diffDrafts(a, b Draft) []Field {
	var changed []Field
	scalar := func(field Field, x, y string) {
		if x != y {
			changed = append(changed, field)
		}
	}
	structural := func(field Field, x, y interface{}) {
		if !cmp.Equal(x, y, sectionEquality) {
			changed = append(changed, field)
		}
	}

	scalar(FieldTitle, a.Title, b.Title)
	scalar(FieldSlug, a.Slug, b.Slug)
	scalar(FieldAbout, a.About, b.About)
	scalar(FieldObjectives, a.Objectives, b.Objectives)
	scalar(FieldCategory, a.Category, b.Category)
	structural(FieldState, a.States, b.States)
	scalar(FieldPublishedOn, a.PublishedOn, b.PublishedOn)
	if a.IsFeatured != b.IsFeatured {
		changed = append(changed, FieldIsFeatured)
	}
	scalar(FieldBody, a.Body.HTMLDescription, b.Body.HTMLDescription)

	structural(FieldKeyHighlights, a.KeyHighlights, b.KeyHighlights)
	structural(FieldEligibility, a.Eligibility, b.Eligibility)
	structural(FieldBenefits, a.Benefits, b.Benefits)
	structural(FieldDocuments, a.Documents, b.Documents)
	structural(FieldSalientFeatures, a.SalientFeatures, b.SalientFeatures)
	structural(FieldApplicationProcess, a.ApplicationProcess, b.ApplicationProcess)
	structural(FieldImportantDates, a.ImportantDates, b.ImportantDates)
	structural(FieldFAQs, a.FAQs, b.FAQs)
	structural(FieldSources, a.Sources, b.Sources)
	structural(FieldHelpline, a.Helpline, b.Helpline)
	structural(FieldDisclaimer, a.Disclaimer, b.Disclaimer)
	return changed
}

// Serialize builds the multipart payload for the current draft.
func (f *Form) Serialize() (*apiclient.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return serialize(f.snapshotLocked())
}

type submission struct {
	draft    Draft
	original *Draft
	editMode bool
	banner   *apiclient.File
	card     *apiclient.File
}

func (f *Form) snapshotLocked() submission {
	s := submission{
		draft:    f.draft.clone(),
		editMode: f.editMode,
		banner:   f.bannerFile,
		card:     f.cardFile,
	}
	if f.original != nil {
		o := f.original.clone()
		s.original = &o
	}
	return s
}

// Submit validates, serializes and sends the draft. On success the form is
// reset for creation and onSuccess receives the saved record. On failure the
// draft is kept so the operator can retry.
func (f *Form) Submit(ctx context.Context, onSuccess func(*models.SchemeDetail)) (*models.SchemeDetail, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil, errors.New("submit already in progress")
	}
	if err := validateDraft(f.draft); err != nil {
		f.lastErr = err.Error()
		f.mu.Unlock()
		return nil, err
	}
	sub := f.snapshotLocked()
	id := f.editingID
	f.submitting = true
	f.lastErr = ""
	f.mu.Unlock()

	saved, err := f.send(ctx, sub, id)

	f.mu.Lock()
	f.submitting = false
	if err != nil {
		f.lastErr = apiclient.UserMessage(err)
		f.mu.Unlock()
		f.log.Warn("scheme form submit: failed", slog.Bool("edit", sub.editMode), slog.String("error", err.Error()))
		return nil, err
	}
	f.seedForCreateLocked()
	f.mu.Unlock()

	f.log.Info("scheme form submit: ok", slog.Bool("edit", sub.editMode), slog.String("scheme_id", id))
	if onSuccess != nil {
		onSuccess(saved)
	}
	return saved, nil
}

func (f *Form) send(ctx context.Context, sub submission, id string) (*models.SchemeDetail, error) {
	payload, err := serialize(sub)
	if err != nil {
		return nil, err
	}
	if sub.editMode {
		return f.api.UpdateScheme(ctx, id, payload)
	}
	return f.api.CreateScheme(ctx, payload)
}

func setField(d *Draft, key Field, value interface{}) error {
	mismatch := func() error {
		return fmt.Errorf("field %q: unsupported value type %T", key, value)
	}
	str := func(dst *string) error {
		v, ok := value.(string)
		if !ok {
			return mismatch()
		}
		*dst = v
		return nil
	}

	switch key {
	case FieldTitle:
		return str(&d.Title)
	case FieldSlug:
		return str(&d.Slug)
	case FieldAbout:
		return str(&d.About)
	case FieldObjectives:
		return str(&d.Objectives)
	case FieldPublishedOn:
		return str(&d.PublishedOn)
	case FieldCategory:
		switch v := value.(type) {
		case string:
			d.Category = strings.TrimSpace(v)
		case models.Ref:
			d.Category = v.ID
		case nil:
			d.Category = ""
		default:
			return mismatch()
		}
	case FieldState:
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				d.States = []string{}
			} else {
				d.States = []string{strings.TrimSpace(v)}
			}
		case []string:
			d.States = append([]string{}, v...)
		case models.Ref:
			d.States = models.Refs{v}.IDs()
		case models.Refs:
			d.States = v.IDs()
		case []models.Ref:
			d.States = models.Refs(v).IDs()
		case nil:
			d.States = []string{}
		default:
			return mismatch()
		}
	case FieldIsFeatured:
		switch v := value.(type) {
		case bool:
			d.IsFeatured = v
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			d.IsFeatured = b
		default:
			return mismatch()
		}
	case FieldBody:
		switch v := value.(type) {
		case string:
			d.Body = models.RichText{HTMLDescription: v}
		case models.RichText:
			d.Body = v
		default:
			return mismatch()
		}
	case FieldKeyHighlights:
		return assignRows(&d.KeyHighlights, value, mismatch)
	case FieldEligibility:
		return assignRows(&d.Eligibility, value, mismatch)
	case FieldBenefits:
		return assignRows(&d.Benefits, value, mismatch)
	case FieldDocuments:
		return assignRows(&d.Documents, value, mismatch)
	case FieldSalientFeatures:
		return assignRows(&d.SalientFeatures, value, mismatch)
	case FieldApplicationProcess:
		return assignRows(&d.ApplicationProcess, value, mismatch)
	case FieldImportantDates:
		return assignRows(&d.ImportantDates, value, mismatch)
	case FieldFAQs:
		return assignRows(&d.FAQs, value, mismatch)
	case FieldSources:
		return assignRows(&d.Sources, value, mismatch)
	case FieldHelpline:
		v, ok := value.(models.Helpline)
		if !ok {
			return mismatch()
		}
		d.Helpline = v
	case FieldDisclaimer:
		switch v := value.(type) {
		case models.Disclaimer:
			d.Disclaimer = v
		case string:
			d.Disclaimer = models.Disclaimer{Description: v}
		default:
			return mismatch()
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	return nil
}

func assignRows[T any](dst *[]T, value interface{}, mismatch func() error) error {
	rows, ok := value.([]T)
	if !ok {
		return mismatch()
	}
	*dst = append([]T(nil), rows...)
	return nil
}

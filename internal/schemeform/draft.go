package schemeform

import (
	"strings"
	"time"

	"scheme-admin/internal/models"
)

// Field names a top-level draft field. Values double as multipart part names.
type Field string

const (
	FieldTitle       Field = "title"
	FieldSlug        Field = "slug"
	FieldAbout       Field = "about"
	FieldObjectives  Field = "objectives"
	FieldCategory    Field = "category"
	FieldState       Field = "state"
	FieldPublishedOn Field = "publishedOn"
	FieldIsFeatured  Field = "isFeatured"
	FieldBody        Field = "textWithHTMLParsing"

	FieldKeyHighlights      Field = "keyHighlightsOfTheScheme"
	FieldEligibility        Field = "eligibilityCriteria"
	FieldBenefits           Field = "benefits"
	FieldDocuments          Field = "documentsRequired"
	FieldSalientFeatures    Field = "salientFeatures"
	FieldApplicationProcess Field = "applicationProcess"
	FieldImportantDates     Field = "importantDates"
	FieldFAQs               Field = "frequentlyAskedQuestions"
	FieldSources            Field = "sourcesAndReferences"
	FieldHelpline           Field = "helplineNumber"
	FieldDisclaimer         Field = "disclaimer"
)

// SectionFields are the repeatable row sections, in form order.
var SectionFields = []Field{
	FieldKeyHighlights,
	FieldEligibility,
	FieldBenefits,
	FieldDocuments,
	FieldSalientFeatures,
	FieldApplicationProcess,
	FieldImportantDates,
	FieldFAQs,
	FieldSources,
}

// Draft is the editable copy of a scheme. Each section field has its own row
// type; SetField rejects values of the wrong type.
type Draft struct {
	Title       string          `yaml:"title"`
	Slug        string          `yaml:"slug"`
	About       string          `yaml:"about"`
	Objectives  string          `yaml:"objectives"`
	Category    string          `yaml:"category"`
	States      []string        `yaml:"state"`
	PublishedOn string          `yaml:"publishedOn"`
	IsFeatured  bool            `yaml:"isFeatured"`
	Body        models.RichText `yaml:"textWithHTMLParsing"`

	KeyHighlights      []models.Highlight  `yaml:"keyHighlightsOfTheScheme"`
	Eligibility        []models.SubSection `yaml:"eligibilityCriteria"`
	Benefits           []models.SubSection `yaml:"benefits"`
	Documents          []models.SubSection `yaml:"documentsRequired"`
	SalientFeatures    []models.SubSection `yaml:"salientFeatures"`
	ApplicationProcess []models.SubSection `yaml:"applicationProcess"`
	ImportantDates     []models.DatedEntry `yaml:"importantDates"`
	FAQs               []models.FAQ        `yaml:"frequentlyAskedQuestions"`
	Sources            []models.Source     `yaml:"sourcesAndReferences"`
	Helpline           models.Helpline     `yaml:"helplineNumber"`
	Disclaimer         models.Disclaimer   `yaml:"disclaimer"`

	// Images already stored on the backend; read-only in the form.
	BannerImage *models.Image `yaml:"-"`
	CardImage   *models.Image `yaml:"-"`
}

// blankDraft is the creation template: one empty row per section.
func blankDraft(now time.Time) Draft {
	return Draft{
		States:             []string{},
		PublishedOn:        now.Format(models.DateLayout),
		IsFeatured:         true,
		KeyHighlights:      []models.Highlight{{}},
		Eligibility:        []models.SubSection{{}},
		Benefits:           []models.SubSection{{}},
		Documents:          []models.SubSection{{}},
		SalientFeatures:    []models.SubSection{{}},
		ApplicationProcess: []models.SubSection{{}},
		ImportantDates:     []models.DatedEntry{{}},
		FAQs:               []models.FAQ{{}},
		Sources:            []models.Source{{}},
	}
}

// draftFromDetail normalizes a stored record: references become bare ids and
// empty sections get a placeholder row.
func draftFromDetail(d *models.SchemeDetail) Draft {
	out := Draft{
		Title:              d.Title,
		Slug:               d.Slug,
		About:              d.About,
		Objectives:         d.Objectives,
		Category:           d.Category.ID,
		States:             d.States.IDs(),
		PublishedOn:        normalizeDate(d.PublishedOn),
		IsFeatured:         d.IsFeatured,
		Body:               d.Body,
		KeyHighlights:      withPlaceholder(d.KeyHighlights),
		Eligibility:        withPlaceholder(d.Eligibility),
		Benefits:           withPlaceholder(d.Benefits),
		Documents:          withPlaceholder(d.Documents),
		SalientFeatures:    withPlaceholder(d.SalientFeatures),
		ApplicationProcess: withPlaceholder(d.ApplicationProcess),
		ImportantDates:     withPlaceholder(d.ImportantDates),
		FAQs:               withPlaceholder(d.FAQs),
		Sources:            withPlaceholder(d.Sources),
		Helpline:           d.Helpline,
		Disclaimer:         d.Disclaimer,
	}
	if d.BannerImage.Present() {
		img := *d.BannerImage
		out.BannerImage = &img
	}
	if d.CardImage.Present() {
		img := *d.CardImage
		out.CardImage = &img
	}
	return out
}

func withPlaceholder[T any](rows []T) []T {
	if len(rows) == 0 {
		var zero T
		return []T{zero}
	}
	return append([]T(nil), rows...)
}

// normalizeDate keeps the calendar date of an ISO timestamp.
func normalizeDate(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC().Format(models.DateLayout)
	}
	if len(v) >= len(models.DateLayout) {
		if _, err := time.Parse(models.DateLayout, v[:len(models.DateLayout)]); err == nil {
			return v[:len(models.DateLayout)]
		}
	}
	return v
}

func (d Draft) clone() Draft {
	out := d
	out.States = append([]string(nil), d.States...)
	out.KeyHighlights = append([]models.Highlight(nil), d.KeyHighlights...)
	out.Eligibility = append([]models.SubSection(nil), d.Eligibility...)
	out.Benefits = append([]models.SubSection(nil), d.Benefits...)
	out.Documents = append([]models.SubSection(nil), d.Documents...)
	out.SalientFeatures = append([]models.SubSection(nil), d.SalientFeatures...)
	out.ApplicationProcess = append([]models.SubSection(nil), d.ApplicationProcess...)
	out.ImportantDates = append([]models.DatedEntry(nil), d.ImportantDates...)
	out.FAQs = append([]models.FAQ(nil), d.FAQs...)
	out.Sources = append([]models.Source(nil), d.Sources...)
	if d.BannerImage != nil {
		img := *d.BannerImage
		out.BannerImage = &img
	}
	if d.CardImage != nil {
		img := *d.CardImage
		out.CardImage = &img
	}
	return out
}

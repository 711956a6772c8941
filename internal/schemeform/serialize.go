package schemeform

import (
	"encoding/json"
	"fmt"
	"strconv"

	"scheme-admin/internal/apiclient"
	"scheme-admin/internal/models"
)

// Part names for the preserve-existing-image flags sent on update.
const (
	KeepBannerImage = "keepBannerImage"
	KeepCardImage   = "keepCardImage"
)

// serialize encodes a draft as multipart fields. Structured fields are always
// present: emptied sections go out as [] and emptied objects as {}.
func serialize(s submission) (*apiclient.Form, error) {
	d := s.draft
	form := apiclient.NewForm()

	form.Set(string(FieldTitle), d.Title)
	form.Set(string(FieldSlug), d.Slug)
	form.Set(string(FieldAbout), d.About)
	form.Set(string(FieldObjectives), d.Objectives)
	form.Set(string(FieldPublishedOn), d.PublishedOn)
	form.Set(string(FieldIsFeatured), strconv.FormatBool(d.IsFeatured))
	form.Set(string(FieldBody), d.Body.HTMLDescription)

	structured := []struct {
		field Field
		value interface{}
	}{
		{FieldCategory, d.Category},
		{FieldState, nonEmptyIDs(d.States)},
		{FieldKeyHighlights, models.CompactRows(d.KeyHighlights)},
		{FieldEligibility, models.CompactRows(d.Eligibility)},
		{FieldBenefits, models.CompactRows(d.Benefits)},
		{FieldDocuments, models.CompactRows(d.Documents)},
		{FieldSalientFeatures, models.CompactRows(d.SalientFeatures)},
		{FieldApplicationProcess, models.CompactRows(d.ApplicationProcess)},
		{FieldImportantDates, models.CompactRows(d.ImportantDates)},
		{FieldFAQs, models.CompactRows(d.FAQs)},
		{FieldSources, models.CompactRows(d.Sources)},
		{FieldHelpline, d.Helpline},
		{FieldDisclaimer, d.Disclaimer},
	}
	for _, part := range structured {
		raw, err := json.Marshal(part.value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", part.field, err)
		}
		form.Set(string(part.field), string(raw))
	}

	if s.banner != nil {
		form.Attach(string(SlotBanner), *s.banner)
	} else if s.editMode && s.original != nil && s.original.BannerImage.Present() {
		form.Set(KeepBannerImage, "true")
	}
	if s.card != nil {
		form.Attach(string(SlotCard), *s.card)
	} else if s.editMode && s.original != nil && s.original.CardImage.Present() {
		form.Set(KeepCardImage, "true")
	}
	return form, nil
}

package schemeform

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/microcosm-cc/bluemonday"

	"scheme-admin/internal/models"
)

// ValidationError is the first required-field rule a draft violates.
type ValidationError struct {
	Field   Field
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var textOnly = bluemonday.StrictPolicy()

// visibleText reports whether rich text has any content once markup is removed.
var visibleText = validation.By(func(value interface{}) error {
	html, _ := value.(string)
	text := strings.ReplaceAll(textOnly.Sanitize(html), "&nbsp;", " ")
	if strings.TrimSpace(text) == "" {
		return validation.ErrRequired
	}
	return nil
})

type requiredRule struct {
	field   Field
	message string
	value   func(Draft) interface{}
	rules   []validation.Rule
}

// requiredRules run in this order; the first failure is reported.
var requiredRules = []requiredRule{
	{FieldTitle, "Title is required", func(d Draft) interface{} { return strings.TrimSpace(d.Title) }, []validation.Rule{validation.Required}},
	{FieldSlug, "Slug is required", func(d Draft) interface{} { return strings.TrimSpace(d.Slug) }, []validation.Rule{validation.Required}},
	{FieldAbout, "About is required", func(d Draft) interface{} { return strings.TrimSpace(d.About) }, []validation.Rule{validation.Required}},
	{FieldObjectives, "Objectives are required", func(d Draft) interface{} { return strings.TrimSpace(d.Objectives) }, []validation.Rule{validation.Required}},
	{FieldCategory, "Please select a category", func(d Draft) interface{} { return strings.TrimSpace(d.Category) }, []validation.Rule{validation.Required}},
	{FieldState, "Please select a state", func(d Draft) interface{} { return nonEmptyIDs(d.States) }, []validation.Rule{validation.Required}},
	{FieldBody, "Description is required", func(d Draft) interface{} { return d.Body.HTMLDescription }, []validation.Rule{visibleText}},
}

// Validate returns the first violated rule, or nil.
func (f *Form) Validate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := validateDraft(f.draft); err != nil {
		return err
	}
	return nil
}

func validateDraft(d Draft) *ValidationError {
	for _, r := range requiredRules {
		if err := validation.Validate(r.value(d), r.rules...); err != nil {
			return &ValidationError{Field: r.field, Message: r.message}
		}
	}
	if d.PublishedOn != "" {
		if err := validation.Validate(d.PublishedOn, validation.Date(models.DateLayout)); err != nil {
			return &ValidationError{Field: FieldPublishedOn, Message: fmt.Sprintf("Published date %q is not a valid date", d.PublishedOn)}
		}
	}
	return nil
}

func nonEmptyIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			out = append(out, id)
		}
	}
	return out
}

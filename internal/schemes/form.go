package schemes

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"scheme-admin/internal/httpx"
	"scheme-admin/internal/models"
)

// FormError names the multipart field that could not be decoded.
type FormError struct {
	Field string
	Err   error
}

func (e *FormError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *FormError) Unwrap() error {
	return e.Err
}

// decodeForm maps a parsed multipart form onto UpsertRequest and Files.
// JSON-bearing fields accept the encodings the admin dashboard sends.
func decodeForm(form *multipart.Form) (UpsertRequest, Files, error) {
	value := func(name string) string {
		if vs := form.Value[name]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	req := UpsertRequest{
		Title:           strings.TrimSpace(value("title")),
		Slug:            strings.TrimSpace(value("slug")),
		About:           strings.TrimSpace(value("about")),
		Objectives:      strings.TrimSpace(value("objectives")),
		PublishedOn:     dateOnly(value("publishedOn")),
		Body:            value("textWithHTMLParsing"),
		KeepBannerImage: flag(value("keepBannerImage")),
		KeepCardImage:   flag(value("keepCardImage")),
	}
	if raw := strings.TrimSpace(value("isFeatured")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return req, Files{}, &FormError{Field: "isFeatured", Err: err}
		}
		req.IsFeatured = b
	}
	if raw := strings.TrimSpace(value("isActive")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return req, Files{}, &FormError{Field: "isActive", Err: err}
		}
		req.IsActive = &b
	}

	req.Category = jsonString(value("category"))
	states, err := jsonStrings(value("state"))
	if err != nil {
		return req, Files{}, &FormError{Field: "state", Err: err}
	}
	req.States = states

	if raw := value("textWithHTMLParsing"); strings.HasPrefix(strings.TrimSpace(raw), "{") {
		var rich models.RichText
		if err := json.Unmarshal([]byte(raw), &rich); err == nil {
			req.Body = rich.HTMLDescription
		}
	}

	sections := []struct {
		name string
		dst  interface{}
	}{
		{"keyHighlightsOfTheScheme", &req.KeyHighlights},
		{"eligibilityCriteria", &req.Eligibility},
		{"benefits", &req.Benefits},
		{"documentsRequired", &req.Documents},
		{"salientFeatures", &req.SalientFeatures},
		{"applicationProcess", &req.ApplicationProcess},
		{"importantDates", &req.ImportantDates},
		{"frequentlyAskedQuestions", &req.FAQs},
		{"sourcesAndReferences", &req.Sources},
		{"helplineNumber", &req.Helpline},
		{"disclaimer", &req.Disclaimer},
	}
	for _, sec := range sections {
		if _, err := httpx.DecodeJSONField(value(sec.name), sec.dst); err != nil {
			return req, Files{}, &FormError{Field: sec.name, Err: err}
		}
	}

	files := Files{
		Banner: fileUpload(form, "bannerImage"),
		Card:   fileUpload(form, "cardImage"),
	}
	return req, files, nil
}

func fileUpload(form *multipart.Form, name string) *Upload {
	headers := form.File[name]
	if len(headers) == 0 || headers[0].Size == 0 {
		return nil
	}
	return &Upload{Filename: headers[0].Filename, header: headers[0]}
}

// jsonString accepts "\"id\"" or a bare id.
func jsonString(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return strings.TrimSpace(s)
	}
	return raw
}

// jsonStrings accepts a JSON array, a JSON string or a bare id.
func jsonStrings(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}
	if strings.HasPrefix(raw, "[") {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, err
		}
		return ids, nil
	}
	return []string{jsonString(raw)}, nil
}

func flag(raw string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return b
}

func dateOnly(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > len(models.DateLayout) && raw[len(models.DateLayout)] == 'T' {
		return raw[:len(models.DateLayout)]
	}
	return raw
}

package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// File is an in-memory upload attached to a Form.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type formPart struct {
	name  string
	value string
	file  *File
}

// Form is an ordered multipart/form-data payload.
type Form struct {
	parts []formPart
}

func NewForm() *Form {
	return &Form{}
}

// Set replaces the value of name, keeping its position, or appends it.
func (f *Form) Set(name, value string) {
	for i, p := range f.parts {
		if p.name == name && p.file == nil {
			f.parts[i].value = value
			return
		}
	}
	f.Add(name, value)
}

// Add appends a value even when name is already present.
func (f *Form) Add(name, value string) {
	f.parts = append(f.parts, formPart{name: name, value: value})
}

func (f *Form) Attach(name string, file File) {
	f.parts = append(f.parts, formPart{name: name, file: &file})
}

// Value returns the first value set for name.
func (f *Form) Value(name string) (string, bool) {
	for _, p := range f.parts {
		if p.name == name && p.file == nil {
			return p.value, true
		}
	}
	return "", false
}

// File returns the first file attached under name.
func (f *Form) File(name string) (File, bool) {
	for _, p := range f.parts {
		if p.name == name && p.file != nil {
			return *p.file, true
		}
	}
	return File{}, false
}

// Names lists part names in insertion order.
func (f *Form) Names() []string {
	names := make([]string, 0, len(f.parts))
	for _, p := range f.parts {
		names = append(names, p.name)
	}
	return names
}

func (f *Form) Encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range f.parts {
		if p.file == nil {
			if err := w.WriteField(p.name, p.value); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", p.name, err)
			}
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(p.name), escapeQuotes(p.file.Name)))
		contentType := p.file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", p.name, err)
		}
		if _, err := part.Write(p.file.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", p.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

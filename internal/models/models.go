package models

import (
	"bytes"
	"encoding/json"
	"time"
)

const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"

	DateLayout = "2006-01-02"
)

// Ref is a reference to a category or state. The API sends either a bare id
// or an embedded {_id, name} object; both decode into Ref.
type Ref struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	}
	type plain Ref
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Ref(p)
	return nil
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Name == "" {
		return json.Marshal(r.ID)
	}
	type plain Ref
	return json.Marshal(plain(r))
}

// Refs decodes a single reference or an array of references.
type Refs []Ref

func (rs *Refs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*rs = nil
		return nil
	}
	if data[0] != '[' {
		var one Ref
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		if one.ID == "" {
			*rs = nil
			return nil
		}
		*rs = Refs{one}
		return nil
	}
	var many []Ref
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*rs = many
	return nil
}

func (rs Refs) IDs() []string {
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.ID != "" {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

type Image struct {
	URL    string `yaml:"url,omitempty" json:"url,omitempty" bson:"url,omitempty"`
	FileID string `yaml:"fileId,omitempty" json:"fileId,omitempty" bson:"fileId,omitempty"`
}

func (i *Image) Present() bool {
	return i != nil && (i.URL != "" || i.FileID != "")
}

type Highlight struct {
	ID         string `yaml:"_id,omitempty" json:"_id,omitempty" bson:"_id,omitempty"`
	SchemeName string `yaml:"schemeName" json:"schemeName" bson:"schemeName"`
	LaunchedBy string `yaml:"launchedBy" json:"launchedBy" bson:"launchedBy"`
}

type SubSection struct {
	ID             string `yaml:"_id,omitempty" json:"_id,omitempty" bson:"_id,omitempty"`
	SubTitle       string `yaml:"subTitle" json:"subTitle" bson:"subTitle"`
	SubDescription string `yaml:"subDescription" json:"subDescription" bson:"subDescription"`
}

type DatedEntry struct {
	ID    string `yaml:"_id,omitempty" json:"_id,omitempty" bson:"_id,omitempty"`
	Label string `yaml:"label" json:"label" bson:"label"`
	Date  string `yaml:"date" json:"date" bson:"date"`
}

type FAQ struct {
	ID       string `yaml:"_id,omitempty" json:"_id,omitempty" bson:"_id,omitempty"`
	Question string `yaml:"question" json:"question" bson:"question"`
	Answer   string `yaml:"answer" json:"answer" bson:"answer"`
}

type Source struct {
	ID         string `yaml:"_id,omitempty" json:"_id,omitempty" bson:"_id,omitempty"`
	SourceName string `yaml:"sourceName" json:"sourceName" bson:"sourceName"`
	SourceLink string `yaml:"sourceLink" json:"sourceLink" bson:"sourceLink"`
}

type Helpline struct {
	TollFreeNumber string `yaml:"tollFreeNumber,omitempty" json:"tollFreeNumber,omitempty" bson:"tollFreeNumber,omitempty"`
	EmailSupport   string `yaml:"emailSupport,omitempty" json:"emailSupport,omitempty" bson:"emailSupport,omitempty"`
	Availability   string `yaml:"availability,omitempty" json:"availability,omitempty" bson:"availability,omitempty"`
}

type Disclaimer struct {
	Description string `yaml:"description,omitempty" json:"description,omitempty" bson:"description,omitempty"`
}

type RichText struct {
	HTMLDescription string `yaml:"htmlDescription" json:"htmlDescription" bson:"htmlDescription"`
}

type SchemeSummary struct {
	ID          string `json:"_id"`
	Slug        string `json:"slug,omitempty"`
	Title       string `json:"title"`
	About       string `json:"about,omitempty"`
	Category    Ref    `json:"category"`
	States      Refs   `json:"state"`
	PublishedOn string `json:"publishedOn,omitempty"`
	IsActive    bool   `json:"isActive"`
	CardImage   *Image `json:"cardImage,omitempty"`
}

// Key returns the slug when present, the id otherwise.
func (s SchemeSummary) Key() string {
	if s.Slug != "" {
		return s.Slug
	}
	return s.ID
}

type SchemeDetail struct {
	SchemeSummary

	Objectives         string       `json:"objectives,omitempty"`
	IsFeatured         bool         `json:"isFeatured"`
	BannerImage        *Image       `json:"bannerImage,omitempty"`
	KeyHighlights      []Highlight  `json:"keyHighlightsOfTheScheme,omitempty"`
	Eligibility        []SubSection `json:"eligibilityCriteria,omitempty"`
	Benefits           []SubSection `json:"benefits,omitempty"`
	Documents          []SubSection `json:"documentsRequired,omitempty"`
	SalientFeatures    []SubSection `json:"salientFeatures,omitempty"`
	ApplicationProcess []SubSection `json:"applicationProcess,omitempty"`
	ImportantDates     []DatedEntry `json:"importantDates,omitempty"`
	FAQs               []FAQ        `json:"frequentlyAskedQuestions,omitempty"`
	Helpline           Helpline     `json:"helplineNumber"`
	Sources            []Source     `json:"sourcesAndReferences,omitempty"`
	Disclaimer         Disclaimer   `json:"disclaimer"`
	Body               RichText     `json:"textWithHTMLParsing"`
	CreatedAt          *time.Time   `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time   `json:"updatedAt,omitempty"`
}

type NamedEntity struct {
	ID    string `json:"_id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Slug  string `json:"slug,omitempty" bson:"slug,omitempty"`
	Image *Image `json:"image,omitempty" bson:"image,omitempty"`
}

type User struct {
	ID           string    `bson:"_id,omitempty" json:"_id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Role         string    `bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func blank(values ...string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}

// Blank reports whether every content property is the empty string. Server
// ids do not count as content; whitespace does.
func (h Highlight) Blank() bool { return blank(h.SchemeName, h.LaunchedBy) }

func (s SubSection) Blank() bool { return blank(s.SubTitle, s.SubDescription) }

func (d DatedEntry) Blank() bool { return blank(d.Label, d.Date) }

func (f FAQ) Blank() bool { return blank(f.Question, f.Answer) }

func (s Source) Blank() bool { return blank(s.SourceName, s.SourceLink) }

// CompactRows returns rows without blank entries; never nil.
func CompactRows[T interface{ Blank() bool }](rows []T) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if !r.Blank() {
			out = append(out, r)
		}
	}
	return out
}

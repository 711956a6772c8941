package schemes

import (
	"io"
	"mime/multipart"
	"time"

	"scheme-admin/internal/models"
)

// Document is the stored form of a scheme. Category and states hold ids; names
// are joined in when the record is served.
type Document struct {
	ID                 string              `bson:"_id,omitempty"`
	Slug               string              `bson:"slug"`
	Title              string              `bson:"title"`
	About              string              `bson:"about"`
	Objectives         string              `bson:"objectives"`
	Category           string              `bson:"category"`
	States             []string            `bson:"state"`
	PublishedOn        string              `bson:"publishedOn"`
	IsActive           bool                `bson:"isActive"`
	IsFeatured         bool                `bson:"isFeatured"`
	BannerImage        *models.Image       `bson:"bannerImage,omitempty"`
	CardImage          *models.Image       `bson:"cardImage,omitempty"`
	KeyHighlights      []models.Highlight  `bson:"keyHighlightsOfTheScheme"`
	Eligibility        []models.SubSection `bson:"eligibilityCriteria"`
	Benefits           []models.SubSection `bson:"benefits"`
	Documents          []models.SubSection `bson:"documentsRequired"`
	SalientFeatures    []models.SubSection `bson:"salientFeatures"`
	ApplicationProcess []models.SubSection `bson:"applicationProcess"`
	ImportantDates     []models.DatedEntry `bson:"importantDates"`
	FAQs               []models.FAQ        `bson:"frequentlyAskedQuestions"`
	Sources            []models.Source     `bson:"sourcesAndReferences"`
	Helpline           models.Helpline     `bson:"helplineNumber"`
	Disclaimer         models.Disclaimer   `bson:"disclaimer"`
	Body               models.RichText     `bson:"textWithHTMLParsing"`
	CreatedAt          time.Time           `bson:"createdAt"`
	UpdatedAt          time.Time           `bson:"updatedAt"`
}

// UpsertRequest is a decoded multipart create or update submission.
type UpsertRequest struct {
	Title       string   `validate:"required,max=300"`
	Slug        string   `validate:"omitempty,max=200"`
	About       string   `validate:"required"`
	Objectives  string   `validate:"required"`
	Category    string   `validate:"required"`
	States      []string `validate:"required,min=1,dive,required"`
	PublishedOn string   `validate:"omitempty,date"`
	IsFeatured  bool
	IsActive    *bool
	Body        string `validate:"required"`

	KeyHighlights      []models.Highlight
	Eligibility        []models.SubSection
	Benefits           []models.SubSection
	Documents          []models.SubSection
	SalientFeatures    []models.SubSection
	ApplicationProcess []models.SubSection
	ImportantDates     []models.DatedEntry
	FAQs               []models.FAQ
	Sources            []models.Source
	Helpline           models.Helpline
	Disclaimer         models.Disclaimer

	KeepBannerImage bool
	KeepCardImage   bool
}

// Upload is an image part of a submission. Body is read once.
type Upload struct {
	Filename string
	Body     io.Reader

	header *multipart.FileHeader
}

// open resolves a multipart part into Body; the returned closer may be nil.
func (u *Upload) open() (io.Closer, error) {
	if u.Body != nil || u.header == nil {
		return nil, nil
	}
	f, err := u.header.Open()
	if err != nil {
		return nil, err
	}
	u.Body = f
	return f, nil
}

type Files struct {
	Banner *Upload
	Card   *Upload
}

// ListFilter scopes a listing to one state or one category.
type ListFilter struct {
	StateID    string
	CategoryID string
}

type Page struct {
	Items      []models.SchemeSummary `json:"data"`
	Total      int64                  `json:"total"`
	TotalPages int64                  `json:"totalPages"`
	Page       int64                  `json:"page"`
}

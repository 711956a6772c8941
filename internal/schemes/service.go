package schemes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"scheme-admin/internal/catalog"
	"scheme-admin/internal/models"
	"scheme-admin/internal/uploads"
	"scheme-admin/internal/utils"
)

var (
	ErrNotFound    = errors.New("scheme not found")
	ErrSlugExists  = errors.New("slug already exists")
	ErrInvalidSlug = errors.New("invalid slug")
	ErrBadImage    = errors.New("invalid image")
)

// Names resolves catalog ids to display names.
type Names interface {
	Names(ctx context.Context, kind catalog.Kind) (map[string]string, error)
}

type Service struct {
	repo     Repository
	images   uploads.Store
	names    Names
	policy   *bluemonday.Policy
	location *time.Location
	log      *slog.Logger
}

func NewService(repo Repository, images uploads.Store, names Names, location *time.Location, log *slog.Logger) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		repo:     repo,
		images:   images,
		names:    names,
		policy:   bluemonday.UGCPolicy(),
		location: location,
		log:      log,
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter, page, limit int64) (Page, error) {
	filter.StateID = strings.TrimSpace(filter.StateID)
	filter.CategoryID = strings.TrimSpace(filter.CategoryID)
	if filter.StateID != "" {
		filter.CategoryID = ""
	}

	docs, err := s.repo.List(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return Page{}, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	j := s.joiner(ctx)

	items := make([]models.SchemeSummary, 0, len(docs))
	for _, doc := range docs {
		items = append(items, j.summary(doc))
	}
	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}
	return Page{Items: items, Total: total, TotalPages: totalPages, Page: page}, nil
}

// Get looks key up as a slug first and then as an id.
func (s *Service) Get(ctx context.Context, key string) (models.SchemeDetail, error) {
	key = strings.TrimSpace(key)
	doc, err := s.repo.GetBySlug(ctx, key)
	if errors.Is(err, mongo.ErrNoDocuments) {
		doc, err = s.repo.GetByID(ctx, key)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.SchemeDetail{}, ErrNotFound
		}
		return models.SchemeDetail{}, err
	}
	return s.joiner(ctx).detail(doc), nil
}

func (s *Service) Create(ctx context.Context, req UpsertRequest, files Files) (models.SchemeDetail, error) {
	slug := normalizeSlug(req.Slug, req.Title)
	if slug == "" {
		return models.SchemeDetail{}, ErrInvalidSlug
	}

	var stored []string
	banner, err := s.store(ctx, files.Banner, &stored)
	if err != nil {
		return models.SchemeDetail{}, err
	}
	card, err := s.store(ctx, files.Card, &stored)
	if err != nil {
		s.discard(ctx, stored)
		return models.SchemeDetail{}, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	now := time.Now().In(s.location)
	doc := s.apply(Document{
		ID:        primitive.NewObjectID().Hex(),
		IsActive:  isActive,
		CreatedAt: now,
	}, req, slug, now)
	doc.BannerImage = banner
	doc.CardImage = card

	if err := s.repo.Create(ctx, doc); err != nil {
		s.discard(ctx, stored)
		if mongo.IsDuplicateKeyError(err) {
			return models.SchemeDetail{}, ErrSlugExists
		}
		return models.SchemeDetail{}, err
	}
	return s.joiner(ctx).detail(doc), nil
}

// Update replaces the scheme's fields. An image slot without a new file is
// kept only when the matching keep flag is set; otherwise it is cleared.
func (s *Service) Update(ctx context.Context, id string, req UpsertRequest, files Files) (models.SchemeDetail, error) {
	id = strings.TrimSpace(id)
	slug := normalizeSlug(req.Slug, req.Title)
	if slug == "" {
		return models.SchemeDetail{}, ErrInvalidSlug
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.SchemeDetail{}, ErrNotFound
		}
		return models.SchemeDetail{}, err
	}

	var stored, replaced []string
	banner, err := s.resolveImage(ctx, files.Banner, existing.BannerImage, req.KeepBannerImage, &stored, &replaced)
	if err != nil {
		return models.SchemeDetail{}, err
	}
	card, err := s.resolveImage(ctx, files.Card, existing.CardImage, req.KeepCardImage, &stored, &replaced)
	if err != nil {
		s.discard(ctx, stored)
		return models.SchemeDetail{}, err
	}

	now := time.Now().In(s.location)
	next := s.apply(existing, req, slug, now)
	if req.IsActive != nil {
		next.IsActive = *req.IsActive
	}
	set := bson.M{
		"slug":                     next.Slug,
		"title":                    next.Title,
		"about":                    next.About,
		"objectives":               next.Objectives,
		"category":                 next.Category,
		"state":                    next.States,
		"publishedOn":              next.PublishedOn,
		"isActive":                 next.IsActive,
		"isFeatured":               next.IsFeatured,
		"bannerImage":              banner,
		"cardImage":                card,
		"keyHighlightsOfTheScheme": next.KeyHighlights,
		"eligibilityCriteria":      next.Eligibility,
		"benefits":                 next.Benefits,
		"documentsRequired":        next.Documents,
		"salientFeatures":          next.SalientFeatures,
		"applicationProcess":       next.ApplicationProcess,
		"importantDates":           next.ImportantDates,
		"frequentlyAskedQuestions": next.FAQs,
		"sourcesAndReferences":     next.Sources,
		"helplineNumber":           next.Helpline,
		"disclaimer":               next.Disclaimer,
		"textWithHTMLParsing":      next.Body,
		"updatedAt":                now,
	}

	updated, err := s.repo.Update(ctx, id, set)
	if err != nil {
		s.discard(ctx, stored)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.SchemeDetail{}, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return models.SchemeDetail{}, ErrSlugExists
		}
		return models.SchemeDetail{}, err
	}
	s.discard(ctx, replaced)
	return s.joiner(ctx).detail(updated), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	var files []string
	for _, img := range []*models.Image{existing.BannerImage, existing.CardImage} {
		if img.Present() && img.FileID != "" {
			files = append(files, img.FileID)
		}
	}
	s.discard(ctx, files)
	return nil
}

// apply copies the submitted fields onto doc.
func (s *Service) apply(doc Document, req UpsertRequest, slug string, now time.Time) Document {
	doc.Slug = slug
	doc.Title = strings.TrimSpace(req.Title)
	doc.About = strings.TrimSpace(req.About)
	doc.Objectives = strings.TrimSpace(req.Objectives)
	doc.Category = strings.TrimSpace(req.Category)
	doc.States = cleanIDs(req.States)
	doc.PublishedOn = strings.TrimSpace(req.PublishedOn)
	if doc.PublishedOn == "" {
		doc.PublishedOn = now.Format(models.DateLayout)
	}
	doc.IsFeatured = req.IsFeatured
	doc.Body = models.RichText{HTMLDescription: s.policy.Sanitize(req.Body)}
	doc.KeyHighlights = withIDs(models.CompactRows(req.KeyHighlights), func(r *models.Highlight) *string { return &r.ID })
	doc.Eligibility = subSections(req.Eligibility)
	doc.Benefits = subSections(req.Benefits)
	doc.Documents = subSections(req.Documents)
	doc.SalientFeatures = subSections(req.SalientFeatures)
	doc.ApplicationProcess = subSections(req.ApplicationProcess)
	doc.ImportantDates = withIDs(models.CompactRows(req.ImportantDates), func(r *models.DatedEntry) *string { return &r.ID })
	doc.FAQs = withIDs(models.CompactRows(req.FAQs), func(r *models.FAQ) *string { return &r.ID })
	doc.Sources = withIDs(models.CompactRows(req.Sources), func(r *models.Source) *string { return &r.ID })
	doc.Helpline = req.Helpline
	doc.Disclaimer = req.Disclaimer
	doc.UpdatedAt = now
	return doc
}

func (s *Service) resolveImage(ctx context.Context, up *Upload, current *models.Image, keep bool, stored, replaced *[]string) (*models.Image, error) {
	if up != nil {
		img, err := s.store(ctx, up, stored)
		if err != nil {
			return nil, err
		}
		if current.Present() && current.FileID != "" {
			*replaced = append(*replaced, current.FileID)
		}
		return img, nil
	}
	if keep && current.Present() {
		return current, nil
	}
	if current.Present() && current.FileID != "" {
		*replaced = append(*replaced, current.FileID)
	}
	return nil, nil
}

func (s *Service) store(ctx context.Context, up *Upload, stored *[]string) (*models.Image, error) {
	if up == nil {
		return nil, nil
	}
	if s.images == nil {
		return nil, errors.New("image storage not configured")
	}
	closer, err := up.open()
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer.Close()
	}
	if up.Body == nil {
		return nil, fmt.Errorf("%w: %s is empty", ErrBadImage, up.Filename)
	}
	body, contentType, err := uploads.SniffImage(up.Body)
	if err != nil {
		if errors.Is(err, uploads.ErrNotAnImage) {
			return nil, fmt.Errorf("%w: %s", ErrBadImage, up.Filename)
		}
		return nil, err
	}
	obj, err := s.images.Put(ctx, up.Filename, contentType, body)
	if err != nil {
		return nil, err
	}
	*stored = append(*stored, obj.ID)
	return &models.Image{URL: uploads.URL(obj.ID), FileID: obj.ID}, nil
}

func (s *Service) discard(ctx context.Context, ids []string) {
	if s.images == nil {
		return
	}
	for _, id := range ids {
		if err := s.images.Delete(ctx, id); err != nil && !errors.Is(err, uploads.ErrNotFound) {
			s.log.Warn("schemes image cleanup: failed", slog.String("file_id", id), slog.String("error", err.Error()))
		}
	}
}

type joiner struct {
	states     map[string]string
	categories map[string]string
}

// joiner loads catalog names; lookups degrade to bare ids on failure.
func (s *Service) joiner(ctx context.Context) joiner {
	j := joiner{}
	if s.names == nil {
		return j
	}
	var err error
	if j.states, err = s.names.Names(ctx, catalog.KindStates); err != nil {
		s.log.Warn("schemes join: states unavailable", slog.String("error", err.Error()))
	}
	if j.categories, err = s.names.Names(ctx, catalog.KindCategories); err != nil {
		s.log.Warn("schemes join: categories unavailable", slog.String("error", err.Error()))
	}
	return j
}

func (j joiner) summary(doc Document) models.SchemeSummary {
	states := make(models.Refs, 0, len(doc.States))
	for _, id := range doc.States {
		states = append(states, models.Ref{ID: id, Name: j.states[id]})
	}
	return models.SchemeSummary{
		ID:          doc.ID,
		Slug:        doc.Slug,
		Title:       doc.Title,
		About:       doc.About,
		Category:    models.Ref{ID: doc.Category, Name: j.categories[doc.Category]},
		States:      states,
		PublishedOn: doc.PublishedOn,
		IsActive:    doc.IsActive,
		CardImage:   doc.CardImage,
	}
}

func (j joiner) detail(doc Document) models.SchemeDetail {
	created, updated := doc.CreatedAt, doc.UpdatedAt
	return models.SchemeDetail{
		SchemeSummary:      j.summary(doc),
		Objectives:         doc.Objectives,
		IsFeatured:         doc.IsFeatured,
		BannerImage:        doc.BannerImage,
		KeyHighlights:      doc.KeyHighlights,
		Eligibility:        doc.Eligibility,
		Benefits:           doc.Benefits,
		Documents:          doc.Documents,
		SalientFeatures:    doc.SalientFeatures,
		ApplicationProcess: doc.ApplicationProcess,
		ImportantDates:     doc.ImportantDates,
		FAQs:               doc.FAQs,
		Helpline:           doc.Helpline,
		Sources:            doc.Sources,
		Disclaimer:         doc.Disclaimer,
		Body:               doc.Body,
		CreatedAt:          &created,
		UpdatedAt:          &updated,
	}
}

func subSections(rows []models.SubSection) []models.SubSection {
	return withIDs(models.CompactRows(rows), func(r *models.SubSection) *string { return &r.ID })
}

// withIDs gives every unsaved row a server id.
func withIDs[T any](rows []T, id func(*T) *string) []T {
	for i := range rows {
		if p := id(&rows[i]); strings.TrimSpace(*p) == "" {
			*p = primitive.NewObjectID().Hex()
		}
	}
	return rows
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func normalizeSlug(slug, title string) string {
	raw := strings.TrimSpace(slug)
	if raw == "" {
		raw = strings.TrimSpace(title)
	}
	return utils.Slugify(raw)
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"scheme-admin/internal/cache"
	"scheme-admin/internal/models"
	"scheme-admin/internal/utils"
)

var (
	ErrNotFound    = errors.New("catalog entry not found")
	ErrSlugExists  = errors.New("slug already exists")
	ErrInvalidSlug = errors.New("invalid slug")
	ErrUnknownKind = errors.New("unknown catalog kind")
)

type Service struct {
	repo     Repository
	cache    cache.Cache
	ttl      time.Duration
	location *time.Location
	log      *slog.Logger
}

func NewService(repo Repository, c cache.Cache, ttl time.Duration, location *time.Location, log *slog.Logger) *Service {
	if c == nil {
		c = cache.NewNoop()
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{repo: repo, cache: c, ttl: ttl, location: location, log: log}
}

func cacheKey(kind Kind) string {
	return "catalog:" + string(kind)
}

// List returns every entry of kind as API entities, through the cache.
func (s *Service) List(ctx context.Context, kind Kind) ([]models.NamedEntity, error) {
	key := cacheKey(kind)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var items []models.NamedEntity
		if err := json.Unmarshal(cached, &items); err == nil {
			return items, nil
		}
	} else if err != nil {
		s.log.Warn("catalog list: cache read failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
	}

	entries, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	items := make([]models.NamedEntity, 0, len(entries))
	for _, e := range entries {
		items = append(items, e.entity())
	}

	if payload, err := json.Marshal(items); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
			s.log.Warn("catalog list: cache write failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		}
	}
	return items, nil
}

// Names maps ids to display names for kind.
func (s *Service) Names(ctx context.Context, kind Kind) (map[string]string, error) {
	items, err := s.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(items))
	for _, item := range items {
		names[item.ID] = item.Name
	}
	return names, nil
}

func (s *Service) Create(ctx context.Context, kind Kind, req UpsertRequest) (Entry, error) {
	slug := normalizeSlug(req.Slug, req.Name)
	if slug == "" {
		return Entry{}, ErrInvalidSlug
	}
	now := time.Now().In(s.location)
	item := Entry{
		ID:        primitive.NewObjectID().Hex(),
		Name:      strings.TrimSpace(req.Name),
		Slug:      slug,
		ImageURL:  strings.TrimSpace(req.ImageURL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, kind, item); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Entry{}, ErrSlugExists
		}
		return Entry{}, err
	}
	s.invalidate(ctx, kind)
	return item, nil
}

// Ensure returns the entry with the name's slug, creating it when missing.
func (s *Service) Ensure(ctx context.Context, kind Kind, name string) (Entry, bool, error) {
	slug := normalizeSlug("", name)
	existing, err := s.repo.GetBySlug(ctx, kind, slug)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Entry{}, false, err
	}
	created, err := s.Create(ctx, kind, UpsertRequest{Name: name, Slug: slug})
	if err != nil {
		return Entry{}, false, err
	}
	return created, true, nil
}

func (s *Service) Update(ctx context.Context, kind Kind, id string, req UpsertRequest) (Entry, error) {
	slug := normalizeSlug(req.Slug, req.Name)
	if slug == "" {
		return Entry{}, ErrInvalidSlug
	}
	set := bson.M{
		"name":      strings.TrimSpace(req.Name),
		"slug":      slug,
		"imageUrl":  strings.TrimSpace(req.ImageURL),
		"updatedAt": time.Now().In(s.location),
	}
	updated, err := s.repo.Update(ctx, kind, strings.TrimSpace(id), set)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Entry{}, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return Entry{}, ErrSlugExists
		}
		return Entry{}, err
	}
	s.invalidate(ctx, kind)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, kind Kind, id string) error {
	deleted, err := s.repo.Delete(ctx, kind, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	s.invalidate(ctx, kind)
	return nil
}

func (s *Service) invalidate(ctx context.Context, kind Kind) {
	if err := s.cache.Delete(ctx, cacheKey(kind)); err != nil {
		s.log.Warn("catalog cache: invalidate failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
	}
}

func (e Entry) entity() models.NamedEntity {
	out := models.NamedEntity{ID: e.ID, Name: e.Name, Slug: e.Slug}
	if e.ImageURL != "" {
		out.Image = &models.Image{URL: e.ImageURL}
	}
	return out
}

func normalizeSlug(slug, name string) string {
	raw := strings.TrimSpace(slug)
	if raw == "" {
		raw = strings.TrimSpace(name)
	}
	return utils.Slugify(raw)
}

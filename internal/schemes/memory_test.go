package schemes

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"scheme-admin/internal/catalog"
)

var duplicateKey = mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}

type memoryRepo struct {
	mu   sync.Mutex
	docs map[string]Document
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{docs: map[string]Document{}}
}

func (m *memoryRepo) slugTaken(slug, exceptID string) bool {
	for id, d := range m.docs {
		if d.Slug == slug && id != exceptID {
			return true
		}
	}
	return false
}

func (m *memoryRepo) Create(_ context.Context, item Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slugTaken(item.Slug, "") {
		return duplicateKey
	}
	m.docs[item.ID] = item
	return nil
}

func (m *memoryRepo) Update(_ context.Context, id string, set bson.M) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.docs[id]
	if !ok {
		return Document{}, mongo.ErrNoDocuments
	}
	if slug, _ := set["slug"].(string); m.slugTaken(slug, id) {
		return Document{}, duplicateKey
	}

	raw, err := bson.Marshal(existing)
	if err != nil {
		return Document{}, err
	}
	var merged bson.M
	if err := bson.Unmarshal(raw, &merged); err != nil {
		return Document{}, err
	}
	for k, v := range set {
		merged[k] = v
	}
	raw, err = bson.Marshal(merged)
	if err != nil {
		return Document{}, err
	}
	var updated Document
	if err := bson.Unmarshal(raw, &updated); err != nil {
		return Document{}, err
	}
	m.docs[id] = updated
	return updated, nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return false, nil
	}
	delete(m.docs, id)
	return true, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return Document{}, mongo.ErrNoDocuments
	}
	return d, nil
}

func (m *memoryRepo) GetBySlug(_ context.Context, slug string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.Slug == slug {
			return d, nil
		}
	}
	return Document{}, mongo.ErrNoDocuments
}

func (m *memoryRepo) matching(filter ListFilter) []Document {
	var out []Document
	for _, d := range m.docs {
		switch {
		case filter.StateID != "":
			if !contains(d.States, filter.StateID) {
				continue
			}
		case filter.CategoryID != "":
			if d.Category != filter.CategoryID {
				continue
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter, limit, offset int64) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.matching(filter)
	if offset >= int64(len(all)) {
		return []Document{}, nil
	}
	end := offset + limit
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	return all[offset:end], nil
}

func (m *memoryRepo) Count(_ context.Context, filter ListFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(filter))), nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type staticNames map[catalog.Kind]map[string]string

func (s staticNames) Names(_ context.Context, kind catalog.Kind) (map[string]string, error) {
	return s[kind], nil
}

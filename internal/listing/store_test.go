package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheme-admin/internal/adminapi"
	"scheme-admin/internal/apiclient"
	"scheme-admin/internal/filter"
	"scheme-admin/internal/models"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeAPI struct {
	mu      sync.Mutex
	pages   map[int]adminapi.SchemePage
	listErr error
	queries []adminapi.ListQuery
	details map[string]*models.SchemeDetail
	deleted []string
	// block, when set, is waited on before answering ListSchemes for that page.
	block map[int]chan struct{}
}

func (f *fakeAPI) ListSchemes(ctx context.Context, q adminapi.ListQuery) (adminapi.SchemePage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	ch := f.block[q.Page]
	f.mu.Unlock()
	if ch != nil {
		<-ch
	}
	if f.listErr != nil {
		return adminapi.SchemePage{}, f.listErr
	}
	return f.pages[q.Page], nil
}

func (f *fakeAPI) GetScheme(ctx context.Context, key string) (*models.SchemeDetail, error) {
	if d, ok := f.details[key]; ok {
		return d, nil
	}
	return nil, &apiclient.Error{Method: http.MethodGet, Path: "/user/getSchemeBySlug/" + key, Status: http.StatusNotFound}
}

func (f *fakeAPI) DeleteScheme(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func summaries(prefix string, n int) []models.SchemeSummary {
	out := make([]models.SchemeSummary, n)
	for i := range out {
		out[i] = models.SchemeSummary{ID: fmt.Sprintf("%s-%d", prefix, i), Title: fmt.Sprintf("%s %d", prefix, i)}
	}
	return out
}

func TestLoadPageThenAppendConcatenatesInOrder(t *testing.T) {
	api := &fakeAPI{pages: map[int]adminapi.SchemePage{
		1: {Items: summaries("p1", 20), Total: 45, TotalPages: 3},
		2: {Items: summaries("p2", 20), Total: 45, TotalPages: 3},
		3: {Items: summaries("p3", 5), Total: 45, TotalPages: 3},
	}}
	store := New(api)
	ctx := context.Background()

	require.NoError(t, store.LoadPage(ctx, 1, false, "", ""))
	snap := store.Snapshot()
	assert.Equal(t, 1, snap.CurrentPage)
	assert.Equal(t, 3, snap.TotalPages)
	assert.Equal(t, 45, snap.TotalItems)
	assert.True(t, snap.HasMore)
	assert.Len(t, snap.Schemes, 20)

	require.NoError(t, store.LoadPage(ctx, 2, true, "", ""))
	snap = store.Snapshot()
	require.Len(t, snap.Schemes, 40)
	assert.Equal(t, "p1-0", snap.Schemes[0].ID)
	assert.Equal(t, "p1-19", snap.Schemes[19].ID)
	assert.Equal(t, "p2-0", snap.Schemes[20].ID)
	assert.True(t, snap.HasMore)

	require.NoError(t, store.NextPage(ctx))
	snap = store.Snapshot()
	assert.Len(t, snap.Schemes, 45)
	assert.False(t, snap.HasMore)
	assert.Equal(t, StatusSuccess, snap.Status)

	require.NoError(t, store.NextPage(ctx))
	assert.Len(t, api.queries, 3, "NextPage past the end must not fetch")
}

func TestLoadPageReplacesWithoutAppend(t *testing.T) {
	api := &fakeAPI{pages: map[int]adminapi.SchemePage{
		1: {Items: summaries("p1", 3), Total: 6, TotalPages: 2},
		2: {Items: summaries("p2", 3), Total: 6, TotalPages: 2},
	}}
	store := New(api, WithPageSize(3))
	ctx := context.Background()

	require.NoError(t, store.LoadPage(ctx, 1, false, "", ""))
	require.NoError(t, store.LoadPage(ctx, 2, false, "", ""))
	snap := store.Snapshot()
	require.Len(t, snap.Schemes, 3)
	assert.Equal(t, "p2-0", snap.Schemes[0].ID)
	assert.Equal(t, 3, api.queries[0].Limit)
}

func TestLoadAllAlwaysSinglePage(t *testing.T) {
	api := &fakeAPI{pages: map[int]adminapi.SchemePage{
		1: {Items: summaries("all", 45), Total: 45, TotalPages: 3},
	}}
	store := New(api)
	ctx := context.Background()

	require.NoError(t, store.LoadPage(ctx, 1, false, "", ""))
	require.NoError(t, store.LoadAll(ctx, "", ""))

	snap := store.Snapshot()
	assert.False(t, snap.HasMore)
	assert.Equal(t, 1, snap.TotalPages)
	assert.Equal(t, 1, snap.CurrentPage)
	assert.Len(t, snap.Schemes, 45)
	assert.Equal(t, LoadAllLimit, api.queries[len(api.queries)-1].Limit)
}

func TestNotFoundIsEmptyNotError(t *testing.T) {
	api := &fakeAPI{pages: map[int]adminapi.SchemePage{
		1: {Items: summaries("p1", 20), Total: 45, TotalPages: 3},
	}}
	store := New(api)
	ctx := context.Background()
	require.NoError(t, store.LoadPage(ctx, 1, false, "", ""))

	api.listErr = &apiclient.Error{Status: http.StatusNotFound, Message: "No schemes found"}
	require.NoError(t, store.LoadPage(ctx, 1, false, "state-x", ""))

	snap := store.Snapshot()
	assert.Empty(t, snap.Schemes)
	assert.NotNil(t, snap.Schemes)
	assert.Empty(t, snap.Err)
	assert.False(t, snap.HasMore)
	assert.Equal(t, 1, snap.TotalPages)
	assert.Equal(t, 1, snap.CurrentPage)
	assert.Equal(t, StatusEmpty, snap.Status)

	require.NoError(t, store.LoadAll(ctx, "", ""))
	assert.Empty(t, store.Snapshot().Err)
}

func TestOtherErrorsKeepListAndSetError(t *testing.T) {
	api := &fakeAPI{pages: map[int]adminapi.SchemePage{
		1: {Items: summaries("p1", 2), Total: 2, TotalPages: 1},
	}}
	store := New(api)
	ctx := context.Background()
	require.NoError(t, store.LoadPage(ctx, 1, false, "", ""))

	api.listErr = &apiclient.Error{Status: http.StatusInternalServerError, Message: "database error"}
	err := store.LoadPage(ctx, 1, false, "", "")
	require.Error(t, err)

	snap := store.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "database error", snap.Err)
	assert.Len(t, snap.Schemes, 2)
}

func TestMissingDataIsEmpty(t *testing.T) {
	api := &fakeAPI{pages: map[int]adminapi.SchemePage{1: {}}}
	store := New(api)
	require.NoError(t, store.LoadPage(context.Background(), 1, false, "", ""))
	snap := store.Snapshot()
	assert.Equal(t, StatusEmpty, snap.Status)
	assert.Empty(t, snap.Err)
}

func TestStateWinsOverCategory(t *testing.T) {
	api := &fakeAPI{pages: map[int]adminapi.SchemePage{1: {Items: summaries("p", 1), Total: 1, TotalPages: 1}}}
	store := New(api)
	require.NoError(t, store.LoadPage(context.Background(), 1, false, "s1", "c1"))
	require.NoError(t, store.LoadAll(context.Background(), "s2", "c2"))

	assert.Equal(t, "s1", api.queries[0].StateID)
	assert.Empty(t, api.queries[0].CategoryID)
	assert.Equal(t, "s2", api.queries[1].StateID)
	assert.Empty(t, api.queries[1].CategoryID)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{
		pages: map[int]adminapi.SchemePage{
			1: {Items: summaries("old", 1), Total: 1, TotalPages: 1},
			2: {Items: summaries("new", 2), Total: 2, TotalPages: 2},
		},
		block: map[int]chan struct{}{1: release},
	}
	store := New(api)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- store.LoadPage(ctx, 1, false, "", "") }()

	// wait until the first request is in flight
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.queries) == 1
	}, timeout, tick)

	require.NoError(t, store.LoadPage(ctx, 2, false, "", ""))
	close(release)
	assert.ErrorIs(t, <-done, ErrStale)

	snap := store.Snapshot()
	require.Len(t, snap.Schemes, 2)
	assert.Equal(t, "new-0", snap.Schemes[0].ID)
	assert.Equal(t, 2, snap.CurrentPage)
}

func TestDeleteDoesNotMutateList(t *testing.T) {
	api := &fakeAPI{pages: map[int]adminapi.SchemePage{1: {Items: summaries("p", 2), Total: 2, TotalPages: 1}}}
	store := New(api)
	ctx := context.Background()
	require.NoError(t, store.LoadPage(ctx, 1, false, "", ""))

	require.NoError(t, store.DeleteByID(ctx, "p-0"))
	assert.Equal(t, []string{"p-0"}, api.deleted)
	assert.Len(t, store.Snapshot().Schemes, 2)
}

func TestFetchDetailBySlugOrID(t *testing.T) {
	item := models.SchemeSummary{ID: "id-1", Slug: "pm-kisan", Title: "PM Kisan"}
	api := &fakeAPI{
		pages: map[int]adminapi.SchemePage{1: {Items: []models.SchemeSummary{item, {ID: "id-2", Title: "No detail"}}, Total: 2, TotalPages: 1}},
		details: map[string]*models.SchemeDetail{
			"pm-kisan": {SchemeSummary: item, Objectives: "support farmers"},
			"remote":   {SchemeSummary: models.SchemeSummary{ID: "id-9", Slug: "remote"}},
		},
	}
	store := New(api)
	ctx := context.Background()
	require.NoError(t, store.LoadPage(ctx, 1, false, "", ""))

	d, err := store.FetchDetailBySlugOrID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "support farmers", d.Objectives)

	d, err = store.FetchDetailBySlugOrID(ctx, "id-2")
	assert.ErrorIs(t, err, ErrPartialDetail)
	require.NotNil(t, d)
	assert.Equal(t, "No detail", d.Title)
	assert.Contains(t, store.Snapshot().DetailErr, "full record unavailable")

	d, err = store.FetchDetailBySlugOrID(ctx, "remote")
	require.NoError(t, err)
	assert.Equal(t, "id-9", d.ID)
	assert.Empty(t, store.Snapshot().DetailErr)

	d, err = store.FetchDetailBySlugOrID(ctx, "missing")
	assert.Error(t, err)
	assert.Nil(t, d)
	assert.Equal(t, "scheme not found", store.Snapshot().DetailErr)
}

func TestFollowReloadsOnFilterChange(t *testing.T) {
	api := &fakeAPI{pages: map[int]adminapi.SchemePage{1: {Items: summaries("p", 1), Total: 1, TotalPages: 1}}}
	store := New(api)
	f := filter.New()
	store.Follow(context.Background(), f)

	f.SetState("s1")
	f.SetCategory("c1")
	f.Reset()

	require.Len(t, api.queries, 3)
	assert.Equal(t, adminapi.ListQuery{Page: 1, Limit: DefaultPageSize, StateID: "s1"}, api.queries[0])
	assert.Equal(t, adminapi.ListQuery{Page: 1, Limit: DefaultPageSize, CategoryID: "c1"}, api.queries[1])
	assert.Equal(t, adminapi.ListQuery{Page: 1, Limit: DefaultPageSize}, api.queries[2])
}

// The full path through adminapi and apiclient against a backend that answers
// like the real listing endpoint.
func TestStoreAgainstHTTPBackend(t *testing.T) {
	const total = 45
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != adminapi.PathListSchemes {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("stateId") == "empty" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"No schemes found"}`))
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		start := (page - 1) * limit
		end := start + limit
		if end > total {
			end = total
		}
		items := summaries("srv", total)[start:end]
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data":       items,
			"total":      total,
			"totalPages": (total + limit - 1) / limit,
		})
	}))
	defer srv.Close()

	hc, err := apiclient.New(srv.URL, nil)
	require.NoError(t, err)
	store := New(adminapi.New(hc, nil))
	ctx := context.Background()

	require.NoError(t, store.LoadPage(ctx, 1, false, "", ""))
	snap := store.Snapshot()
	assert.Equal(t, 1, snap.CurrentPage)
	assert.Equal(t, 3, snap.TotalPages)
	assert.Equal(t, 45, snap.TotalItems)
	assert.True(t, snap.HasMore)

	require.NoError(t, store.LoadPage(ctx, 2, true, "", ""))
	snap = store.Snapshot()
	assert.Len(t, snap.Schemes, 40)
	assert.True(t, snap.HasMore)

	require.NoError(t, store.LoadPage(ctx, 1, false, "empty", ""))
	snap = store.Snapshot()
	assert.Empty(t, snap.Schemes)
	assert.Empty(t, snap.Err)
	assert.False(t, snap.HasMore)
}

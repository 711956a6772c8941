package listing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"scheme-admin/internal/adminapi"
	"scheme-admin/internal/apiclient"
	"scheme-admin/internal/filter"
	"scheme-admin/internal/models"
)

const (
	DefaultPageSize = 20
	LoadAllLimit    = 1000
)

// ErrStale is returned by a load whose response arrived after a newer load
// was issued; its result is discarded.
var ErrStale = errors.New("listing: superseded by a newer load")

// ErrPartialDetail accompanies a detail built from the list summary because
// the full record could not be fetched.
var ErrPartialDetail = errors.New("listing: full record unavailable, showing list summary")

// API is the subset of adminapi.Client the store needs.
type API interface {
	ListSchemes(ctx context.Context, q adminapi.ListQuery) (adminapi.SchemePage, error)
	GetScheme(ctx context.Context, slugOrID string) (*models.SchemeDetail, error)
	DeleteScheme(ctx context.Context, id string) error
}

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusEmpty
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusEmpty:
		return "empty"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a copy of the store state; callers may keep it.
type Snapshot struct {
	Schemes     []models.SchemeSummary
	CurrentPage int
	TotalPages  int
	TotalItems  int
	HasMore     bool
	Status      Status
	Err         string
	DetailErr   string
}

type query struct {
	stateID    string
	categoryID string
	all        bool
}

type Store struct {
	api      API
	pageSize int
	log      *slog.Logger

	mu    sync.Mutex
	seq   uint64
	last  query
	state Snapshot
}

type Option func(*Store)

func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

func New(api API, opts ...Option) *Store {
	s := &Store{
		api:      api,
		pageSize: DefaultPageSize,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		state: Snapshot{
			Schemes:     []models.SchemeSummary{},
			CurrentPage: 1,
			TotalPages:  1,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) PageSize() int {
	return s.pageSize
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Schemes = append([]models.SchemeSummary(nil), s.state.Schemes...)
	return out
}

// scope applies the tie-break: a state id wins over a category id.
func scope(stateID, categoryID string) (string, string) {
	stateID = strings.TrimSpace(stateID)
	categoryID = strings.TrimSpace(categoryID)
	if stateID != "" {
		return stateID, ""
	}
	return "", categoryID
}

func (s *Store) begin(q query) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.last = q
	s.state.Status = StatusLoading
	return s.seq
}

// LoadPage fetches one page. With appendPage the results are concatenated to
// the current list, otherwise they replace it. A 404 is an empty result.
func (s *Store) LoadPage(ctx context.Context, page int, appendPage bool, stateID, categoryID string) error {
	if page < 1 {
		page = 1
	}
	stateID, categoryID = scope(stateID, categoryID)
	seq := s.begin(query{stateID: stateID, categoryID: categoryID})

	res, err := s.api.ListSchemes(ctx, adminapi.ListQuery{
		Page:       page,
		Limit:      s.pageSize,
		StateID:    stateID,
		CategoryID: categoryID,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		s.log.Debug("listing load page: stale response dropped", slog.Int("page", page))
		return ErrStale
	}

	if err != nil {
		if apiclient.IsNotFound(err) {
			s.setEmptyLocked()
			s.log.Info("listing load page: empty", slog.Int("page", page))
			return nil
		}
		s.state.Status = StatusError
		s.state.Err = apiclient.UserMessage(err)
		s.log.Warn("listing load page: failed", slog.Int("page", page), slog.String("error", err.Error()))
		return err
	}
	if res.Items == nil {
		s.setEmptyLocked()
		s.log.Warn("listing load page: response without data", slog.Int("page", page))
		return nil
	}

	var list []models.SchemeSummary
	if appendPage {
		list = make([]models.SchemeSummary, 0, len(s.state.Schemes)+len(res.Items))
		list = append(list, s.state.Schemes...)
		list = append(list, res.Items...)
	} else {
		list = append([]models.SchemeSummary{}, res.Items...)
	}

	total := res.Total
	if total <= 0 {
		total = len(list)
	}
	totalPages := res.TotalPages
	if totalPages < 1 {
		totalPages = (total + s.pageSize - 1) / s.pageSize
	}
	if totalPages < 1 {
		totalPages = 1
	}

	s.state.Schemes = list
	s.state.CurrentPage = page
	s.state.TotalPages = totalPages
	s.state.TotalItems = total
	s.state.HasMore = page < totalPages
	s.state.Err = ""
	s.state.Status = statusFor(list)

	s.log.Info("listing load page: ok",
		slog.Int("page", page),
		slog.Int("count", len(res.Items)),
		slog.Int("total", total),
		slog.Bool("append", appendPage),
	)
	return nil
}

// LoadAll replaces the list with every matching scheme.
func (s *Store) LoadAll(ctx context.Context, stateID, categoryID string) error {
	stateID, categoryID = scope(stateID, categoryID)
	seq := s.begin(query{stateID: stateID, categoryID: categoryID, all: true})

	res, err := s.api.ListSchemes(ctx, adminapi.ListQuery{
		Page:       1,
		Limit:      LoadAllLimit,
		StateID:    stateID,
		CategoryID: categoryID,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		s.log.Debug("listing load all: stale response dropped")
		return ErrStale
	}

	if err != nil {
		if apiclient.IsNotFound(err) {
			s.setEmptyLocked()
			s.log.Info("listing load all: empty")
			return nil
		}
		s.state.Status = StatusError
		s.state.Err = apiclient.UserMessage(err)
		s.log.Warn("listing load all: failed", slog.String("error", err.Error()))
		return err
	}
	if res.Items == nil {
		s.setEmptyLocked()
		s.log.Warn("listing load all: response without data")
		return nil
	}

	list := append([]models.SchemeSummary{}, res.Items...)
	total := res.Total
	if total < len(list) {
		total = len(list)
	}

	s.state.Schemes = list
	s.state.CurrentPage = 1
	s.state.TotalPages = 1
	s.state.TotalItems = total
	s.state.HasMore = false
	s.state.Err = ""
	s.state.Status = statusFor(list)

	s.log.Info("listing load all: ok", slog.Int("count", len(list)), slog.Int("total", total))
	return nil
}

// NextPage appends the page after the current one using the last scope.
// It is a no-op when there is nothing more to load.
func (s *Store) NextPage(ctx context.Context) error {
	s.mu.Lock()
	hasMore := s.state.HasMore
	next := s.state.CurrentPage + 1
	last := s.last
	s.mu.Unlock()

	if !hasMore || last.all {
		return nil
	}
	return s.LoadPage(ctx, next, true, last.stateID, last.categoryID)
}

// Reload refetches from the start with the last scope and mode.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if last.all {
		return s.LoadAll(ctx, last.stateID, last.categoryID)
	}
	return s.LoadPage(ctx, 1, false, last.stateID, last.categoryID)
}

// Follow reloads page 1 whenever the filter selection changes.
func (s *Store) Follow(ctx context.Context, f *filter.State) {
	f.OnChange(func(sel filter.Selection) {
		_ = s.LoadPage(ctx, 1, false, sel.StateID, sel.CategoryID)
	})
}

// DeleteByID deletes on the backend only. The caller reloads afterwards so the
// list never diverges from server state.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	if err := s.api.DeleteScheme(ctx, id); err != nil {
		s.log.Warn("listing delete: failed", slog.String("scheme_id", id), slog.String("error", err.Error()))
		return err
	}
	s.log.Info("listing delete: ok", slog.String("scheme_id", id))
	return nil
}

// FetchDetailBySlugOrID resolves key against the loaded list (id or slug) and
// then fetches the full record. When the key is unknown locally it is sent to
// the backend as is. A nil result records DetailErr. When the key is in the
// list but the full record cannot be fetched, the summary is returned with
// ErrPartialDetail and DetailErr is set.
func (s *Store) FetchDetailBySlugOrID(ctx context.Context, key string) (*models.SchemeDetail, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		err := errors.New("missing scheme identifier")
		s.setDetailErr(err.Error())
		return nil, err
	}

	if item, ok := s.find(key); ok {
		detail, err := s.api.GetScheme(ctx, item.Key())
		if err != nil && item.Slug != "" && item.ID != "" {
			detail, err = s.api.GetScheme(ctx, item.ID)
		}
		if err == nil {
			s.setDetailErr("")
			return detail, nil
		}
		s.log.Warn("listing detail: fetch failed, using list item",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		s.setDetailErr("full record unavailable: " + apiclient.UserMessage(err))
		return &models.SchemeDetail{SchemeSummary: item}, errors.Join(ErrPartialDetail, err)
	}

	detail, err := s.api.GetScheme(ctx, key)
	if err != nil {
		msg := apiclient.UserMessage(err)
		if apiclient.IsNotFound(err) || errors.Is(err, adminapi.ErrEmptyResponse) {
			msg = "scheme not found"
		}
		s.setDetailErr(msg)
		s.log.Warn("listing detail: not found", slog.String("key", key), slog.String("error", err.Error()))
		return nil, err
	}
	s.setDetailErr("")
	return detail, nil
}

func (s *Store) find(key string) (models.SchemeSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.state.Schemes {
		if item.ID == key || (item.Slug != "" && item.Slug == key) {
			return item, true
		}
	}
	return models.SchemeSummary{}, false
}

func (s *Store) setDetailErr(msg string) {
	s.mu.Lock()
	s.state.DetailErr = msg
	s.mu.Unlock()
}

func (s *Store) setEmptyLocked() {
	s.state.Schemes = []models.SchemeSummary{}
	s.state.CurrentPage = 1
	s.state.TotalPages = 1
	s.state.TotalItems = 0
	s.state.HasMore = false
	s.state.Err = ""
	s.state.Status = StatusEmpty
}

func statusFor(list []models.SchemeSummary) Status {
	if len(list) == 0 {
		return StatusEmpty
	}
	return StatusSuccess
}

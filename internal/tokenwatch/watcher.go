// Package tokenwatch revalidates the stored session token in the background
// and logs the operator out when the backend rejects it.
package tokenwatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"scheme-admin/internal/apiclient"
	"scheme-admin/internal/cache"
	"scheme-admin/internal/session"
)

const (
	DefaultInterval = 5 * time.Minute
	DefaultCacheTTL = 10 * time.Minute
)

var (
	ErrNoToken  = errors.New("tokenwatch: no session token")
	ErrRejected = errors.New("tokenwatch: token rejected")
)

// Verifier asks the backend whether the current token is still accepted.
type Verifier interface {
	VerifyToken(ctx context.Context) error
}

type Result int

const (
	ResultSkipped Result = iota
	ResultCached
	ResultValid
	ResultTransient
	ResultLoggedOut
)

type Watcher struct {
	verifier Verifier
	store    session.Store
	cache    cache.Cache
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time
	log      *slog.Logger
	onLogout func(error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	checkMu sync.Mutex
}

type Option func(*Watcher)

func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithCacheTTL sets how long a successful validation is trusted.
func WithCacheTTL(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.ttl = d
		}
	}
}

func WithCache(c cache.Cache) Option {
	return func(w *Watcher) {
		if c != nil {
			w.cache = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// OnLogout is called after a rejected token has been cleared, outside any
// watcher lock.
func OnLogout(fn func(error)) Option {
	return func(w *Watcher) {
		w.onLogout = fn
	}
}

func New(verifier Verifier, store session.Store, opts ...Option) *Watcher {
	w := &Watcher{
		verifier: verifier,
		store:    store,
		cache:    cache.NewMemory(),
		interval: DefaultInterval,
		ttl:      DefaultCacheTTL,
		now:      time.Now,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs an immediate check and then one per interval until ctx is done,
// Stop is called or the token is rejected. Starting a running watcher is a
// no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, cancel, w.done)
}

// Stop cancels the background task and waits for it to exit. It is safe to
// call from the OnLogout callback.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watcher) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	res, err := w.check(ctx)
	for res != ResultLoggedOut {
		select {
		case <-ctx.Done():
			close(done)
			return
		case <-ticker.C:
			res, err = w.check(ctx)
		}
	}

	// The task is finished before the callback runs, so the callback may
	// Stop or restart the watcher.
	w.detach(done)
	cancel()
	close(done)
	w.notify(err)
}

// detach forgets the task owning done unless Stop already did.
func (w *Watcher) detach(done chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == done {
		w.cancel, w.done = nil, nil
	}
}

func (w *Watcher) notify(err error) {
	if w.onLogout != nil {
		w.onLogout(err)
	}
}

// Check validates the current token once. Only an explicit 401 or 403 logs
// the operator out; transport failures and other statuses leave the session.
func (w *Watcher) Check(ctx context.Context) (Result, error) {
	res, err := w.check(ctx)
	if res == ResultLoggedOut {
		w.notify(err)
	}
	return res, err
}

func (w *Watcher) check(ctx context.Context) (Result, error) {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	token := w.store.Token()
	if token == "" {
		return ResultSkipped, ErrNoToken
	}
	key := cacheKey(token)

	if w.fresh(ctx, key) {
		return ResultCached, nil
	}

	err := w.verifier.VerifyToken(ctx)
	switch {
	case err == nil:
		stamp := strconv.FormatInt(w.now().UnixNano(), 10)
		if cerr := w.cache.Set(ctx, key, []byte(stamp), w.ttl); cerr != nil {
			w.log.Warn("token check: cache write failed", slog.String("error", cerr.Error()))
		}
		w.log.Debug("token check: valid")
		return ResultValid, nil
	case apiclient.IsAuthRejected(err):
		_ = w.cache.Delete(ctx, key)
		if cerr := w.store.Clear(); cerr != nil {
			w.log.Error("token check: clear session failed", slog.String("error", cerr.Error()))
		}
		w.log.Warn("token check: rejected, logged out", slog.Int("status", apiclient.StatusOf(err)))
		return ResultLoggedOut, errors.Join(ErrRejected, err)
	default:
		w.log.Warn("token check: transient failure", slog.String("error", err.Error()))
		return ResultTransient, err
	}
}

// fresh reports a cached validation younger than the ttl.
func (w *Watcher) fresh(ctx context.Context, key string) bool {
	raw, ok, err := w.cache.Get(ctx, key)
	if err != nil {
		w.log.Warn("token check: cache read failed", slog.String("error", err.Error()))
		return false
	}
	if !ok {
		return false
	}
	nanos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return false
	}
	return w.now().Sub(time.Unix(0, nanos)) < w.ttl
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "token:" + hex.EncodeToString(sum[:])
}

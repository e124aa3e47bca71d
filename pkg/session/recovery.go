package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"collab-editor-be/internal/pkg/logger"

	"github.com/patrickmn/go-cache"
)

var ErrRefreshFailed = errors.New("session refresh failed")

// Refresher renews the server-side session before a reload.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// HTTPRefresher calls POST {BaseURL}/session/refresh with an empty body.
// Token, when set, is sent as a bearer credential; browsers rely on cookies.
type HTTPRefresher struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (r *HTTPRefresher) Refresh(ctx context.Context) error {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimRight(r.BaseURL, "/") + "/session/refresh"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrRefreshFailed, resp.StatusCode)
	}
	return nil
}

// AttemptTracker counts reloads per key for a limited time so a view that
// keeps failing stops reloading.
type AttemptTracker struct {
	cache *cache.Cache
}

func NewAttemptTracker(ttl time.Duration) *AttemptTracker {
	return &AttemptTracker{cache: cache.New(ttl, 2*ttl)}
}

func (t *AttemptTracker) Count(key string) int {
	if v, ok := t.cache.Get(key); ok {
		return v.(int)
	}
	return 0
}

func (t *AttemptTracker) Record(key string) int {
	n, err := t.cache.IncrementInt(key, 1)
	if err != nil {
		t.cache.Set(key, 1, cache.DefaultExpiration)
		return 1
	}
	return n
}

func (t *AttemptTracker) Reset(key string) {
	t.cache.Delete(key)
}

// Outcome is what a recovery did.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeReloaded
	OutcomeNavigatedHome
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReloaded:
		return "reloaded"
	case OutcomeNavigatedHome:
		return "navigated_home"
	default:
		return "none"
	}
}

// Recoverer turns a transport failure into either a fresh session or a
// navigation away from the view.
type Recoverer struct {
	Refresher Refresher
	Navigator Navigator
	// Reload rebuilds the view with a new session.
	Reload func()
	// Reloaded marks a view that is itself the product of a reload.
	Reloaded bool
	// Attempts and Key bound reloads across views; MaxReloads defaults to 1.
	Attempts   *AttemptTracker
	Key        string
	MaxReloads int
	Logger     logger.ILogger
}

func (r *Recoverer) exhausted() bool {
	if r.Reloaded {
		return true
	}
	if r.Attempts == nil {
		return false
	}
	limit := r.MaxReloads
	if limit <= 0 {
		limit = 1
	}
	return r.Attempts.Count(r.Key) >= limit
}

// Recover runs one recovery. cause is only logged.
func (r *Recoverer) Recover(ctx context.Context, cause string) Outcome {
	log := r.Logger
	if log == nil {
		log = logger.NewNop()
	}

	if r.exhausted() {
		log.Warn("SESSION", "Reload already attempted, leaving view", map[string]interface{}{"cause": cause, "key": r.Key})
		r.navigateHome()
		return OutcomeNavigatedHome
	}

	if r.Refresher != nil {
		err := r.Refresher.Refresh(ctx)
		if ctx.Err() != nil {
			// The owner went away during the refresh.
			return OutcomeNone
		}
		if err != nil {
			log.Error("SESSION", "Session refresh failed", map[string]interface{}{"cause": cause, "error": err.Error()})
			r.navigateHome()
			return OutcomeNavigatedHome
		}
	}

	if r.Attempts != nil {
		r.Attempts.Record(r.Key)
	}
	log.Info("SESSION", "Reloading session", map[string]interface{}{"cause": cause, "key": r.Key})
	if r.Reload != nil {
		r.Reload()
	}
	return OutcomeReloaded
}

func (r *Recoverer) navigateHome() {
	if r.Navigator != nil {
		r.Navigator.Navigate("/", false)
	}
}

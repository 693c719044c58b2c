package upstream

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CsrfTokenManager holds the anti-forgery token required on every
// state-changing gateway call. The token is fetched lazily, cached until
// Invalidate and shared across callers: concurrent Gets while a fetch is in
// flight all wait on the same request.
//
// This is the only piece of process-wide mutable state the gateway client
// carries.
type CsrfTokenManager struct {
	fetch func(ctx context.Context) (string, error)

	mu    sync.Mutex
	token string
	group singleflight.Group
}

func NewCsrfTokenManager(fetch func(ctx context.Context) (string, error)) *CsrfTokenManager {
	return &CsrfTokenManager{fetch: fetch}
}

// Init eagerly fetches a token so the first mutating call does not pay the
// round trip
func (m *CsrfTokenManager) Init(ctx context.Context) error {
	_, err := m.Get(ctx)
	return err
}

// Get returns the cached token, fetching one if none is cached
func (m *CsrfTokenManager) Get(ctx context.Context) (string, error) {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if token != "" {
		return token, nil
	}

	v, err, _ := m.group.Do("csrf", func() (any, error) {
		fetched, err := m.fetch(ctx)

		if err != nil {
			return "", err
		}

		m.mu.Lock()
		m.token = fetched
		m.mu.Unlock()

		return fetched, nil
	})

	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// Invalidate drops the cached token. The next Get fetches a fresh one.
func (m *CsrfTokenManager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
}

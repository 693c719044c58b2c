package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCsrfTokenDedup(t *testing.T) {
	var fetches atomic.Int32

	release := make(chan struct{})

	mgr := NewCsrfTokenManager(func(ctx context.Context) (string, error) {
		fetches.Add(1)
		<-release
		return "tok", nil
	})

	const callers = 8

	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			token, err := mgr.Get(context.Background())

			if err != nil || token != "tok" {
				t.Errorf("get failed: %q %v", token, err)
			}
		}()
	}

	// Let all callers pile onto the single in-flight fetch
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := fetches.Load(); n != 1 {
		t.Fatalf("expected exactly 1 token fetch, got %d", n)
	}
}

func TestCsrfTokenCachedAcrossCalls(t *testing.T) {
	var fetches atomic.Int32

	mgr := NewCsrfTokenManager(func(ctx context.Context) (string, error) {
		fetches.Add(1)
		return "tok", nil
	})

	for i := 0; i < 3; i++ {
		if _, err := mgr.Get(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	if n := fetches.Load(); n != 1 {
		t.Fatalf("expected 1 fetch across repeated gets, got %d", n)
	}

	mgr.Invalidate()

	if _, err := mgr.Get(context.Background()); err != nil {
		t.Fatal(err)
	}

	if n := fetches.Load(); n != 2 {
		t.Fatalf("expected a new fetch after invalidate, got %d", n)
	}
}

func TestPostRetriesOnceAfter403(t *testing.T) {
	var (
		tokens atomic.Int32
		posts  atomic.Int32
	)

	mux := http.NewServeMux()

	mux.HandleFunc("/csrf/token", func(w http.ResponseWriter, r *http.Request) {
		n := tokens.Add(1)

		if n == 1 {
			w.Write([]byte(`{"csrf_token":"stale"}`))
		} else {
			w.Write([]byte(`{"csrf_token":"fresh"}`))
		}
	})

	mux.HandleFunc("/onboarding/configure", func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)

		if r.Header.Get("X-CSRF-Token") != "fresh" {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		w.Write([]byte(`{"stored_services":[],"message":"ok"}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(srv.URL, srv.Client(), zap.NewNop())

	err := client.post(context.Background(), "/onboarding/configure", map[string]string{}, nil)

	if err != nil {
		t.Fatal(err)
	}

	if posts.Load() != 2 || tokens.Load() != 2 {
		t.Fatalf("expected exactly one retry with one refreshed token, got posts=%d tokens=%d", posts.Load(), tokens.Load())
	}
}

func TestPostSecond403IsTerminal(t *testing.T) {
	mux := http.NewServeMux()

	mux.HandleFunc("/csrf/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"csrf_token":"rejected"}`))
	})

	var posts atomic.Int32

	mux.HandleFunc("/onboarding/configure", func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(srv.URL, srv.Client(), zap.NewNop())

	err := client.post(context.Background(), "/onboarding/configure", map[string]string{}, nil)

	if !errors.Is(err, ErrAuthRetryExhausted) {
		t.Fatalf("expected ErrAuthRetryExhausted, got %v", err)
	}

	if posts.Load() != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", posts.Load())
	}
}

func TestGetBypassesToken(t *testing.T) {
	mux := http.NewServeMux()

	var tokenFetched atomic.Bool

	mux.HandleFunc("/csrf/token", func(w http.ResponseWriter, r *http.Request) {
		tokenFetched.Store(true)
		w.Write([]byte(`{"csrf_token":"tok"}`))
	})

	mux.HandleFunc("/services", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRF-Token") != "" {
			t.Error("GET carried a csrf token")
		}

		w.Write([]byte(`[]`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(srv.URL, srv.Client(), zap.NewNop())

	if _, err := client.Services(context.Background()); err != nil {
		t.Fatal(err)
	}

	if tokenFetched.Load() {
		t.Fatal("GET triggered a token fetch")
	}
}

package onboarding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"onerouter/envparser"
	"onerouter/types"
	"onerouter/upstream"

	"github.com/infinitybotlist/eureka/crypto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 9})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skip("redis not available:", err)
	}

	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})

	return rdb
}

func testGateway(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/csrf/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"csrf_token":"tok"}`))
	})

	mux.HandleFunc("/services", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"svc1","service_name":"razorpay","environment":"test"}]`))
	})

	mux.HandleFunc("/services/razorpay/environments", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"test":{"configured":true},"live":{"configured":false}}`))
	})

	mux.HandleFunc("/onboarding/configure", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stored_services":[{"service_name":"razorpay","status":"connected","credential_id":"cred1"}],"message":"Successfully connected 1 services"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func testFlow(t *testing.T) *Flow {
	rdb := testRedis(t)
	srv := testGateway(t)

	return &Flow{
		Sessions: &SessionStore{Redis: rdb, TTL: time.Minute},
		Gateway:  upstream.New(srv.URL, srv.Client(), zap.NewNop()),
		Redis:    rdb,
		Logger:   zap.NewNop(),
	}
}

func TestFlowForwardPath(t *testing.T) {
	flow := testFlow(t)
	ctx := context.Background()
	userID := crypto.RandString(16)

	state, err := flow.State(ctx, userID)

	if err != nil || state != StateCheckExisting {
		t.Fatalf("expected fresh flow in check_existing, got %v %v", state, err)
	}

	existing, err := flow.CheckExisting(ctx, userID)

	if err != nil {
		t.Fatal(err)
	}

	if !existing.HasServices || existing.Mode != types.ModeTest {
		t.Fatalf("unexpected posture: %+v", existing)
	}

	parsed, err := flow.Upload(ctx, userID, "creds.env", []byte("RAZORPAY_KEY_ID=a\nRAZORPAY_KEY_SECRET=b\n"))

	if err != nil {
		t.Fatal(err)
	}

	if parsed.SessionID == "" || len(parsed.DetectedServices) != 1 {
		t.Fatalf("unexpected parse response: %+v", parsed)
	}

	state, _ = flow.State(ctx, userID)

	if state != StateReview {
		t.Fatalf("expected review after upload, got %v", state)
	}

	resp, err := flow.Commit(ctx, userID, types.ConfigureRequest{
		Services:  []types.ServiceConfig{{ServiceName: "razorpay"}},
		SessionID: parsed.SessionID,
	})

	if err != nil {
		t.Fatal(err)
	}

	if len(resp.StoredServices) != 1 {
		t.Fatalf("unexpected commit response: %+v", resp)
	}

	state, _ = flow.State(ctx, userID)

	if state != StateComplete {
		t.Fatalf("expected complete after commit, got %v", state)
	}

	// The session is referenced exactly once, then deleted
	_, err = flow.Sessions.Get(ctx, parsed.SessionID, userID)

	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected committed session to be gone, got %v", err)
	}
}

func TestFlowUploadFailureKeepsState(t *testing.T) {
	flow := testFlow(t)
	ctx := context.Background()
	userID := crypto.RandString(16)

	_, err := flow.Upload(ctx, userID, "creds.env", []byte("NOTHING_RECOGNIZED=1\n"))

	if !errors.Is(err, envparser.ErrNoServicesDetected) {
		t.Fatalf("expected ErrNoServicesDetected, got %v", err)
	}

	state, _ := flow.State(ctx, userID)

	if state != StateCheckExisting {
		t.Fatalf("failed upload must not advance the flow, got %v", state)
	}
}

func TestFlowRejectsReentrantUpload(t *testing.T) {
	flow := testFlow(t)
	ctx := context.Background()
	userID := crypto.RandString(16)

	// Simulate a pending operation
	if err := flow.Redis.SetNX(ctx, lockKeyPrefix+userID, "1", time.Minute).Err(); err != nil {
		t.Fatal(err)
	}

	_, err := flow.Upload(ctx, userID, "creds.env", []byte("RAZORPAY_KEY_ID=a\n"))

	if !errors.Is(err, ErrOperationInFlight) {
		t.Fatalf("expected ErrOperationInFlight, got %v", err)
	}
}

func TestFlowCommitUnknownSession(t *testing.T) {
	flow := testFlow(t)
	ctx := context.Background()
	userID := crypto.RandString(16)

	parsed, err := flow.Upload(ctx, userID, "creds.env", []byte("RAZORPAY_KEY_ID=a\nRAZORPAY_KEY_SECRET=b\n"))

	if err != nil {
		t.Fatal(err)
	}

	_, err = flow.Commit(ctx, userID, types.ConfigureRequest{
		Services:  []types.ServiceConfig{{ServiceName: "razorpay"}},
		SessionID: "not-" + parsed.SessionID,
	})

	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestFlowSessionOwnership(t *testing.T) {
	flow := testFlow(t)
	ctx := context.Background()

	parsed, err := flow.Upload(ctx, "owner", "creds.env", []byte("RAZORPAY_KEY_ID=a\nRAZORPAY_KEY_SECRET=b\n"))

	if err != nil {
		t.Fatal(err)
	}

	_, err = flow.Sessions.Get(ctx, parsed.SessionID, "intruder")

	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("foreign session access must look expired, got %v", err)
	}
}

func TestFlowDiscardReturnsToUpload(t *testing.T) {
	flow := testFlow(t)
	ctx := context.Background()
	userID := crypto.RandString(16)

	parsed, err := flow.Upload(ctx, userID, "creds.env", []byte("RAZORPAY_KEY_ID=a\nRAZORPAY_KEY_SECRET=b\n"))

	if err != nil {
		t.Fatal(err)
	}

	if err := flow.Discard(ctx, userID); err != nil {
		t.Fatal(err)
	}

	state, _ := flow.State(ctx, userID)

	if state != StateUpload {
		t.Fatalf("expected upload after discard, got %v", state)
	}

	_, err = flow.Sessions.Get(ctx, parsed.SessionID, userID)

	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("discarded session must be gone, got %v", err)
	}
}

func TestFlowCommitSkipsUnsupported(t *testing.T) {
	flow := testFlow(t)
	ctx := context.Background()
	userID := crypto.RandString(16)

	parsed, err := flow.Upload(ctx, userID, "creds.env", []byte("RAZORPAY_KEY_ID=a\nRAZORPAY_KEY_SECRET=b\nTWILIO_ACCOUNT_SID=x\nTWILIO_AUTH_TOKEN=y\n"))

	if err != nil {
		t.Fatal(err)
	}

	resp, err := flow.Commit(ctx, userID, types.ConfigureRequest{
		Services: []types.ServiceConfig{
			{ServiceName: "razorpay"},
			{ServiceName: "twilio"},
		},
		SessionID: parsed.SessionID,
	})

	if err != nil {
		t.Fatal(err)
	}

	// Only the supported subset reaches the gateway; the stub stores one
	if len(resp.StoredServices) != 1 {
		t.Fatalf("unexpected commit response: %+v", resp)
	}
}

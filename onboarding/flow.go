package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"onerouter/envparser"
	"onerouter/types"
	"onerouter/upstream"

	"github.com/infinitybotlist/eureka/jsonimpl"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Onboarding moves strictly forward: check-existing, upload, review,
// complete. The one backwards edge is review back to upload, which discards
// the staged session and requires a fresh parse.
type FlowState string

const (
	StateCheckExisting FlowState = "check_existing"
	StateUpload        FlowState = "upload"
	StateReview        FlowState = "review"
	StateComplete      FlowState = "complete"
)

const (
	flowKeyPrefix = "onboarding_flow:"
	lockKeyPrefix = "onboarding_inflight:"

	flowRecordTTL = 24 * time.Hour
	lockTTL       = 30 * time.Second
)

// Returned when a parse or commit is requested while another is pending for
// the same user. Re-entrant calls are rejected, not queued.
var ErrOperationInFlight = errors.New("another parse or commit is already in progress")

// An operation was requested from a state that does not allow it
type TransitionError struct {
	From FlowState
	Op   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from the %s state", e.Op, e.From)
}

type Flow struct {
	Sessions *SessionStore
	Gateway  *upstream.Client
	Redis    *redis.Client
	Logger   *zap.Logger

	// Optional pre-commit credential verification hook; nil disables it
	VerifyCredentials func(ctx context.Context, serviceName string, creds map[string]string) error
}

type flowRecord struct {
	State     FlowState `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
}

func (f *Flow) record(ctx context.Context, userID string) (flowRecord, error) {
	payload, err := f.Redis.Get(ctx, flowKeyPrefix+userID).Bytes()

	if errors.Is(err, redis.Nil) {
		return flowRecord{State: StateCheckExisting}, nil
	}

	if err != nil {
		return flowRecord{}, err
	}

	var rec flowRecord

	if err := jsonimpl.Unmarshal(payload, &rec); err != nil {
		return flowRecord{}, err
	}

	return rec, nil
}

func (f *Flow) saveRecord(ctx context.Context, userID string, rec flowRecord) error {
	payload, err := jsonimpl.Marshal(rec)

	if err != nil {
		return err
	}

	return f.Redis.Set(ctx, flowKeyPrefix+userID, payload, flowRecordTTL).Err()
}

// State reports the user's current flow state
func (f *Flow) State(ctx context.Context, userID string) (FlowState, error) {
	rec, err := f.record(ctx, userID)
	return rec.State, err
}

// lock rejects re-entrant parse/commit calls for the same user
func (f *Flow) lock(ctx context.Context, userID string) (func(), error) {
	ok, err := f.Redis.SetNX(ctx, lockKeyPrefix+userID, "1", lockTTL).Result()

	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrOperationInFlight
	}

	return func() {
		f.Redis.Del(ctx, lockKeyPrefix+userID)
	}, nil
}

// CheckExisting queries the gateway for already-connected integrations and
// their per-environment credential status, deriving the account's overall
// environment posture. No session is created here. Per-service lookups are
// independent reads and fan out concurrently.
func (f *Flow) CheckExisting(ctx context.Context, userID string) (*types.ExistingServicesResponse, error) {
	services, err := f.Gateway.Services(ctx)

	if err != nil {
		return nil, err
	}

	existing := make([]types.ExistingService, len(services))

	g, gctx := errgroup.WithContext(ctx)

	for i, svc := range services {
		i, svc := i, svc

		g.Go(func() error {
			status, err := f.Gateway.ServiceEnvironments(gctx, svc.ServiceName)

			if err != nil {
				return err
			}

			existing[i] = types.ExistingService{
				ServiceName:  svc.ServiceName,
				Environment:  svc.Environment,
				Environments: *status,
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	rec, err := f.record(ctx, userID)

	if err != nil {
		return nil, err
	}

	if rec.State == StateCheckExisting {
		if err := f.saveRecord(ctx, userID, flowRecord{State: StateUpload}); err != nil {
			return nil, err
		}
	}

	return &types.ExistingServicesResponse{
		Services:    existing,
		HasServices: len(existing) > 0,
		Mode:        upstream.DeriveMode(services),
	}, nil
}

// Upload parses an env file and stages the result in a fresh session. On
// success the flow moves to review; on failure it stays in upload with a
// typed error for the caller. Uploading from review discards the previous
// session first.
func (f *Flow) Upload(ctx context.Context, userID string, filename string, content []byte) (*types.ParseResponse, error) {
	rec, err := f.record(ctx, userID)

	if err != nil {
		return nil, err
	}

	if rec.State != StateUpload && rec.State != StateReview && rec.State != StateCheckExisting {
		return nil, &TransitionError{From: rec.State, Op: "upload"}
	}

	unlock, err := f.lock(ctx, userID)

	if err != nil {
		return nil, err
	}

	defer unlock()

	res, err := envparser.Parse(filename, content)

	if err != nil {
		return nil, err
	}

	// Re-upload from review discards the old session and requires this
	// fresh parse
	if rec.SessionID != "" {
		if err := f.Sessions.Delete(ctx, rec.SessionID); err != nil {
			f.Logger.Warn("Failed to discard replaced session", zap.Error(err), zap.String("user_id", userID))
		}
	}

	sess, err := f.Sessions.Create(ctx, userID, res)

	if err != nil {
		return nil, err
	}

	err = f.saveRecord(ctx, userID, flowRecord{State: StateReview, SessionID: sess.ID})

	if err != nil {
		return nil, err
	}

	return &types.ParseResponse{
		SessionID:        sess.ID,
		DetectedServices: res.Detected,
		ParsedVariables:  res.Vars.Len(),
		Status:           "success",
		Errors:           res.SyntaxErrors,
	}, nil
}

// Commit maps the supported subset of the reviewed services to commit
// records and submits the whole batch plus the session id in one gateway
// call. The gateway applies the batch atomically; a failure here is terminal
// and sends the flow back to upload. On success the session is deleted and
// the flow completes.
func (f *Flow) Commit(ctx context.Context, userID string, req types.ConfigureRequest) (*types.ConfigureResponse, error) {
	rec, err := f.record(ctx, userID)

	if err != nil {
		return nil, err
	}

	if rec.State != StateReview {
		return nil, &TransitionError{From: rec.State, Op: "commit"}
	}

	if rec.SessionID != req.SessionID {
		return nil, ErrSessionExpired
	}

	unlock, err := f.lock(ctx, userID)

	if err != nil {
		return nil, err
	}

	defer unlock()

	sess, err := f.Sessions.Get(ctx, req.SessionID, userID)

	if err != nil {
		return nil, err
	}

	batch, err := f.buildCommitBatch(ctx, sess, req.Services)

	if err != nil {
		return nil, err
	}

	resp, err := f.Gateway.ConfigureServices(ctx, types.ConfigureRequest{
		Services:  batch,
		SessionID: req.SessionID,
	})

	if err != nil {
		// Terminal: the user restarts from upload. The session stays staged
		// until its TTL in case the commit is retried out of band.
		if serr := f.saveRecord(ctx, userID, flowRecord{State: StateUpload}); serr != nil {
			f.Logger.Error("Failed to reset flow after commit failure", zap.Error(serr), zap.String("user_id", userID))
		}

		return nil, err
	}

	if err := f.Sessions.Delete(ctx, req.SessionID); err != nil {
		f.Logger.Warn("Failed to delete committed session", zap.Error(err), zap.String("user_id", userID))
	}

	err = f.saveRecord(ctx, userID, flowRecord{State: StateComplete})

	if err != nil {
		return nil, err
	}

	return resp, nil
}

// buildCommitBatch keeps only supported providers, fills credentials from
// the staged variables where the caller sent none and validates each record
func (f *Flow) buildCommitBatch(ctx context.Context, sess *Session, selection []types.ServiceConfig) ([]types.ServiceConfig, error) {
	vars := sess.VarMap()

	var batch []types.ServiceConfig

	for _, svc := range selection {
		if !envparser.Supported(svc.ServiceName) {
			f.Logger.Info("Skipping unsupported service at commit", zap.String("service", svc.ServiceName))
			continue
		}

		creds := svc.Credentials

		if len(creds) == 0 {
			creds = envparser.CredentialsFor(svc.ServiceName, vars)
		}

		if errs := envparser.ValidateCredentials(svc.ServiceName, creds); len(errs) > 0 {
			return nil, &envparser.ValidationError{
				Rule:    "credentials",
				Message: "missing required credentials for " + svc.ServiceName,
				Context: errs,
			}
		}

		if f.VerifyCredentials != nil {
			if err := f.VerifyCredentials(ctx, svc.ServiceName, creds); err != nil {
				return nil, fmt.Errorf("credential verification failed for %s: %w", svc.ServiceName, err)
			}
		}

		batch = append(batch, types.ServiceConfig{
			ServiceName: svc.ServiceName,
			Credentials: creds,
			Features:    svc.Features,
			Metadata:    svc.Metadata,
		})
	}

	if len(batch) == 0 {
		return nil, envparser.ErrNoServicesDetected
	}

	return batch, nil
}

// Discard drops the staged session and returns the flow from review to
// upload
func (f *Flow) Discard(ctx context.Context, userID string) error {
	rec, err := f.record(ctx, userID)

	if err != nil {
		return err
	}

	if rec.State != StateReview {
		return &TransitionError{From: rec.State, Op: "discard"}
	}

	if rec.SessionID != "" {
		if err := f.Sessions.Delete(ctx, rec.SessionID); err != nil {
			return err
		}
	}

	return f.saveRecord(ctx, userID, flowRecord{State: StateUpload})
}

package upstream

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"onerouter/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SwitchCoordinator moves a set of services between credential environments
// as one operation with observable all-or-nothing semantics: the batch
// mutation is issued first, then a separate verification call confirms the
// resulting state for exactly the requested ids. Anything short of full
// confirmation surfaces as a PartialOrFailedSwitchError; a partial switch is
// never reported as success and no client-side rollback is attempted (the
// gateway owns atomicity).
type SwitchCoordinator struct {
	client *Client
	logger *zap.Logger

	mu sync.Mutex
	// mode is the local view of the account environment. It is set
	// tentatively at the start of a switch and reconciled back to
	// server-derived truth after every attempt.
	mode    types.Mode
	pending bool
}

func NewSwitchCoordinator(client *Client, logger *zap.Logger) *SwitchCoordinator {
	return &SwitchCoordinator{
		client: client,
		logger: logger,
		mode:   types.ModeUnknown,
	}
}

// Mode returns the current local mode plus whether it is a tentative value
// awaiting verification
func (s *SwitchCoordinator) Mode() types.ModeResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	return types.ModeResponse{
		Mode:    s.mode,
		Pending: s.pending,
	}
}

// RefreshMode recomputes the mode from a fresh services list
func (s *SwitchCoordinator) RefreshMode(ctx context.Context) (types.Mode, error) {
	services, err := s.client.Services(ctx)

	if err != nil {
		return types.ModeUnknown, err
	}

	mode := DeriveMode(services)

	s.mu.Lock()
	s.mode = mode
	s.pending = false
	s.mu.Unlock()

	return mode, nil
}

// SwitchAll moves the given services to the target environment. An empty id
// list is a no-op that succeeds trivially.
func (s *SwitchCoordinator) SwitchAll(ctx context.Context, target types.Environment, serviceIDs []string) (*types.SwitchOutcome, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("invalid target environment %q", target)
	}

	if len(serviceIDs) == 0 {
		return &types.SwitchOutcome{
			Environment: target,
			Mode:        s.Mode().Mode,
		}, nil
	}

	if err := s.preflight(ctx, target, serviceIDs); err != nil {
		return nil, err
	}

	// Tentative value so the UI does not flicker during the round trip.
	// Reverted to recomputed server truth if the switch fails.
	s.mu.Lock()
	s.mode = types.Mode(target)
	s.pending = true
	s.mu.Unlock()

	if err := s.client.SwitchAllEnvironments(ctx, target, serviceIDs); err != nil {
		s.reconcile(ctx)

		return nil, &PartialOrFailedSwitchError{
			Environment: target,
			FailedCount: len(serviceIDs),
			Err:         err,
		}
	}

	// The mutation must complete before verification is issued; the two are
	// a sequential dependency, never parallel
	result, err := s.client.VerifyEnvironment(ctx, target, serviceIDs)

	if err != nil {
		s.reconcile(ctx)

		return nil, &PartialOrFailedSwitchError{
			Environment: target,
			FailedCount: len(serviceIDs),
			Err:         err,
		}
	}

	if result.FailedCount > 0 || result.SwitchedCount != len(serviceIDs) {
		s.logger.Warn("Environment switch incomplete",
			zap.String("target", string(target)),
			zap.Int("switched", result.SwitchedCount),
			zap.Int("failed", result.FailedCount),
		)

		var failed []types.VerifiedService

		for _, svc := range result.Services {
			if !svc.Switched {
				failed = append(failed, svc)
			}
		}

		s.reconcile(ctx)

		return nil, &PartialOrFailedSwitchError{
			Environment:   target,
			SwitchedCount: result.SwitchedCount,
			FailedCount:   result.FailedCount,
			Failed:        failed,
		}
	}

	mode := s.reconcile(ctx)

	return &types.SwitchOutcome{
		Environment:   target,
		SwitchedCount: result.SwitchedCount,
		Services:      result.Services,
		Mode:          mode,
	}, nil
}

// preflight rejects the whole request if any target service lacks configured
// credentials for the target environment. A service is never requested into
// an environment it cannot actually operate in. Ids the gateway does not
// report at all are left for the gateway itself to reject.
func (s *SwitchCoordinator) preflight(ctx context.Context, target types.Environment, serviceIDs []string) error {
	services, err := s.client.Services(ctx)

	if err != nil {
		return err
	}

	names := make(map[string]string, len(services))

	for _, svc := range services {
		names[svc.ID] = svc.ServiceName
	}

	var (
		mu           sync.Mutex
		unconfigured []string
	)

	g, gctx := errgroup.WithContext(ctx)

	for _, id := range serviceIDs {
		name, ok := names[id]

		if !ok {
			continue
		}

		id, name := id, name

		g.Go(func() error {
			status, err := s.client.ServiceEnvironments(gctx, name)

			if err != nil {
				return err
			}

			info := status.Test

			if target == types.EnvironmentLive {
				info = status.Live
			}

			if !info.Configured {
				mu.Lock()
				unconfigured = append(unconfigured, id)
				mu.Unlock()
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if len(unconfigured) > 0 {
		sort.Strings(unconfigured)

		return &UnconfiguredServicesError{
			Environment: target,
			ServiceIDs:  unconfigured,
		}
	}

	return nil
}

// reconcile replaces the tentative mode with one derived from a fresh
// services fetch. If the fetch itself fails the mode degrades to unknown
// rather than keeping a possibly wrong tentative value.
func (s *SwitchCoordinator) reconcile(ctx context.Context) types.Mode {
	mode, err := s.RefreshMode(ctx)

	if err != nil {
		s.logger.Error("Failed to reconcile environment mode", zap.Error(err))

		s.mu.Lock()
		s.mode = types.ModeUnknown
		s.pending = false
		s.mu.Unlock()

		return types.ModeUnknown
	}

	return mode
}

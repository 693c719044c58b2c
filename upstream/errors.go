package upstream

import (
	"errors"
	"strconv"

	"onerouter/types"
)

// Returned when a mutating call gets a second consecutive 403 after a token
// refresh. Not retried further.
var ErrAuthRetryExhausted = errors.New("authorization retry exhausted: csrf token rejected twice")

// A non-2xx response from the gateway
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return "gateway returned status " + strconv.Itoa(e.Status) + ": " + e.Body
}

// PartialOrFailedSwitchError is returned whenever a switch-all operation
// cannot be confirmed as fully applied: the mutation failed, verification was
// unreachable, or verification reported a partial result. Failed carries
// whatever per-service detail was obtained so the caller can show exactly
// which services did not move.
type PartialOrFailedSwitchError struct {
	Environment   types.Environment
	SwitchedCount int
	FailedCount   int
	Failed        []types.VerifiedService
	Err           error
}

func (e *PartialOrFailedSwitchError) Error() string {
	msg := "switch to " + string(e.Environment) + " incomplete: " +
		strconv.Itoa(e.SwitchedCount) + " switched, " + strconv.Itoa(e.FailedCount) + " failed"

	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}

	return msg
}

func (e *PartialOrFailedSwitchError) Unwrap() error {
	return e.Err
}

// FailedServiceIDs lists the ids of the services that did not reach the
// target environment, if verification detail was obtained
func (e *PartialOrFailedSwitchError) FailedServiceIDs() []string {
	var ids []string

	for _, svc := range e.Failed {
		ids = append(ids, svc.ID)
	}

	return ids
}

// UnconfiguredServicesError rejects a switch request before any mutation is
// issued: the listed services have no credentials configured for the target
// environment and must never be moved into it.
type UnconfiguredServicesError struct {
	Environment types.Environment
	ServiceIDs  []string
}

func (e *UnconfiguredServicesError) Error() string {
	return strconv.Itoa(len(e.ServiceIDs)) + " service(s) have no " + string(e.Environment) + " credentials configured"
}

package types

import "time"

// Environment is the credential context a connected service operates under.
type Environment string

const (
	EnvironmentTest Environment = "test"
	EnvironmentLive Environment = "live"
)

func (e Environment) Valid() bool {
	return e == EnvironmentTest || e == EnvironmentLive
}

// Mode is the account-wide environment posture derived from the connected
// services. It is always recomputed from server data, never cached across
// switch attempts.
type Mode string

const (
	ModeUnknown Mode = "unknown"
	ModeTest    Mode = "test"
	ModeLive    Mode = "live"
	ModeMixed   Mode = "mixed"
)

// A service as reported by the upstream gateway
type GatewayService struct {
	ID          string      `json:"id" description:"Gateway-assigned service id"`
	ServiceName string      `json:"service_name" description:"Canonical provider slug"`
	Environment Environment `json:"environment" description:"Environment the service currently operates under"`
}

type EnvironmentInfo struct {
	Configured bool       `json:"configured" description:"Whether credentials exist for this environment at all"`
	LastUsed   *time.Time `json:"last_used,omitempty" description:"When credentials for this environment were last used"`
}

// Per-service environment status as returned by the gateway
type EnvironmentStatus struct {
	Test EnvironmentInfo `json:"test"`
	Live EnvironmentInfo `json:"live"`
}

type SwitchRequest struct {
	Environment Environment `json:"environment" validate:"required,oneof=test live"`
	ServiceIDs  []string    `json:"service_ids" validate:"dive,required"`
}

// Per-service verification detail from the gateway
type VerifiedService struct {
	ID          string      `json:"id" description:"Gateway-assigned service id"`
	ServiceName string      `json:"service_name,omitempty" description:"Canonical provider slug"`
	Environment Environment `json:"environment" description:"Environment the service is in after the switch attempt"`
	Switched    bool        `json:"switched" description:"Whether this service reached the target environment"`
}

type VerifyResult struct {
	AllSwitched   bool              `json:"all_switched"`
	SwitchedCount int               `json:"switched_count"`
	FailedCount   int               `json:"failed_count"`
	Services      []VerifiedService `json:"services"`
}

// The outcome of a completed switch-all operation. A SwitchOutcome is only
// produced for full success; anything else surfaces as an error carrying the
// per-service detail instead.
type SwitchOutcome struct {
	Environment   Environment       `json:"environment" description:"The target environment all requested services are now in"`
	SwitchedCount int               `json:"switched_count"`
	Services      []VerifiedService `json:"services"`
	Mode          Mode              `json:"mode" description:"Account mode recomputed from the services list after the switch"`
}

type ModeResponse struct {
	Mode    Mode `json:"mode"`
	Pending bool `json:"pending" description:"True while a switch is awaiting verification; the mode value is tentative"`
}

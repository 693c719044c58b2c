package types

// Whether a detected provider can actually be connected through the gateway
type ServiceStatus string

const (
	ServiceStatusSupported   ServiceStatus = "supported"
	ServiceStatusUnsupported ServiceStatus = "unsupported"
)

// A provider integration inferred from credential variable names in an
// uploaded env file. Immutable once created by the parser.
type DetectedService struct {
	Name     string         `json:"name" description:"Canonical provider slug"`
	Status   ServiceStatus  `json:"status" description:"Whether this provider can be connected"`
	Keys     []string       `json:"keys" description:"Credential variable names matched in the file, in file order"`
	Features []string       `json:"features" description:"Capability tags derived from the matched keys"`
	Metadata map[string]any `json:"metadata,omitempty" description:"Provider-specific hints carried through to commit unchanged"`
}

type ParseResponse struct {
	SessionID        string            `json:"session_id" description:"Staging session id, valid until committed or expired"`
	DetectedServices []DetectedService `json:"detected_services"`
	ParsedVariables  int               `json:"parsed_variables"`
	Status           string            `json:"status"`
	Errors           map[string]string `json:"errors,omitempty" description:"Per-line syntax errors, if any"`
}

// A single service selected for commit during review
type ServiceConfig struct {
	ServiceName string            `json:"service_name" validate:"required,notblank,nospaces"`
	Credentials map[string]string `json:"credentials" description:"Credential variables. Filled from the staging session when empty"`
	Features    []string          `json:"features"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
}

type ConfigureRequest struct {
	Services  []ServiceConfig `json:"services" validate:"required,min=1,dive"`
	SessionID string          `json:"session_id" validate:"required"`
}

type StoredService struct {
	ServiceName  string `json:"service_name"`
	Status       string `json:"status"`
	CredentialID string `json:"credential_id"`
}

type ConfigureResponse struct {
	StoredServices []StoredService `json:"stored_services"`
	Message        string          `json:"message"`
}

// One already-connected integration, enriched with its per-environment status
type ExistingService struct {
	ServiceName  string            `json:"service_name"`
	Environment  Environment       `json:"environment"`
	Environments EnvironmentStatus `json:"environments"`
}

type ExistingServicesResponse struct {
	Services    []ExistingService `json:"services"`
	HasServices bool              `json:"has_services"`
	Mode        Mode              `json:"mode" description:"Account environment posture: test, live or mixed"`
}

package upstream

import (
	"onerouter/types"

	mapset "github.com/deckarep/golang-set/v2"
)

// DeriveMode computes the account-wide environment posture from a services
// list: no services is neutral, one distinct environment is that environment,
// more than one is mixed. Pure; callers must feed it authoritative server
// data, never a remembered value.
func DeriveMode(services []types.GatewayService) types.Mode {
	envs := mapset.NewThreadUnsafeSet[types.Environment]()

	for _, svc := range services {
		envs.Add(svc.Environment)
	}

	switch envs.Cardinality() {
	case 0:
		return types.ModeUnknown
	case 1:
		env, _ := envs.Pop()
		return types.Mode(env)
	default:
		return types.ModeMixed
	}
}

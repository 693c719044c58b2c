package environments

import (
	"onerouter/api"
	"onerouter/routes/environments/endpoints/get_environment_mode"
	"onerouter/routes/environments/endpoints/get_service_environments"
	"onerouter/routes/environments/endpoints/switch_all_environments"

	"github.com/go-chi/chi/v5"
	"github.com/infinitybotlist/eureka/uapi"
)

const (
	tagName = "Environments"
)

type Router struct{}

func (b Router) Tag() (string, string) {
	return tagName, "These API endpoints are related to test/live environment management"
}

func (b Router) Routes(r *chi.Mux) {
	uapi.Route{
		Pattern: "/environments/mode",
		OpId:    "get_environment_mode",
		Method:  uapi.GET,
		Docs:    get_environment_mode.Docs,
		Handler: get_environment_mode.Route,
		Auth: []uapi.AuthType{
			{
				Type: api.TargetTypeUser,
			},
		},
	}.Route(r)

	uapi.Route{
		Pattern: "/environments/services/{name}",
		OpId:    "get_service_environments",
		Method:  uapi.GET,
		Docs:    get_service_environments.Docs,
		Handler: get_service_environments.Route,
		Auth: []uapi.AuthType{
			{
				Type: api.TargetTypeUser,
			},
		},
	}.Route(r)

	uapi.Route{
		Pattern: "/environments/switch-all",
		OpId:    "switch_all_environments",
		Method:  uapi.POST,
		Docs:    switch_all_environments.Docs,
		Handler: switch_all_environments.Route,
		Auth: []uapi.AuthType{
			{
				Type: api.TargetTypeUser,
			},
		},
	}.Route(r)
}

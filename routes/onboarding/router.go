package onboarding

import (
	"onerouter/api"
	"onerouter/routes/onboarding/endpoints/check_existing_services"
	"onerouter/routes/onboarding/endpoints/configure_services"
	"onerouter/routes/onboarding/endpoints/parse_env_upload"

	"github.com/go-chi/chi/v5"
	"github.com/infinitybotlist/eureka/uapi"
)

const (
	tagName = "Onboarding"
)

type Router struct{}

func (b Router) Tag() (string, string) {
	return tagName, "These API endpoints are related to service credential onboarding"
}

func (b Router) Routes(r *chi.Mux) {
	uapi.Route{
		Pattern: "/onboarding/existing-services",
		OpId:    "check_existing_services",
		Method:  uapi.GET,
		Docs:    check_existing_services.Docs,
		Handler: check_existing_services.Route,
		Auth: []uapi.AuthType{
			{
				Type: api.TargetTypeUser,
			},
		},
	}.Route(r)

	uapi.Route{
		Pattern: "/onboarding/parse",
		OpId:    "parse_env_upload",
		Method:  uapi.POST,
		Docs:    parse_env_upload.Docs,
		Handler: parse_env_upload.Route,
		Auth: []uapi.AuthType{
			{
				Type: api.TargetTypeUser,
			},
		},
	}.Route(r)

	uapi.Route{
		Pattern: "/onboarding/configure",
		OpId:    "configure_services",
		Method:  uapi.POST,
		Docs:    configure_services.Docs,
		Handler: configure_services.Route,
		Auth: []uapi.AuthType{
			{
				Type: api.TargetTypeUser,
			},
		},
	}.Route(r)
}

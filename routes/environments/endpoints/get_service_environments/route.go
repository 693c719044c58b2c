package get_service_environments

import (
	"errors"
	"net/http"

	"onerouter/state"
	"onerouter/types"
	"onerouter/upstream"

	"github.com/go-chi/chi/v5"
	docs "github.com/infinitybotlist/eureka/doclib"
	"github.com/infinitybotlist/eureka/uapi"
	"go.uber.org/zap"
)

func Docs() *docs.Doc {
	return &docs.Doc{
		Summary:     "Get Service Environments",
		Description: "Returns the test and live configuration status for one connected service.",
		Resp:        types.EnvironmentStatus{},
		Params: []docs.Parameter{
			{
				Name:        "name",
				Description: "Canonical service name, e.g. razorpay",
				Required:    true,
				In:          "path",
				Schema:      docs.IdSchema,
			},
		},
	}
}

func Route(d uapi.RouteData, r *http.Request) uapi.HttpResponse {
	name := chi.URLParam(r, "name")

	if name == "" {
		return uapi.DefaultResponse(http.StatusBadRequest)
	}

	status, err := state.Gateway.ServiceEnvironments(d.Context, name)

	if err != nil {
		var herr *upstream.HTTPError

		if errors.As(err, &herr) && herr.Status == http.StatusNotFound {
			return uapi.DefaultResponse(http.StatusNotFound)
		}

		state.Logger.Error("Error fetching service environments", zap.Error(err), zap.String("service", name))
		return uapi.HttpResponse{
			Status: http.StatusBadGateway,
			Json:   types.ApiError{Message: "The gateway could not be reached. Please try again later."},
		}
	}

	return uapi.HttpResponse{
		Json: status,
	}
}

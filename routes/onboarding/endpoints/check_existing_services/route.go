package check_existing_services

import (
	"net/http"

	"onerouter/state"
	"onerouter/types"

	docs "github.com/infinitybotlist/eureka/doclib"
	"github.com/infinitybotlist/eureka/uapi"
	"go.uber.org/zap"
)

func Docs() *docs.Doc {
	return &docs.Doc{
		Summary:     "Check Existing Services",
		Description: "Returns the services already connected to the gateway along with their per-environment status. A first visit with no services skips straight to the upload step.",
		Resp:        types.ExistingServicesResponse{},
	}
}

func Route(d uapi.RouteData, r *http.Request) uapi.HttpResponse {
	existing, err := state.Flow.CheckExisting(d.Context, d.Auth.ID)

	if err != nil {
		state.Logger.Error("Error checking existing services", zap.Error(err), zap.String("user_id", d.Auth.ID))
		return uapi.HttpResponse{
			Status: http.StatusBadGateway,
			Json:   types.ApiError{Message: "The gateway could not be reached. Please try again later."},
		}
	}

	return uapi.HttpResponse{
		Json: existing,
	}
}

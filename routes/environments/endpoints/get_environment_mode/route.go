package get_environment_mode

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
		Summary:     "Get Environment Mode",
		Description: "Returns the cached account environment posture (test, live or mixed across services). Pass refresh=true to recompute it from the gateway.",
		Resp:        types.ModeResponse{},
		Params: []docs.Parameter{
			{
				Name:        "refresh",
				Description: "Recompute the mode from the gateway instead of serving the cached value",
				In:          "query",
				Schema:      docs.IdSchema,
			},
		},
	}
}

func Route(d uapi.RouteData, r *http.Request) uapi.HttpResponse {
	if r.URL.Query().Get("refresh") == "true" {
		if _, err := state.Switcher.RefreshMode(d.Context); err != nil {
			state.Logger.Error("Error refreshing environment mode", zap.Error(err), zap.String("user_id", d.Auth.ID))
			return uapi.HttpResponse{
				Status: http.StatusBadGateway,
				Json:   types.ApiError{Message: "The gateway could not be reached. Please try again later."},
			}
		}
	}

	return uapi.HttpResponse{
		Json: state.Switcher.Mode(),
	}
}

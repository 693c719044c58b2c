package switch_all_environments

import (
	"errors"
	"net/http"
	"time"

	"onerouter/state"
	"onerouter/types"
	"onerouter/upstream"

	docs "github.com/infinitybotlist/eureka/doclib"
	"github.com/infinitybotlist/eureka/uapi"
	"github.com/infinitybotlist/eureka/ratelimit"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var compiledMessages = uapi.CompileValidationErrors(types.SwitchRequest{})

func Docs() *docs.Doc {
	return &docs.Doc{
		Summary:     "Switch All Environments",
		Description: "Switches the listed services to the target environment and verifies the result against the gateway. If any service fails to switch, the response names it and the reported mode reflects the actual mixed state.",
		Req:         types.SwitchRequest{},
		Resp:        types.SwitchOutcome{},
	}
}

func Route(d uapi.RouteData, r *http.Request) uapi.HttpResponse {
	limit, err := ratelimit.Ratelimit{
		Expiry:      1 * time.Minute,
		MaxRequests: 10,
		Bucket:      "environments",
	}.Limit(d.Context, r)

	if err != nil {
		state.Logger.Error(err)
		return uapi.DefaultResponse(http.StatusInternalServerError)
	}

	if limit.Exceeded {
		return uapi.HttpResponse{
			Json: types.ApiError{
				Message: "You are being ratelimited. Please try again in " + limit.TimeToReset.String(),
			},
			Headers: limit.Headers(),
			Status:  http.StatusTooManyRequests,
		}
	}

	var payload types.SwitchRequest

	hresp, ok := uapi.MarshalReq(r, &payload)

	if !ok {
		return hresp
	}

	// Validate the payload

	err = state.Validator.Struct(payload)

	if err != nil {
		errors := err.(validator.ValidationErrors)
		return uapi.ValidatorErrorResponse(compiledMessages, errors)
	}

	outcome, err := state.Switcher.SwitchAll(d.Context, payload.Environment, payload.ServiceIDs)

	if err != nil {
		var perr *upstream.PartialOrFailedSwitchError
		var uerr *upstream.UnconfiguredServicesError

		switch {
		case errors.As(err, &uerr):
			ctx := map[string]string{}

			for _, id := range uerr.ServiceIDs {
				ctx[id] = "No " + string(uerr.Environment) + " credentials configured"
			}

			return uapi.HttpResponse{
				Status: http.StatusBadRequest,
				Json: types.ApiError{
					Message: uerr.Error(),
					Context: ctx,
				},
			}
		case errors.As(err, &perr):
			ctx := map[string]string{}

			for _, svc := range perr.Failed {
				ctx[svc.ID] = "Failed to switch " + svc.ServiceName
			}

			state.Audit.Record(d.Context, d.Auth.ID, "environments.switch_all", map[string]any{
				"environment":    payload.Environment,
				"switched_count": perr.SwitchedCount,
				"failed_count":   perr.FailedCount,
				"failed_ids":     perr.FailedServiceIDs(),
			})

			return uapi.HttpResponse{
				Status: http.StatusConflict,
				Json: types.ApiError{
					Message: perr.Error(),
					Context: ctx,
				},
			}
		case errors.Is(err, upstream.ErrAuthRetryExhausted):
			state.Logger.Error("Gateway auth exhausted during switch", zap.Error(err), zap.String("user_id", d.Auth.ID))
			return uapi.HttpResponse{
				Status: http.StatusBadGateway,
				Json:   types.ApiError{Message: "The gateway rejected our session. Please try again later."},
			}
		default:
			state.Logger.Error("Error switching environments", zap.Error(err), zap.String("user_id", d.Auth.ID), zap.String("environment", string(payload.Environment)))
			return uapi.DefaultResponse(http.StatusInternalServerError)
		}
	}

	state.Audit.Record(d.Context, d.Auth.ID, "environments.switch_all", map[string]any{
		"environment":    payload.Environment,
		"switched_count": outcome.SwitchedCount,
		"failed_count":   0,
	})

	return uapi.HttpResponse{
		Json: outcome,
	}
}

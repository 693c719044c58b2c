package configure_services

import (
	"errors"
	"net/http"
	"time"

	"onerouter/credcheck"
	"onerouter/envparser"
	"onerouter/onboarding"
	"onerouter/state"
	"onerouter/types"
	"onerouter/upstream"

	docs "github.com/infinitybotlist/eureka/doclib"
	"github.com/infinitybotlist/eureka/uapi"
	"github.com/infinitybotlist/eureka/ratelimit"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var compiledMessages = uapi.CompileValidationErrors(types.ConfigureRequest{})

func Docs() *docs.Doc {
	return &docs.Doc{
		Summary:     "Configure Services",
		Description: "Commits the reviewed services of a staging session to the gateway as one batch. Either every supported service in the selection is stored or none are.",
		Req:         types.ConfigureRequest{},
		Resp:        types.ConfigureResponse{},
	}
}

func Route(d uapi.RouteData, r *http.Request) uapi.HttpResponse {
	limit, err := ratelimit.Ratelimit{
		Expiry:      1 * time.Minute,
		MaxRequests: 5,
		Bucket:      "onboarding",
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

	var payload types.ConfigureRequest

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

	resp, err := state.Flow.Commit(d.Context, d.Auth.ID, payload)

	if err != nil {
		var verr *envparser.ValidationError
		var terr *onboarding.TransitionError
		var herr *upstream.HTTPError

		switch {
		case errors.Is(err, onboarding.ErrSessionExpired):
			return uapi.HttpResponse{
				Status: http.StatusGone,
				Json:   types.ApiError{Message: "Your onboarding session has expired. Please upload your env file again."},
			}
		case errors.As(err, &verr):
			return uapi.HttpResponse{
				Status: http.StatusBadRequest,
				Json:   types.ApiError{Message: verr.Message, Context: verr.Context},
			}
		case errors.Is(err, credcheck.ErrBadCredentials):
			return uapi.HttpResponse{
				Status: http.StatusBadRequest,
				Json:   types.ApiError{Message: err.Error()},
			}
		case errors.Is(err, envparser.ErrNoServicesDetected):
			return uapi.HttpResponse{
				Status: http.StatusBadRequest,
				Json:   types.ApiError{Message: "None of the selected services are supported, so there is nothing to connect."},
			}
		case errors.As(err, &terr):
			return uapi.HttpResponse{
				Status: http.StatusConflict,
				Json:   types.ApiError{Message: err.Error()},
			}
		case errors.Is(err, onboarding.ErrOperationInFlight):
			return uapi.HttpResponse{
				Status: http.StatusConflict,
				Json:   types.ApiError{Message: "Another onboarding operation is still in progress. Please wait for it to finish."},
			}
		case errors.As(err, &herr), errors.Is(err, upstream.ErrAuthRetryExhausted):
			state.Logger.Error("Gateway rejected configure batch", zap.Error(err), zap.String("user_id", d.Auth.ID))

			msg := "The gateway could not store your credentials. Nothing was saved, please try again."

			if state.Config.Meta.UrgentAlert != "" {
				msg += " If this keeps happening, contact " + state.Config.Meta.UrgentAlert
			}

			return uapi.HttpResponse{
				Status: http.StatusBadGateway,
				Json:   types.ApiError{Message: msg},
			}
		default:
			state.Logger.Error("Error committing onboarding session", zap.Error(err), zap.String("user_id", d.Auth.ID))
			return uapi.DefaultResponse(http.StatusInternalServerError)
		}
	}

	var stored = make([]string, len(resp.StoredServices))
	for i, svc := range resp.StoredServices {
		stored[i] = svc.ServiceName
	}

	state.Audit.Record(d.Context, d.Auth.ID, "onboarding.configure", map[string]any{
		"stored_services": stored,
	})

	return uapi.HttpResponse{
		Json: resp,
	}
}

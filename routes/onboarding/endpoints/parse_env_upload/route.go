package parse_env_upload

import (
	"errors"
	"net/http"
	"time"

	"onerouter/envparser"
	"onerouter/onboarding"
	"onerouter/state"
	"onerouter/types"

	docs "github.com/infinitybotlist/eureka/doclib"
	"github.com/infinitybotlist/eureka/uapi"
	"github.com/infinitybotlist/eureka/ratelimit"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type EnvUpload struct {
	Filename string `json:"filename" validate:"required" msg:"A filename is required"`
	Content  string `json:"content" validate:"required" msg:"The file content is required"`
}

var compiledMessages = uapi.CompileValidationErrors(EnvUpload{})

func Docs() *docs.Doc {
	return &docs.Doc{
		Summary:     "Parse Env Upload",
		Description: "Parses an uploaded env file, detects the providers it contains credentials for and stages the variables in a review session. Nothing is committed until the session is configured.",
		Req:         EnvUpload{},
		Resp:        types.ParseResponse{},
	}
}

func Route(d uapi.RouteData, r *http.Request) uapi.HttpResponse {
	limit, err := ratelimit.Ratelimit{
		Expiry:      1 * time.Minute,
		MaxRequests: 10,
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

	var payload EnvUpload

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

	parsed, err := state.Flow.Upload(d.Context, d.Auth.ID, payload.Filename, []byte(payload.Content))

	if err != nil {
		var verr *envparser.ValidationError
		var terr *onboarding.TransitionError

		switch {
		case errors.As(err, &verr):
			return uapi.HttpResponse{
				Status: http.StatusBadRequest,
				Json:   types.ApiError{Message: verr.Message, Context: verr.Context},
			}
		case errors.Is(err, envparser.ErrNoServicesDetected):
			return uapi.HttpResponse{
				Status: http.StatusBadRequest,
				Json:   types.ApiError{Message: "This file doesn't contain credentials for any provider we support. Check that the variable names match your provider's documentation."},
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
		default:
			state.Logger.Error("Error parsing env upload", zap.Error(err), zap.String("user_id", d.Auth.ID), zap.String("filename", payload.Filename))
			return uapi.DefaultResponse(http.StatusInternalServerError)
		}
	}

	var detected = make([]string, len(parsed.DetectedServices))
	for i, svc := range parsed.DetectedServices {
		detected[i] = svc.Name
	}

	state.Audit.Record(d.Context, d.Auth.ID, "onboarding.parse", map[string]any{
		"filename":          payload.Filename,
		"detected_services": detected,
		"parsed_variables":  parsed.ParsedVariables,
	})

	return uapi.HttpResponse{
		Json: parsed,
	}
}

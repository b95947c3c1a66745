// Package server is the HTTP transport over the mediator. It owns exactly
// one mapping rule from handler results to status codes: a success with a
// value renders 200 with the value, a success without a value renders 404,
// a failure renders 400 with either a plain message or per-field errors.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"gatherly/internal/activities"
	"gatherly/internal/domain"
	"gatherly/internal/identity"
	"gatherly/internal/mediator"
	"gatherly/internal/profiles"
	"gatherly/internal/result"
	"gatherly/internal/store"
)

// Config for the HTTP API handler. The mediator is constructed once at
// process start and passed in; the server never builds its own.
type Config struct {
	Mediator       *mediator.Mediator
	Store          store.Store
	Tokens         identity.TokenService
	BasePath       string
	AllowedOrigins []string
	Logger         *log.Logger
}

func (c Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

type apiError struct {
	status  int
	Code    string              `json:"code" example:"bad_request"`
	Message string              `json:"message" example:"Failed to create activity"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, code, message string, fieldErrors map[string][]string) huma.StatusError {
	if code == "" {
		code = strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
	return &apiError{status: status, Code: code, Message: message, Errors: fieldErrors}
}

// New returns an HTTP handler exposing the Gatherly API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Mediator == nil {
		return nil, errors.New("mediator is required")
	}
	if err := cfg.Tokens.Ensure(); err != nil {
		return nil, err
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema-level request errors render as 400 bad_request so the
			// client sees a single recoverable failure class.
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg, nil)
	}

	router := chi.NewRouter()
	router.Use(newCORSMiddleware(cfg.AllowedOrigins))
	router.Use(newAuthMiddleware(basePath, cfg.Tokens))
	hcfg := huma.DefaultConfig("Gatherly API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerActivities(group, cfg)
	registerProfiles(group, cfg)
	registerAccount(group, cfg)

	return router, nil
}

// resultError translates a Result into the transport's status mapping.
// It returns nil when the result should render a 2xx.
func resultError[T any](res result.Result[T]) huma.StatusError {
	if !res.IsSuccess() {
		if res.IsValidationError() {
			fieldErrors := map[string][]string{}
			for _, v := range res.Violations() {
				fieldErrors[v.Field] = append(fieldErrors[v.Field], v.Message)
			}
			return newAPIError(http.StatusBadRequest, "validation_failed", res.Message(), fieldErrors)
		}
		return newAPIError(http.StatusBadRequest, "bad_request", res.Message(), nil)
	}
	if !res.HasValue() {
		return newAPIError(http.StatusNotFound, "not_found", "not found", nil)
	}
	return nil
}

// serverError is the boundary for unexpected store failures: logged once,
// rendered as an opaque 500.
func (c Config) serverError(op string, err error) huma.StatusError {
	c.logger().Printf("ERROR %s: %v", op, err)
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerActivities(api huma.API, cfg Config) {
	m := cfg.Mediator

	huma.Register(api, huma.Operation{
		OperationID: "list-activities",
		Method:      http.MethodGet,
		Path:        "/activities",
		Summary:     "List activities",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ActivityResponse `json:"body"`
	}, error) {
		res, err := mediator.Send[[]domain.Activity](ctx, m, activities.ListQuery{})
		if err != nil {
			return nil, cfg.serverError("list activities", err)
		}
		if herr := resultError(res); herr != nil {
			return nil, herr
		}
		return &struct {
			Body []ActivityResponse `json:"body"`
		}{Body: mapActivities(res.Value())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-activity",
		Method:      http.MethodGet,
		Path:        "/activities/{id}",
		Summary:     "Get activity",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ActivityResponse `json:"body"`
	}, error) {
		res, err := mediator.Send[domain.Activity](ctx, m, activities.DetailsQuery{ID: input.ID})
		if err != nil {
			return nil, cfg.serverError("get activity", err)
		}
		if herr := resultError(res); herr != nil {
			return nil, herr
		}
		return &struct {
			Body ActivityResponse `json:"body"`
		}{Body: activityResponse(res.Value())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-activity",
		Method:      http.MethodPost,
		Path:        "/activities",
		Summary:     "Create activity",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body ActivityRequest `json:"body"`
	}) (*struct{}, error) {
		actor, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := mediator.Send[result.Unit](ctx, m, activities.CreateCommand{Activity: input.Body.Activity(), Actor: actor})
		if err != nil {
			return nil, cfg.serverError("create activity", err)
		}
		if herr := resultError(res); herr != nil {
			return nil, herr
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-activity",
		Method:      http.MethodPut,
		Path:        "/activities/{id}",
		Summary:     "Edit activity",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body ActivityRequest `json:"body"`
	}) (*struct{}, error) {
		actor, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		// The route id is authoritative; any id in the payload is ignored.
		res, err := mediator.Send[result.Unit](ctx, m, activities.EditCommand{ID: input.ID, Activity: input.Body.Activity(), Actor: actor})
		if err != nil {
			return nil, cfg.serverError("edit activity", err)
		}
		if herr := resultError(res); herr != nil {
			return nil, herr
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-activity",
		Method:      http.MethodDelete,
		Path:        "/activities/{id}",
		Summary:     "Delete activity",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actor, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := mediator.Send[result.Unit](ctx, m, activities.DeleteCommand{ID: input.ID, Actor: actor})
		if err != nil {
			return nil, cfg.serverError("delete activity", err)
		}
		if herr := resultError(res); herr != nil {
			return nil, herr
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "attend-activity",
		Method:      http.MethodPost,
		Path:        "/activities/{id}/attend",
		Summary:     "Toggle attendance",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actor, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := mediator.Send[result.Unit](ctx, m, activities.AttendCommand{ID: input.ID, Actor: actor})
		if err != nil {
			return nil, cfg.serverError("toggle attendance", err)
		}
		if herr := resultError(res); herr != nil {
			return nil, herr
		}
		return &struct{}{}, nil
	})
}

func registerProfiles(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profiles/{username}",
		Summary:     "Get profile",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Username string `path:"username"`
	}) (*struct {
		Body ProfileResponse `json:"body"`
	}, error) {
		if _, authErr := usernameFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		res, err := mediator.Send[domain.Profile](ctx, cfg.Mediator, profiles.DetailsQuery{Username: input.Username})
		if err != nil {
			return nil, cfg.serverError("get profile", err)
		}
		if herr := resultError(res); herr != nil {
			return nil, herr
		}
		p := res.Value()
		return &struct {
			Body ProfileResponse `json:"body"`
		}{Body: ProfileResponse{Username: p.Username, DisplayName: p.DisplayName, Image: p.Image}}, nil
	})
}

func registerAccount(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/account/login",
		Summary:     "Log in",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		u, err := cfg.Store.GetUserByEmail(ctx, input.Body.Email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "invalid email or password", nil)
			}
			return nil, cfg.serverError("login", err)
		}
		if !identity.VerifyPassword(u.PasswordHash, input.Body.Password) {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "invalid email or password", nil)
		}
		token, err := cfg.Tokens.Create(u.Username, u.DisplayName)
		if err != nil {
			return nil, cfg.serverError("login", err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: UserResponse{Username: u.Username, DisplayName: u.DisplayName, Token: token, Image: u.Image}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "current-user",
		Method:      http.MethodGet,
		Path:        "/account",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := cfg.Store.GetUserByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "unknown user", nil)
			}
			return nil, cfg.serverError("current user", err)
		}
		token, err := cfg.Tokens.Create(u.Username, u.DisplayName)
		if err != nil {
			return nil, cfg.serverError("current user", err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: UserResponse{Username: u.Username, DisplayName: u.DisplayName, Token: token, Image: u.Image}}, nil
	})
}

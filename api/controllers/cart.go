package controllers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/smokeshop-backend/api/middleware"
	"github.com/angelmondragon/smokeshop-backend/api/responses"
	"github.com/angelmondragon/smokeshop-backend/api/validators"
	"github.com/angelmondragon/smokeshop-backend/internal/cart"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
)

func cartCaller(r *http.Request) cart.Caller {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return cart.Caller{}
	}
	return cart.Caller{Authenticated: true, Email: identity.Email, IsAdmin: identity.IsAdmin()}
}

func cartEmail(r *http.Request) string {
	raw := chi.URLParam(r, "email")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func CartGet(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("cart service"))
			return
		}
		result, err := svc.Get(r.Context(), cartCaller(r), cartEmail(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CartReplace creates or overwrites the cart: 201 when created, 200 otherwise.
func CartReplace(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("cart service"))
			return
		}

		var body cart.ReplaceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, created, err := svc.Replace(r.Context(), cartCaller(r), cartEmail(r), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func CartPatch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("cart service"))
			return
		}

		var body cart.PatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Patch(r.Context(), cartCaller(r), cartEmail(r), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

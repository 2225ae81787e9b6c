package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/smokeshop-backend/api/middleware"
	"github.com/angelmondragon/smokeshop-backend/api/responses"
	"github.com/angelmondragon/smokeshop-backend/api/validators"
	"github.com/angelmondragon/smokeshop-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

// Checkout places and charges an order. A fresh capture answers 201 and a
// replay of an already paid order answers 200.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("checkout service"))
			return
		}

		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header is required"))
			return
		}

		var body checkout.Request
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		caller := checkout.Caller{}
		if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
			caller = checkout.Caller{Authenticated: true, UserID: identity.UserID, Email: identity.Email}
		}

		result, err := svc.Checkout(r.Context(), caller, key, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Captured {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result.Order)
	}
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

func requireIdentity(r *http.Request) (middleware.Identity, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return middleware.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return identity, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).
			WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable")
}

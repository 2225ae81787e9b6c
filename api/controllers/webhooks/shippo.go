package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/smokeshop-backend/api/responses"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
)

type ShippoWebhookService interface {
	Handle(ctx context.Context, token string, body []byte) error
}

// ShippoWebhook applies tracking updates. The shared secret travels in the
// token query parameter.
func ShippoWebhook(svc ShippoWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "shippo webhook not configured"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if err := svc.Handle(ctx, r.URL.Query().Get("token"), payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/smokeshop-backend/api/responses"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/square"
)

const maxWebhookBody = 1 << 20

type SquareWebhookService interface {
	Handle(ctx context.Context, body []byte, signature string) error
}

// SquareWebhook applies Square payment notifications. Failures answer
// non-2xx so Square redelivers.
func SquareWebhook(svc SquareWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "square webhook not configured"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		signature := r.Header.Get(square.SignatureHeader)
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "square signature missing"))
			return
		}

		if err := svc.Handle(ctx, payload, signature); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

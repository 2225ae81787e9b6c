package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/pagination"
)

func TestServiceGetEnforcesOwnership(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	owner := uuid.New()
	order := newOrder(t, db, owner, enums.OrderStatusPaid, time.Now().UTC())
	ctx := context.Background()

	dto, err := svc.Get(ctx, Caller{UserID: owner}, order.ID)
	require.NoError(t, err)
	assert.True(t, dto.IsPaid)
	require.Len(t, dto.Items, 1)
	require.NotNil(t, dto.Shipment)
	assert.Equal(t, "rate_1", dto.Shipping.RateID)

	_, err = svc.Get(ctx, Caller{UserID: uuid.New()}, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Get(ctx, Caller{UserID: uuid.New(), IsAdmin: true}, order.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, Caller{UserID: owner}, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceListsAndFilters(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	owner := uuid.New()
	now := time.Now().UTC()
	newOrder(t, db, owner, enums.OrderStatusPaid, now.Add(-time.Minute))
	newOrder(t, db, uuid.New(), enums.OrderStatusPaymentFailed, now)
	ctx := context.Background()

	mine, err := svc.List(ctx, owner, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, mine.Orders, 1)

	_, err = svc.List(ctx, uuid.Nil, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	failed, err := svc.AdminList(ctx, "PAYMENT_FAILED", pagination.Params{})
	require.NoError(t, err)
	require.Len(t, failed.Orders, 1)
	assert.Equal(t, enums.OrderStatusPaymentFailed, failed.Orders[0].Status)

	_, err = svc.AdminList(ctx, "shipped", pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

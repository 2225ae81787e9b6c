package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/payloads"
)

func newTestService(t *testing.T) (*Service, *Repository, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	return NewService(repo, logg), repo, conn
}

func TestEmitWritesEnvelope(t *testing.T) {
	svc, _, conn := newTestService(t)
	orderID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{Email: "jane@example.com"},
			Data:          payloads.OrderCreatedEvent{OrderID: orderID, TotalCents: 1500},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, orderID, rows[0].AggregateID)
	require.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.Equal(t, "jane@example.com", envelope.Actor.Email)

	var data payloads.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, int64(1500), data.TotalCents)
}

func TestEmitValidatesInput(t *testing.T) {
	svc, _, conn := newTestService(t)
	ctx := context.Background()

	require.Error(t, svc.Emit(ctx, nil, DomainEvent{EventType: enums.EventOrderPaid, AggregateID: uuid.New()}))
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{EventType: "bogus", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()})
	})
	require.Error(t, err)
	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder})
	})
	require.Error(t, err)
}

func TestEmitIfNotExistsDeduplicates(t *testing.T) {
	svc, _, conn := newTestService(t)
	orderID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data:          payloads.OrderPaidEvent{OrderID: orderID},
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		}))
	}

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	_, repo, conn := newTestService(t)

	first := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, repo.Insert(conn, first))
	require.NoError(t, repo.Insert(conn, second))

	var batch []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		if err != nil {
			return err
		}
		if err := repo.MarkPublishedTx(tx, batch[0].ID); err != nil {
			return err
		}
		return repo.MarkFailedTx(tx, batch[1].ID, errors.New("publish timeout"))
	}))
	require.Len(t, batch, 2)

	pending, err := repo.CountPending(3)
	require.NoError(t, err)
	require.Equal(t, int64(1), pending)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return repo.MarkTerminalTx(tx, batch[1].ID, errors.New("gave up"), 3)
	}))
	pending, err = repo.CountPending(3)
	require.NoError(t, err)
	require.Zero(t, pending)

	var failed models.OutboxEvent
	require.NoError(t, conn.First(&failed, "id = ?", batch[1].ID).Error)
	require.Equal(t, 3, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	require.Equal(t, "gave up", *failed.LastError)

	deleted, err := repo.DeletePublishedBefore(nil, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
}

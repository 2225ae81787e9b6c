package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/products"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

type reviewFixture struct {
	db      *gorm.DB
	svc     Service
	product models.Product
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	productRepo := products.NewRepository(conn)
	svc, err := NewService(NewRepository(conn), productRepo, client)
	require.NoError(t, err)

	product := models.Product{Name: "Mango Ice", Slug: "mango-ice", PriceCents: 1999}
	require.NoError(t, productRepo.Create(context.Background(), &product, nil))
	return &reviewFixture{db: conn, svc: svc, product: product}
}

func (f *reviewFixture) reload(t *testing.T) models.Product {
	t.Helper()
	var product models.Product
	require.NoError(t, f.db.First(&product, "id = ?", f.product.ID).Error)
	return product
}

func TestCreateRecomputesAggregate(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, Author{Email: "a@example.com", Name: "Ann"}, CreateRequest{ProductID: f.product.ID, Rating: 5, Body: "Great"})
	require.NoError(t, err)
	created, err := f.svc.Create(ctx, Author{Email: "B@Example.com"}, CreateRequest{ProductID: f.product.ID, Rating: 2, Body: "Meh"})
	require.NoError(t, err)
	assert.Equal(t, "b", created.Name)

	product := f.reload(t)
	assert.Equal(t, 2, product.ReviewCount)
	assert.InDelta(t, 3.5, product.RatingAverage, 0.001)
}

func TestCreateRejectsOutOfRangeRating(t *testing.T) {
	f := newReviewFixture(t)
	for _, rating := range []int{0, 6, -1} {
		_, err := f.svc.Create(context.Background(), Author{Email: "a@example.com"}, CreateRequest{ProductID: f.product.ID, Rating: rating, Body: "x"})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "rating %d", rating)
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Review{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.reload(t).ReviewCount)
}

func TestCreateOneReviewPerUser(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	req := CreateRequest{ProductID: f.product.ID, Rating: 4, Body: "Nice"}

	_, err := f.svc.Create(ctx, Author{Email: "a@example.com"}, req)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, Author{Email: "A@example.com "}, req)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, 1, f.reload(t).ReviewCount)
}

func TestCreateUnknownProduct(t *testing.T) {
	f := newReviewFixture(t)
	_, err := f.svc.Create(context.Background(), Author{Email: "a@example.com"}, CreateRequest{ProductID: uuid.New(), Rating: 4, Body: "Nice"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteRequiresOwner(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	review, err := f.svc.Create(ctx, Author{Email: "owner@example.com"}, CreateRequest{ProductID: f.product.ID, Rating: 4, Body: "Nice"})
	require.NoError(t, err)

	err = f.svc.Delete(ctx, "intruder@example.com", review.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	assert.Equal(t, 1, f.reload(t).ReviewCount)

	require.NoError(t, f.svc.Delete(ctx, "Owner@example.com", review.ID))
	product := f.reload(t)
	assert.Zero(t, product.ReviewCount)
	assert.Zero(t, product.RatingAverage)

	err = f.svc.Delete(ctx, "owner@example.com", review.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListNewestFirst(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	first, err := f.svc.Create(ctx, Author{Email: "a@example.com"}, CreateRequest{ProductID: f.product.ID, Rating: 4, Body: "First"})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, Author{Email: "b@example.com"}, CreateRequest{ProductID: f.product.ID, Rating: 5, Body: "Second"})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Review{}).Where("id = ?", first.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)

	list, err := f.svc.ListForProduct(ctx, "mango-ice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	_, err = f.svc.ListForProduct(ctx, "missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

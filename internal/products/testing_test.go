package products

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
)

type catalogFixture struct {
	db       *gorm.DB
	repo     *Repository
	svc      Service
	brand    models.Brand
	other    models.Brand
	mango    models.Flavor
	mint     models.Flavor
	nic50    models.NicotineLevel
	puff5000 models.PuffCount
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo, client)
	require.NoError(t, err)

	ctx := context.Background()
	f := &catalogFixture{db: conn, repo: repo, svc: svc}
	f.brand = models.Brand{Name: "Geek Bar", Slug: "geek-bar"}
	f.other = models.Brand{Name: "Lost Mary", Slug: "lost-mary"}
	f.mango = models.Flavor{Name: "Mango", Slug: "mango"}
	f.mint = models.Flavor{Name: "Mint", Slug: "mint"}
	desc := "Up to 5000 puffs"
	f.nic50 = models.NicotineLevel{Label: "5% (50mg)", Slug: "50mg", Milligrams: 50}
	f.puff5000 = models.PuffCount{Label: "5000", Slug: "5000", Puffs: 5000, Description: &desc}
	require.NoError(t, repo.UpsertBrand(ctx, &f.brand))
	require.NoError(t, repo.UpsertBrand(ctx, &f.other))
	require.NoError(t, repo.UpsertFlavor(ctx, &f.mango))
	require.NoError(t, repo.UpsertFlavor(ctx, &f.mint))
	require.NoError(t, repo.UpsertNicotineLevel(ctx, &f.nic50))
	require.NoError(t, repo.UpsertPuffCount(ctx, &f.puff5000))
	return f
}

func (f *catalogFixture) product(t *testing.T, name string, price int64, mutate func(*CreateProductRequest)) *ProductDTO {
	t.Helper()
	req := CreateProductRequest{Name: name, PriceCents: price, BrandID: &f.brand.ID}
	if mutate != nil {
		mutate(&req)
	}
	dto, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	return dto
}

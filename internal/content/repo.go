package content

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
)

// Repository persists blog articles, FAQs and SEO overrides.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func published(q *gorm.DB, now time.Time) *gorm.DB {
	return q.Where("published_at IS NOT NULL AND published_at <= ?", now)
}

// ListPublished returns one page of published articles, newest first.
func (r *Repository) ListPublished(ctx context.Context, now time.Time, offset, limit int) ([]models.BlogArticle, int64, error) {
	var total int64
	if err := published(r.db.WithContext(ctx).Model(&models.BlogArticle{}), now).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.BlogArticle
	err := published(r.db.WithContext(ctx), now).
		Order("published_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	return rows, total, err
}

// ListPublishedSlugs returns slug and modification time of every published article.
func (r *Repository) ListPublishedSlugs(ctx context.Context, now time.Time) ([]models.BlogArticle, error) {
	var rows []models.BlogArticle
	err := published(r.db.WithContext(ctx), now).
		Select("slug", "updated_at", "published_at").
		Order("published_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) FindArticleBySlug(ctx context.Context, slug string) (*models.BlogArticle, error) {
	var article models.BlogArticle
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&article).Error; err != nil {
		return nil, err
	}
	return &article, nil
}

func (r *Repository) CreateArticle(ctx context.Context, article *models.BlogArticle) error {
	return r.db.WithContext(ctx).Create(article).Error
}

func (r *Repository) UpdateArticle(ctx context.Context, article *models.BlogArticle, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(article).Updates(updates).Error
}

// UpsertArticle inserts or overwrites the article keyed by slug.
func (r *Repository) UpsertArticle(ctx context.Context, article *models.BlogArticle) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "excerpt", "body", "cover_image_url", "author", "published_at", "updated_at"}),
	}).Create(article).Error
}

// ListFaqs returns every FAQ in display order.
func (r *Repository) ListFaqs(ctx context.Context) ([]models.Faq, error) {
	var rows []models.Faq
	err := r.db.WithContext(ctx).Order("position ASC, created_at ASC").Find(&rows).Error
	return rows, err
}

// ReplaceFaqs swaps the whole FAQ list.
func (r *Repository) ReplaceFaqs(ctx context.Context, faqs []models.Faq) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.Faq{}).Error; err != nil {
		return err
	}
	if len(faqs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&faqs).Error
}

func (r *Repository) FindSeoPage(ctx context.Context, path string) (*models.SeoPage, error) {
	var page models.SeoPage
	if err := r.db.WithContext(ctx).Where("path = ?", path).First(&page).Error; err != nil {
		return nil, err
	}
	return &page, nil
}

// UpsertSeoPage inserts or overwrites the override keyed by path.
func (r *Repository) UpsertSeoPage(ctx context.Context, page *models.SeoPage) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "keywords", "og_image_url", "updated_at"}),
	}).Create(page).Error
}

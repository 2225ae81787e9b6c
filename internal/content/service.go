package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/products"
	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/db"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/pagination"
)

const seoDescriptionLimit = 160

// Service serves the blog, FAQ and page metadata.
type Service interface {
	ListArticles(ctx context.Context, page pagination.Page) (*ArticleListResult, error)
	GetArticle(ctx context.Context, slug string, includeDrafts bool) (*ArticleDTO, error)
	CreateArticle(ctx context.Context, req CreateArticleRequest) (*ArticleDTO, error)
	UpdateArticle(ctx context.Context, slug string, req UpdateArticleRequest) (*ArticleDTO, error)
	ListFaqs(ctx context.Context) ([]FaqDTO, error)
	Seo(ctx context.Context, path string) (*SeoDTO, error)
}

type productFinder interface {
	FindBySlug(ctx context.Context, slug string) (*models.Product, error)
}

type service struct {
	repo     *Repository
	products productFinder
	app      config.AppConfig
	now      func() time.Time
}

func NewService(repo *Repository, productRepo productFinder, app config.AppConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("content repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, products: productRepo, app: app, now: time.Now}, nil
}

func (s *service) ListArticles(ctx context.Context, page pagination.Page) (*ArticleListResult, error) {
	page = pagination.NormalizePage(page.Number, page.Limit)
	rows, total, err := s.repo.ListPublished(ctx, s.now().UTC(), page.Offset(), page.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list articles")
	}
	items := make([]ArticleDTO, 0, len(rows))
	for i := range rows {
		items = append(items, articleFromModel(&rows[i], false))
	}
	return &ArticleListResult{
		Items:      items,
		Page:       page.Number,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: page.TotalPages(total),
	}, nil
}

func (s *service) GetArticle(ctx context.Context, slug string, includeDrafts bool) (*ArticleDTO, error) {
	article, err := s.loadArticle(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !includeDrafts && !isPublished(article, s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "article not found")
	}
	dto := articleFromModel(article, true)
	return &dto, nil
}

func (s *service) CreateArticle(ctx context.Context, req CreateArticleRequest) (*ArticleDTO, error) {
	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Body)
	if title == "" || body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title and body are required")
	}
	slug := products.Slugify(req.Slug)
	if slug == "" {
		slug = products.Slugify(title)
	}
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug could not be derived from title")
	}

	article := &models.BlogArticle{
		Slug:          slug,
		Title:         title,
		Excerpt:       strings.TrimSpace(req.Excerpt),
		Body:          body,
		CoverImageURL: req.CoverImageURL,
		Author:        req.Author,
		PublishedAt:   utcPtr(req.PublishedAt),
	}
	if err := s.repo.CreateArticle(ctx, article); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use").
				WithDetails(map[string]any{"slug": slug})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create article")
	}
	dto := articleFromModel(article, true)
	return &dto, nil
}

func (s *service) UpdateArticle(ctx context.Context, slug string, req UpdateArticleRequest) (*ArticleDTO, error) {
	article, err := s.loadArticle(ctx, slug)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Slug != nil {
		next := products.Slugify(*req.Slug)
		if next == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is invalid")
		}
		if next != article.Slug {
			updates["slug"] = next
		}
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		updates["title"] = title
	}
	if req.Body != nil {
		body := strings.TrimSpace(*req.Body)
		if body == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "body cannot be empty")
		}
		updates["body"] = body
	}
	if req.Excerpt != nil {
		updates["excerpt"] = strings.TrimSpace(*req.Excerpt)
	}
	if req.CoverImageURL != nil {
		updates["cover_image_url"] = req.CoverImageURL
	}
	if req.Author != nil {
		updates["author"] = req.Author
	}
	switch {
	case req.Unpublish:
		updates["published_at"] = nil
	case req.PublishedAt != nil:
		updates["published_at"] = req.PublishedAt.UTC()
	}

	if err := s.repo.UpdateArticle(ctx, article, updates); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update article")
	}
	next := article.Slug
	if v, ok := updates["slug"].(string); ok {
		next = v
	}
	updated, err := s.loadArticle(ctx, next)
	if err != nil {
		return nil, err
	}
	dto := articleFromModel(updated, true)
	return &dto, nil
}

func (s *service) ListFaqs(ctx context.Context) ([]FaqDTO, error) {
	rows, err := s.repo.ListFaqs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list faqs")
	}
	out := make([]FaqDTO, 0, len(rows))
	for i := range rows {
		out = append(out, faqFromModel(&rows[i]))
	}
	return out, nil
}

// Seo resolves metadata for a storefront path: a stored override first, then
// metadata generated from the product or article the path names, then the
// site defaults.
func (s *service) Seo(ctx context.Context, path string) (*SeoDTO, error) {
	path = normalizePath(path)
	canonical := s.app.BaseURL() + path

	page, err := s.repo.FindSeoPage(ctx, path)
	switch {
	case err == nil:
		return &SeoDTO{
			Path:        path,
			Title:       page.Title,
			Description: page.Description,
			Keywords:    page.Keywords,
			OGImageURL:  page.OGImageURL,
			Canonical:   canonical,
			Source:      SeoSourceStored,
		}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seo page")
	}

	if slug, ok := strings.CutPrefix(path, "/products/"); ok && slug != "" && !strings.Contains(slug, "/") {
		product, err := s.products.FindBySlug(ctx, slug)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		if product != nil && !product.IsArchived {
			dto := &SeoDTO{
				Path:        path,
				Title:       s.title(product.Name),
				Description: summarize(product.Description, fmt.Sprintf("Shop %s at %s.", product.Name, s.storeName())),
				Canonical:   canonical,
				Source:      SeoSourceGenerated,
			}
			if len(product.Images) > 0 {
				url := product.Images[0].URL
				dto.OGImageURL = &url
			}
			return dto, nil
		}
	}

	if slug, ok := strings.CutPrefix(path, "/blog/"); ok && slug != "" && !strings.Contains(slug, "/") {
		article, err := s.repo.FindArticleBySlug(ctx, slug)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load article")
		}
		if article != nil && isPublished(article, s.now()) {
			fallback := article.Excerpt
			if fallback == "" {
				fallback = article.Body
			}
			return &SeoDTO{
				Path:        path,
				Title:       s.title(article.Title),
				Description: summarize(fallback, article.Title),
				OGImageURL:  article.CoverImageURL,
				Canonical:   canonical,
				Source:      SeoSourceGenerated,
			}, nil
		}
	}

	return &SeoDTO{
		Path:        path,
		Title:       s.storeName(),
		Description: fmt.Sprintf("%s: disposable vapes, pods and accessories shipped to your door.", s.storeName()),
		Canonical:   canonical,
		Source:      SeoSourceDefault,
	}, nil
}

func (s *service) loadArticle(ctx context.Context, slug string) (*models.BlogArticle, error) {
	article, err := s.repo.FindArticleBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "article not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load article")
	}
	return article, nil
}

func (s *service) storeName() string {
	if name := strings.TrimSpace(s.app.StoreName); name != "" {
		return name
	}
	return "Smoke Shop"
}

func (s *service) title(name string) string {
	return fmt.Sprintf("%s | %s", name, s.storeName())
}

func isPublished(article *models.BlogArticle, now time.Time) bool {
	return article.PublishedAt != nil && !article.PublishedAt.After(now)
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// summarize collapses whitespace and cuts text to the meta description limit.
func summarize(text, fallback string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return fallback
	}
	if utf8.RuneCountInString(text) <= seoDescriptionLimit {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:seoDescriptionLimit-3])
	if i := strings.LastIndex(cut, " "); i > seoDescriptionLimit/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

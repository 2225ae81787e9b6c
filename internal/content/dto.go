package content

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
)

// CreateArticleRequest is the admin payload for a new blog article.
// An empty slug is derived from the title.
type CreateArticleRequest struct {
	Slug          string     `json:"slug" validate:"omitempty,max=160"`
	Title         string     `json:"title" validate:"required,max=200"`
	Excerpt       string     `json:"excerpt" validate:"max=500"`
	Body          string     `json:"body" validate:"required"`
	CoverImageURL *string    `json:"cover_image_url,omitempty" validate:"omitempty,url"`
	Author        *string    `json:"author,omitempty" validate:"omitempty,max=120"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// UpdateArticleRequest patches an article. Unpublish clears published_at.
type UpdateArticleRequest struct {
	Slug          *string    `json:"slug,omitempty" validate:"omitempty,max=160"`
	Title         *string    `json:"title,omitempty" validate:"omitempty,max=200"`
	Excerpt       *string    `json:"excerpt,omitempty" validate:"omitempty,max=500"`
	Body          *string    `json:"body,omitempty"`
	CoverImageURL *string    `json:"cover_image_url,omitempty" validate:"omitempty,url"`
	Author        *string    `json:"author,omitempty" validate:"omitempty,max=120"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	Unpublish     bool       `json:"unpublish,omitempty"`
}

type ArticleDTO struct {
	ID            uuid.UUID  `json:"id"`
	Slug          string     `json:"slug"`
	Title         string     `json:"title"`
	Excerpt       string     `json:"excerpt"`
	Body          string     `json:"body,omitempty"`
	CoverImageURL *string    `json:"cover_image_url,omitempty"`
	Author        *string    `json:"author,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ArticleListResult is a numbered page of article summaries.
type ArticleListResult struct {
	Items      []ArticleDTO `json:"items"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	Total      int64        `json:"total"`
	TotalPages int          `json:"total_pages"`
}

type FaqDTO struct {
	ID       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Position int       `json:"position"`
}

// SeoDTO is the page metadata served to the storefront.
type SeoDTO struct {
	Path        string  `json:"path"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Keywords    *string `json:"keywords,omitempty"`
	OGImageURL  *string `json:"og_image_url,omitempty"`
	Canonical   string  `json:"canonical"`
	Source      string  `json:"source"`
}

const (
	SeoSourceStored    = "stored"
	SeoSourceGenerated = "generated"
	SeoSourceDefault   = "default"
)

func articleFromModel(a *models.BlogArticle, withBody bool) ArticleDTO {
	dto := ArticleDTO{
		ID:            a.ID,
		Slug:          a.Slug,
		Title:         a.Title,
		Excerpt:       a.Excerpt,
		CoverImageURL: a.CoverImageURL,
		Author:        a.Author,
		PublishedAt:   a.PublishedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	if withBody {
		dto.Body = a.Body
	}
	return dto
}

func faqFromModel(f *models.Faq) FaqDTO {
	return FaqDTO{ID: f.ID, Question: f.Question, Answer: f.Answer, Position: f.Position}
}

package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
)

// CreateRequest is the body of POST /api/reviews.
type CreateRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Name      string    `json:"name" validate:"omitempty,max=120"`
	Rating    int       `json:"rating"`
	Title     *string   `json:"title,omitempty" validate:"omitempty,max=200"`
	Body      string    `json:"body" validate:"required,max=5000"`
}

// Author identifies the authenticated reviewer.
type Author struct {
	Email string
	Name  string
}

// ReviewDTO is the public view of a review. The submitter email stays private.
type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Title     *string   `json:"title,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func FromModel(r *models.Review) ReviewDTO {
	return ReviewDTO{
		ID:        r.ID,
		ProductID: r.ProductID,
		Name:      r.Name,
		Rating:    r.Rating,
		Title:     r.Title,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
	}
}

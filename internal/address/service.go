package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/users"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/maps"
	"github.com/angelmondragon/smokeshop-backend/pkg/types"
)

// Service manages the caller's address book and Places lookups.
type Service interface {
	Create(ctx context.Context, email string, req CreateRequest) (*AddressDTO, error)
	List(ctx context.Context, email string) ([]AddressDTO, error)
	Get(ctx context.Context, email string, id uuid.UUID) (*AddressDTO, error)
	Update(ctx context.Context, email string, id uuid.UUID, req UpdateRequest) (*AddressDTO, error)
	Delete(ctx context.Context, email string, id uuid.UUID) error
	Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error)
	Resolve(ctx context.Context, placeID string) (types.Address, error)
}

type placesClient interface {
	Autocomplete(ctx context.Context, req maps.AutocompleteRequest) ([]maps.AutocompleteSuggestion, error)
	ResolvePlace(ctx context.Context, placeID string) (*maps.PlaceDetails, error)
}

type service struct {
	repo   *Repository
	places placesClient
}

// NewService builds the address service. A nil places client disables
// suggest and resolve.
func NewService(repo *Repository, places placesClient) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo, places: places}, nil
}

func (s *service) Create(ctx context.Context, email string, req CreateRequest) (*AddressDTO, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	snapshot := types.Address{
		Name:       req.Name,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Phone:      req.Phone,
	}.Normalize()
	if missing := missingFields(snapshot); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is incomplete").
			WithDetails(map[string]any{"missing": missing})
	}

	row := FromSnapshot(email, snapshot)
	row.IsDefault = req.IsDefault
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create address")
	}
	dto := FromModel(row)
	return &dto, nil
}

func (s *service) List(ctx context.Context, email string) ([]AddressDTO, error) {
	rows, err := s.repo.ListByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, email string, id uuid.UUID) (*AddressDTO, error) {
	row, err := s.load(ctx, email, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(row)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, email string, id uuid.UUID, req UpdateRequest) (*AddressDTO, error) {
	row, err := s.load(ctx, email, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	setString := func(column string, value *string, upper bool) {
		if value == nil {
			return
		}
		trimmed := strings.TrimSpace(*value)
		if upper {
			trimmed = strings.ToUpper(trimmed)
		}
		updates[column] = trimmed
	}
	setString("name", req.Name, false)
	setString("line1", req.Line1, false)
	setString("city", req.City, false)
	setString("state", req.State, true)
	setString("postal_code", req.PostalCode, false)
	setString("country", req.Country, true)
	setString("phone", req.Phone, false)
	if req.Line2 != nil {
		if trimmed := strings.TrimSpace(*req.Line2); trimmed == "" {
			updates["line2"] = nil
		} else {
			updates["line2"] = trimmed
		}
	}
	if req.IsDefault != nil {
		updates["is_default"] = *req.IsDefault
	}
	for column, value := range updates {
		if str, ok := value.(string); ok && str == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, column+" cannot be empty")
		}
	}
	if len(updates) == 0 {
		dto := FromModel(row)
		return &dto, nil
	}

	if err := s.repo.Update(ctx, row, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update address")
	}
	return s.Get(ctx, email, id)
}

func (s *service) Delete(ctx context.Context, email string, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id, users.NormalizeEmail(email))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete address")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return nil
}

func (s *service) load(ctx context.Context, email string, id uuid.UUID) (*models.Address, error) {
	row, err := s.repo.FindForOwner(ctx, id, users.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}
	return row, nil
}

func (s *service) Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error) {
	if s.places == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "address lookup unavailable")
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "input is required")
	}

	payload := maps.AutocompleteRequest{Input: input}
	if country := strings.TrimSpace(req.Country); country != "" {
		payload.IncludedRegionCodes = []string{strings.ToUpper(country)}
	}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		payload.LanguageCode = lang
	}

	resp, err := s.places.Autocomplete(ctx, payload)
	if err != nil {
		return nil, err
	}
	suggestions := make([]Suggestion, 0, len(resp))
	for _, item := range resp {
		suggestions = append(suggestions, Suggestion{PlaceID: item.PlaceID, Description: item.Description})
	}
	return suggestions, nil
}

func (s *service) Resolve(ctx context.Context, placeID string) (types.Address, error) {
	if s.places == nil {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeDependency, "address lookup unavailable")
	}
	if strings.TrimSpace(placeID) == "" {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "place_id is required")
	}
	details, err := s.places.ResolvePlace(ctx, placeID)
	if err != nil {
		return types.Address{}, err
	}
	addr := details.PostalAddress()
	if missing := MissingPostalFields(addr); len(missing) > 0 {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "place is not a deliverable street address").
			WithDetails(map[string]any{"missing": missing})
	}
	return addr, nil
}

// MissingPostalFields lists the empty fields a carrier needs to deliver.
func MissingPostalFields(a types.Address) []string {
	missing := []string{}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"line1", a.Line1},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

func missingFields(a types.Address) []string {
	missing := MissingPostalFields(a)
	if a.Name == "" {
		missing = append([]string{"name"}, missing...)
	}
	if a.Phone == "" {
		missing = append(missing, "phone")
	}
	return missing
}

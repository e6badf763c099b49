package service

import (
	"context"
	"strings"
	"time"

	"github.com/SergeiKhy/offer-tracker/internal/idgen"
	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/SergeiKhy/offer-tracker/internal/repository"
)

// PropertyService CRUD площадок владельца
type PropertyService interface {
	CreateProperty(ctx context.Context, ownerID string, input *models.PropertyInput) (*models.Property, error)
	GetProperty(ctx context.Context, ownerID, id string) (*models.Property, error)
	ListProperties(ctx context.Context, ownerID string) ([]models.Property, error)
	UpdateProperty(ctx context.Context, ownerID, id string, input *models.PropertyInput) (*models.Property, error)
	DeleteProperty(ctx context.Context, ownerID, id string) error
}

type propertyService struct {
	repo   repository.PropertyRepository
	minter idgen.Minter
}

func NewPropertyService(repo repository.PropertyRepository, minter idgen.Minter) PropertyService {
	return &propertyService{repo: repo, minter: minter}
}

func (s *propertyService) CreateProperty(ctx context.Context, ownerID string, input *models.PropertyInput) (*models.Property, error) {
	property, err := buildProperty(input)
	if err != nil {
		return nil, err
	}

	property.ID = s.minter.NewID()
	property.OwnerID = ownerID
	property.CreatedAt = time.Now().UTC()

	if err := s.repo.Create(ctx, property); err != nil {
		return nil, mapRepoError(err)
	}
	return property, nil
}

func (s *propertyService) GetProperty(ctx context.Context, ownerID, id string) (*models.Property, error) {
	property, err := s.repo.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return property, nil
}

func (s *propertyService) ListProperties(ctx context.Context, ownerID string) ([]models.Property, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *propertyService) UpdateProperty(ctx context.Context, ownerID, id string, input *models.PropertyInput) (*models.Property, error) {
	property, err := buildProperty(input)
	if err != nil {
		return nil, err
	}

	property.ID = id
	property.OwnerID = ownerID

	if err := s.repo.Update(ctx, property); err != nil {
		return nil, mapRepoError(err)
	}
	return property, nil
}

func (s *propertyService) DeleteProperty(ctx context.Context, ownerID, id string) error {
	return mapRepoError(s.repo.Delete(ctx, id, ownerID))
}

// buildProperty name и link обязательны, необязательные пустые поля становятся NULL
func buildProperty(input *models.PropertyInput) (*models.Property, error) {
	property := &models.Property{
		Name: strings.TrimSpace(input.Name),
		Link: strings.TrimSpace(input.Link),
	}
	if property.Name == "" || property.Link == "" {
		return nil, ErrMissingFields
	}

	property.ImageLink = optional(input.ImageLink)
	property.PostbackURL = optional(input.PostbackURL)

	if property.PostbackURL != nil {
		if err := validateURL(*property.PostbackURL); err != nil {
			return nil, err
		}
	}

	return property, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/jackc/pgx/v5"
)

type PropertyRepository interface {
	Create(ctx context.Context, property *models.Property) error
	GetByID(ctx context.Context, id string) (*models.Property, error)
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Property, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Property, error)
	Update(ctx context.Context, property *models.Property) error
	Delete(ctx context.Context, id, ownerID string) error
}

type propertyRepository struct {
	db *PostgresDB
}

func NewPropertyRepository(db *PostgresDB) PropertyRepository {
	return &propertyRepository{db: db}
}

const propertyColumns = `id, owner_id, name, link, image_link, postback_url, created_at, updated_at`

func (r *propertyRepository) Create(ctx context.Context, property *models.Property) error {
	query := `
		INSERT INTO properties (id, owner_id, name, link, image_link, postback_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		property.ID,
		property.OwnerID,
		property.Name,
		property.Link,
		property.ImageLink,
		property.PostbackURL,
		property.CreatedAt,
	).Scan(&property.CreatedAt, &property.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create property: %w", err)
	}

	return nil
}

func (r *propertyRepository) GetByID(ctx context.Context, id string) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *propertyRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1 AND owner_id = $2`
	return r.getOne(ctx, query, id, ownerID)
}

func (r *propertyRepository) getOne(ctx context.Context, query string, args ...any) (*models.Property, error) {
	property, err := scanProperty(r.db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPropertyNotFound
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return property, nil
}

func (r *propertyRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	properties := []models.Property{}
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, *property)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating properties: %w", err)
	}

	return properties, nil
}

func (r *propertyRepository) Update(ctx context.Context, property *models.Property) error {
	query := `
		UPDATE properties
		SET name = $3, link = $4, image_link = $5, postback_url = $6, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		property.ID,
		property.OwnerID,
		property.Name,
		property.Link,
		property.ImageLink,
		property.PostbackURL,
	).Scan(&property.CreatedAt, &property.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPropertyNotFound
		}
		return fmt.Errorf("failed to update property: %w", err)
	}

	return nil
}

func (r *propertyRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM properties WHERE id = $1 AND owner_id = $2`

	result, err := r.db.Pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrPropertyInUse
		}
		return fmt.Errorf("failed to delete property: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPropertyNotFound
	}

	return nil
}

func scanProperty(row pgx.Row) (*models.Property, error) {
	var (
		property models.Property
		link     *string
	)

	err := row.Scan(
		&property.ID,
		&property.OwnerID,
		&property.Name,
		&link,
		&property.ImageLink,
		&property.PostbackURL,
		&property.CreatedAt,
		&property.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if link != nil {
		property.Link = *link
	}

	return &property, nil
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/jackc/pgx/v5"
)

type OfferRepository interface {
	Create(ctx context.Context, offer *models.Offer) error
	GetByID(ctx context.Context, id string) (*models.Offer, error)
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Offer, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Offer, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Offer, error)
	Update(ctx context.Context, offer *models.Offer) error
	Delete(ctx context.Context, id, ownerID string) error
}

type offerRepository struct {
	db *PostgresDB
}

func NewOfferRepository(db *PostgresDB) OfferRepository {
	return &offerRepository{db: db}
}

const offerColumns = `id, owner_id, title, link, banner_image, square_image, rewards_value,
	tiers, included_countries, excluded_countries, created_at, updated_at`

func (r *offerRepository) Create(ctx context.Context, offer *models.Offer) error {
	tiers, err := json.Marshal(offer.Tiers)
	if err != nil {
		return fmt.Errorf("failed to marshal tiers: %w", err)
	}

	query := `
		INSERT INTO offers (id, owner_id, title, link, banner_image, square_image, rewards_value,
			tiers, included_countries, excluded_countries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING created_at, updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		offer.ID,
		offer.OwnerID,
		offer.Title,
		offer.Link,
		offer.BannerImage,
		offer.SquareImage,
		offer.RewardsValue,
		tiers,
		nonNil(offer.Targeting.Included),
		nonNil(offer.Targeting.Excluded),
		offer.CreatedAt,
	).Scan(&offer.CreatedAt, &offer.UpdatedAt)

	if err != nil {
		if isCheckViolation(err) {
			return ErrInvalidTargeting
		}
		return fmt.Errorf("failed to create offer: %w", err)
	}

	return nil
}

func (r *offerRepository) GetByID(ctx context.Context, id string) (*models.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *offerRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1 AND owner_id = $2`
	return r.getOne(ctx, query, id, ownerID)
}

func (r *offerRepository) getOne(ctx context.Context, query string, args ...any) (*models.Offer, error) {
	offer, err := scanOffer(r.db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return offer, nil
}

func (r *offerRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE owner_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, ownerID)
}

func (r *offerRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.list(ctx, query, limit, offset)
}

func (r *offerRepository) list(ctx context.Context, query string, args ...any) ([]models.Offer, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	offers := []models.Offer{}
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, *offer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offers: %w", err)
	}

	return offers, nil
}

func (r *offerRepository) Update(ctx context.Context, offer *models.Offer) error {
	tiers, err := json.Marshal(offer.Tiers)
	if err != nil {
		return fmt.Errorf("failed to marshal tiers: %w", err)
	}

	query := `
		UPDATE offers
		SET title = $3, link = $4, banner_image = $5, square_image = $6, rewards_value = $7,
			tiers = $8, included_countries = $9, excluded_countries = $10, updated_at = $11
		WHERE id = $1 AND owner_id = $2
		RETURNING created_at, updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		offer.ID,
		offer.OwnerID,
		offer.Title,
		offer.Link,
		offer.BannerImage,
		offer.SquareImage,
		offer.RewardsValue,
		tiers,
		nonNil(offer.Targeting.Included),
		nonNil(offer.Targeting.Excluded),
		time.Now().UTC(),
	).Scan(&offer.CreatedAt, &offer.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOfferNotFound
		}
		if isCheckViolation(err) {
			return ErrInvalidTargeting
		}
		return fmt.Errorf("failed to update offer: %w", err)
	}

	return nil
}

func (r *offerRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM offers WHERE id = $1 AND owner_id = $2`

	result, err := r.db.Pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrOfferInUse
		}
		return fmt.Errorf("failed to delete offer: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrOfferNotFound
	}

	return nil
}

func scanOffer(row pgx.Row) (*models.Offer, error) {
	var (
		offer models.Offer
		tiers []byte
	)

	err := row.Scan(
		&offer.ID,
		&offer.OwnerID,
		&offer.Title,
		&offer.Link,
		&offer.BannerImage,
		&offer.SquareImage,
		&offer.RewardsValue,
		&tiers,
		&offer.Targeting.Included,
		&offer.Targeting.Excluded,
		&offer.CreatedAt,
		&offer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tiers, &offer.Tiers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tiers: %w", err)
	}

	return &offer, nil
}

// text[] NOT NULL не принимает nil-слайс
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

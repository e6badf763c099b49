package repository

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/offer-tracker/internal/models"
)

type VisitRepository interface {
	Insert(ctx context.Context, visit *models.Visit) error
	GetStats(ctx context.Context, offerID string) (*models.OfferStats, error)
	GetDailyStats(ctx context.Context, offerID string, days int) ([]models.DailyVisitStats, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.VisitWithOffer, error)
}

type visitRepository struct {
	db *PostgresDB
}

func NewVisitRepository(db *PostgresDB) VisitRepository {
	return &visitRepository{db: db}
}

func (r *visitRepository) Insert(ctx context.Context, visit *models.Visit) error {
	query := `
		INSERT INTO visitors (click_id, uid, pid, offer_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		visit.ClickID,
		visit.UID,
		visit.PID,
		visit.OfferID,
		visit.CreatedAt,
	)

	if err != nil {
		// Оффер удалили между чтением и записью
		if isForeignKeyViolation(err) {
			return fmt.Errorf("failed to record visit: %w", ErrOfferNotFound)
		}
		return fmt.Errorf("failed to record visit: %w", err)
	}

	return nil
}

func (r *visitRepository) GetStats(ctx context.Context, offerID string) (*models.OfferStats, error) {
	query := `
		SELECT
			COUNT(*) as total_visits,
			COUNT(DISTINCT uid) FILTER (WHERE uid <> 'unknown') as unique_visits
		FROM visitors
		WHERE offer_id = $1
	`

	stats := &models.OfferStats{
		OfferID: offerID,
	}

	err := r.db.Pool.QueryRow(ctx, query, offerID).Scan(
		&stats.TotalVisits,
		&stats.UniqueVisits,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get visit stats: %w", err)
	}

	return stats, nil
}

func (r *visitRepository) GetDailyStats(ctx context.Context, offerID string, days int) ([]models.DailyVisitStats, error) {
	query := `
		SELECT
			TO_CHAR(DATE(created_at), 'YYYY-MM-DD') as date,
			COUNT(*) as visits
		FROM visitors
		WHERE offer_id = $1
			AND created_at >= NOW() - INTERVAL '1 day' * $2
		GROUP BY DATE(created_at)
		ORDER BY DATE(created_at) DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, offerID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	defer rows.Close()

	stats := []models.DailyVisitStats{}
	for rows.Next() {
		var dailyStat models.DailyVisitStats
		if err := rows.Scan(&dailyStat.Date, &dailyStat.Visits); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, dailyStat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}

	return stats, nil
}

func (r *visitRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.VisitWithOffer, error) {
	query := `
		SELECT v.click_id, v.offer_id, v.uid, v.pid, v.created_at, o.title
		FROM visitors v
		JOIN offers o ON o.id = v.offer_id
		WHERE o.owner_id = $1
		ORDER BY v.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	visits := []models.VisitWithOffer{}
	for rows.Next() {
		var v models.VisitWithOffer
		if err := rows.Scan(&v.ClickID, &v.OfferID, &v.UID, &v.PID, &v.CreatedAt, &v.OfferTitle); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visits: %w", err)
	}

	return visits, nil
}

package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/SergeiKhy/offer-tracker/internal/models"
)

type ConversionRepository interface {
	// Insert никогда не читает перед записью: уникальный индекс
	// callbacks_unique_idx единственный арбитр дубликатов.
	Insert(ctx context.Context, conversion *models.Conversion) (models.InsertOutcome, error)
	List(ctx context.Context, filter models.ConversionFilter) ([]models.ConversionWithRelations, int64, error)
	GetStats(ctx context.Context, ownerID string) (*models.ConversionStats, error)
}

type conversionRepository struct {
	db *PostgresDB
}

func NewConversionRepository(db *PostgresDB) ConversionRepository {
	return &conversionRepository{db: db}
}

func (r *conversionRepository) Insert(ctx context.Context, conversion *models.Conversion) (models.InsertOutcome, error) {
	query := `
		INSERT INTO callbacks (id, property_id, offer_id, user_id, level, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		conversion.ID,
		conversion.PropertyID,
		conversion.OfferID,
		conversion.UserID,
		conversion.Level,
		conversion.Status,
		conversion.CreatedAt,
	)

	switch {
	case err == nil:
		return models.OutcomeInserted, nil
	case isUniqueViolation(err, conversionTupleIndex):
		return models.OutcomeConflict, nil
	case isForeignKeyViolation(err):
		return models.OutcomeForeignKeyViolation, fmt.Errorf("failed to record conversion: %w", err)
	default:
		return models.OutcomeFailed, fmt.Errorf("failed to record conversion: %w", err)
	}
}

func (r *conversionRepository) List(ctx context.Context, filter models.ConversionFilter) ([]models.ConversionWithRelations, int64, error) {
	where, args := conversionFilterClause(filter)

	var total int64
	countQuery := `
		SELECT COUNT(*)
		FROM callbacks c
		JOIN properties p ON p.id = c.property_id
		LEFT JOIN offers o ON o.id = c.offer_id
	` + where

	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count conversions: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT c.id, c.property_id, c.offer_id, c.user_id, c.level, c.status, c.created_at,
			o.title, p.name
		FROM callbacks c
		JOIN properties p ON p.id = c.property_id
		LEFT JOIN offers o ON o.id = c.offer_id
		%s
		ORDER BY c.created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversions: %w", err)
	}
	defer rows.Close()

	conversions := []models.ConversionWithRelations{}
	for rows.Next() {
		var c models.ConversionWithRelations
		err := rows.Scan(
			&c.ID,
			&c.PropertyID,
			&c.OfferID,
			&c.UserID,
			&c.Level,
			&c.Status,
			&c.CreatedAt,
			&c.OfferName,
			&c.PropertyName,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan conversion: %w", err)
		}
		conversions = append(conversions, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating conversions: %w", err)
	}

	return conversions, total, nil
}

func (r *conversionRepository) GetStats(ctx context.Context, ownerID string) (*models.ConversionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE c.status = $2),
			COUNT(*) FILTER (WHERE c.status = $3),
			COUNT(DISTINCT c.offer_id)
		FROM callbacks c
		JOIN properties p ON p.id = c.property_id
		WHERE p.owner_id = $1
	`

	stats := &models.ConversionStats{}
	err := r.db.Pool.QueryRow(ctx, query, ownerID, models.ConversionCompleted, models.ConversionPending).Scan(
		&stats.Total,
		&stats.Completed,
		&stats.Pending,
		&stats.UniqueOffers,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion stats: %w", err)
	}

	return stats, nil
}

func conversionFilterClause(filter models.ConversionFilter) (string, []any) {
	conditions := []string{"p.owner_id = $1"}
	args := []any{filter.OwnerID}

	if f := strings.TrimSpace(filter.PropertyFilter); f != "" {
		args = append(args, containsPattern(f))
		conditions = append(conditions, fmt.Sprintf(`p.name ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if f := strings.TrimSpace(filter.OfferFilter); f != "" {
		args = append(args, containsPattern(f))
		conditions = append(conditions, fmt.Sprintf(`o.title ILIKE $%d ESCAPE '\'`, len(args)))
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern фильтр ищется как подстрока, % и _ из ввода не шаблоны
func containsPattern(filter string) string {
	return "%" + likeEscaper.Replace(filter) + "%"
}

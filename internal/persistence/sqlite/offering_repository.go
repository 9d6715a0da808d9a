package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"

	"github.com/example/gym-reservations/internal/persistence"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OfferingRepository implements persistence.OfferingRepository using SQLite
type OfferingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewOfferingRepository creates a new SQLite offering repository
func NewOfferingRepository(pool *ConnectionPool) *OfferingRepository {
	return &OfferingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

var offeringColumns = []any{
	"id", "title", "description", "category", "price_cents", "duration_minutes",
	"features", "image_url", "is_active", "display_order", "created_at", "updated_at",
}

// CreateOffering inserts a new offering
func (r *OfferingRepository) CreateOffering(ctx context.Context, offering persistence.Offering) error {
	if offering.ID == "" || offering.PriceCents < 0 {
		return persistence.ErrConstraintViolation
	}

	features, err := encodeFeatures(offering.Features)
	if err != nil {
		return err
	}

	_, err = r.helper.Exec(ctx, `
		INSERT INTO offerings (id, title, description, category, price_cents, duration_minutes,
		                       features, image_url, is_active, display_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		offering.ID,
		offering.Title,
		offering.Description,
		offering.Category,
		offering.PriceCents,
		nullInt(offering.DurationMinutes),
		features,
		nullString(offering.ImageURL),
		boolToInt(offering.IsActive),
		offering.DisplayOrder,
		formatTime(offering.CreatedAt),
		formatTime(offering.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateOffering updates an existing offering
func (r *OfferingRepository) UpdateOffering(ctx context.Context, offering persistence.Offering) error {
	if offering.ID == "" || offering.PriceCents < 0 {
		return persistence.ErrConstraintViolation
	}

	features, err := encodeFeatures(offering.Features)
	if err != nil {
		return err
	}

	return r.helper.ExecAffected(ctx, r.pool.DB(), `
		UPDATE offerings
		SET title = ?, description = ?, category = ?, price_cents = ?, duration_minutes = ?,
		    features = ?, image_url = ?, is_active = ?, display_order = ?, updated_at = ?
		WHERE id = ?
	`,
		offering.Title,
		offering.Description,
		offering.Category,
		offering.PriceCents,
		nullInt(offering.DurationMinutes),
		features,
		nullString(offering.ImageURL),
		boolToInt(offering.IsActive),
		offering.DisplayOrder,
		formatTime(offering.UpdatedAt),
		offering.ID,
	)
}

// GetOffering retrieves an offering by ID
func (r *OfferingRepository) GetOffering(ctx context.Context, id string) (persistence.Offering, error) {
	query, args, err := dialect.From("offerings").
		Select(offeringColumns...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return persistence.Offering{}, fmt.Errorf("sqlite: build offering query: %w", err)
	}

	offering, err := scanOffering(r.helper.QueryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Offering{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Offering{}, r.mapper.MapError(err)
	}
	return offering, nil
}

// ListOfferings returns offerings ordered by category, display order, then title
func (r *OfferingRepository) ListOfferings(ctx context.Context, includeInactive bool) ([]persistence.Offering, error) {
	ds := dialect.From("offerings").Select(offeringColumns...)
	if !includeInactive {
		ds = ds.Where(goqu.C("is_active").Eq(1))
	}
	ds = ds.Order(goqu.C("category").Asc(), goqu.C("display_order").Asc(), goqu.C("title").Asc())

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build offering list query: %w", err)
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	offerings := make([]persistence.Offering, 0)
	for rows.Next() {
		offering, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		offerings = append(offerings, offering)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return offerings, nil
}

// DeleteOffering removes an offering by ID
func (r *OfferingRepository) DeleteOffering(ctx context.Context, id string) error {
	return r.helper.ExecAffected(ctx, r.pool.DB(), `DELETE FROM offerings WHERE id = ?`, id)
}

// NextDisplayOrder returns one past the highest display order used in the category
func (r *OfferingRepository) NextDisplayOrder(ctx context.Context, category string) (int, error) {
	return r.helper.Count(ctx, r.pool.DB(),
		`SELECT COALESCE(MAX(display_order), 0) + 1 FROM offerings WHERE category = ?`, category)
}

// ReorderOfferings assigns display orders 1..n following ids in one transaction
func (r *OfferingRepository) ReorderOfferings(ctx context.Context, category string, ids []string, updatedAt time.Time) error {
	return r.pool.WithTransaction(ctx, func(q Queryer) error {
		for i, id := range ids {
			var current string
			err := q.QueryRowContext(ctx, `SELECT category FROM offerings WHERE id = ?`, id).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return persistence.ErrNotFound
			}
			if err != nil {
				return r.mapper.MapError(err)
			}
			if current != category {
				return persistence.ErrConstraintViolation
			}

			if err := r.helper.ExecAffected(ctx, q,
				`UPDATE offerings SET display_order = ?, updated_at = ? WHERE id = ?`,
				i+1, formatTime(updatedAt), id,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountActiveOfferings reports the number of active offerings
func (r *OfferingRepository) CountActiveOfferings(ctx context.Context) (int, error) {
	return r.helper.Count(ctx, r.pool.DB(), `SELECT COUNT(*) FROM offerings WHERE is_active = 1`)
}

func encodeFeatures(features []string) (string, error) {
	if len(features) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(features)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode features: %w", err)
	}
	return string(encoded), nil
}

func scanOffering(row rowScanner) (persistence.Offering, error) {
	var (
		offering                   persistence.Offering
		duration                   sql.NullInt64
		features                   string
		imageURL                   sql.NullString
		isActive                   int
		createdAtStr, updatedAtStr string
	)
	if err := row.Scan(
		&offering.ID,
		&offering.Title,
		&offering.Description,
		&offering.Category,
		&offering.PriceCents,
		&duration,
		&features,
		&imageURL,
		&isActive,
		&offering.DisplayOrder,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return persistence.Offering{}, err
	}

	offering.DurationMinutes = intPtr(duration)
	offering.ImageURL = stringPtr(imageURL)
	offering.IsActive = isActive != 0
	if err := json.Unmarshal([]byte(features), &offering.Features); err != nil {
		return persistence.Offering{}, fmt.Errorf("failed to decode features: %w", err)
	}

	var err error
	if offering.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Offering{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if offering.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return persistence.Offering{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return offering, nil
}

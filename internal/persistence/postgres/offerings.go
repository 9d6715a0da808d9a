package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/example/gym-reservations/internal/persistence"
)

var offeringColumns = []any{
	"id", "title", "description", "category", "price_cents", "duration_minutes",
	"features", "image_url", "is_active", "display_order", "created_at", "updated_at",
}

// CreateOffering inserts a new offering.
func (s *Store) CreateOffering(ctx context.Context, offering persistence.Offering) error {
	if offering.ID == "" || offering.PriceCents < 0 {
		return persistence.ErrConstraintViolation
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO offerings (id, title, description, category, price_cents, duration_minutes,
		                       features, image_url, is_active, display_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		offering.ID, offering.Title, offering.Description, offering.Category, offering.PriceCents,
		offering.DurationMinutes, features(offering.Features), offering.ImageURL, offering.IsActive,
		offering.DisplayOrder, utc(offering.CreatedAt), utc(offering.UpdatedAt),
	)
	return mapError(err)
}

// UpdateOffering replaces the mutable fields of an offering.
func (s *Store) UpdateOffering(ctx context.Context, offering persistence.Offering) error {
	if offering.ID == "" || offering.PriceCents < 0 {
		return persistence.ErrConstraintViolation
	}
	return execAffected(ctx, s.pool, `
		UPDATE offerings
		SET title = $1, description = $2, category = $3, price_cents = $4, duration_minutes = $5,
		    features = $6, image_url = $7, is_active = $8, display_order = $9, updated_at = $10
		WHERE id = $11
	`,
		offering.Title, offering.Description, offering.Category, offering.PriceCents,
		offering.DurationMinutes, features(offering.Features), offering.ImageURL, offering.IsActive,
		offering.DisplayOrder, utc(offering.UpdatedAt), offering.ID,
	)
}

// GetOffering retrieves an offering by ID.
func (s *Store) GetOffering(ctx context.Context, id string) (persistence.Offering, error) {
	query, args, err := dialect.From("offerings").
		Select(offeringColumns...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return persistence.Offering{}, fmt.Errorf("postgres: build offering query: %w", err)
	}

	offering, err := scanOffering(s.pool.QueryRow(ctx, query, args...))
	if notFound(err) {
		return persistence.Offering{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Offering{}, mapError(err)
	}
	return offering, nil
}

// ListOfferings returns offerings ordered by category, display order, then title.
func (s *Store) ListOfferings(ctx context.Context, includeInactive bool) ([]persistence.Offering, error) {
	ds := dialect.From("offerings").Select(offeringColumns...)
	if !includeInactive {
		ds = ds.Where(goqu.C("is_active").IsTrue())
	}
	ds = ds.Order(goqu.C("category").Asc(), goqu.C("display_order").Asc(), goqu.C("title").Asc())

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build offering list query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	offerings := make([]persistence.Offering, 0)
	for rows.Next() {
		offering, err := scanOffering(rows)
		if err != nil {
			return nil, mapError(err)
		}
		offerings = append(offerings, offering)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return offerings, nil
}

// DeleteOffering removes an offering by ID.
func (s *Store) DeleteOffering(ctx context.Context, id string) error {
	return execAffected(ctx, s.pool, `DELETE FROM offerings WHERE id = $1`, id)
}

// NextDisplayOrder returns one past the highest display order used in the category.
func (s *Store) NextDisplayOrder(ctx context.Context, category string) (int, error) {
	return count(ctx, s.pool, `SELECT COALESCE(MAX(display_order), 0) + 1 FROM offerings WHERE category = $1`, category)
}

// ReorderOfferings assigns display orders 1..n following ids in one transaction.
func (s *Store) ReorderOfferings(ctx context.Context, category string, ids []string, updatedAt time.Time) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		for i, id := range ids {
			var current string
			err := tx.QueryRow(ctx, `SELECT category FROM offerings WHERE id = $1 FOR UPDATE`, id).Scan(&current)
			if notFound(err) {
				return persistence.ErrNotFound
			}
			if err != nil {
				return mapError(err)
			}
			if current != category {
				return persistence.ErrConstraintViolation
			}
			if err := execAffected(ctx, tx,
				`UPDATE offerings SET display_order = $1, updated_at = $2 WHERE id = $3`,
				i+1, utc(updatedAt), id,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountActiveOfferings reports the number of active offerings.
func (s *Store) CountActiveOfferings(ctx context.Context) (int, error) {
	return count(ctx, s.pool, `SELECT COUNT(*) FROM offerings WHERE is_active`)
}

// features keeps NULL out of the NOT NULL array column.
func features(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func scanOffering(row rowScanner) (persistence.Offering, error) {
	var offering persistence.Offering
	err := row.Scan(
		&offering.ID,
		&offering.Title,
		&offering.Description,
		&offering.Category,
		&offering.PriceCents,
		&offering.DurationMinutes,
		&offering.Features,
		&offering.ImageURL,
		&offering.IsActive,
		&offering.DisplayOrder,
		&offering.CreatedAt,
		&offering.UpdatedAt,
	)
	if len(offering.Features) == 0 {
		offering.Features = nil
	}
	offering.CreatedAt = utc(offering.CreatedAt)
	offering.UpdatedAt = utc(offering.UpdatedAt)
	return offering, err
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/gym-reservations/internal/persistence"
)

// OfferingRepository captures the persistence operations needed by the offering service.
type OfferingRepository interface {
	CreateOffering(ctx context.Context, offering Offering) (Offering, error)
	UpdateOffering(ctx context.Context, offering Offering) (Offering, error)
	GetOffering(ctx context.Context, id string) (Offering, error)
	ListOfferings(ctx context.Context, includeInactive bool) ([]Offering, error)
	DeleteOffering(ctx context.Context, id string) error
	NextDisplayOrder(ctx context.Context, category string) (int, error)
	ReorderOfferings(ctx context.Context, category string, ids []string, updatedAt time.Time) error
}

// OfferingService manages the catalogue of gym services.
type OfferingService struct {
	offerings   OfferingRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewOfferingService constructs an offering service with the provided dependencies.
func NewOfferingService(offerings OfferingRepository, idGenerator func() string, now func() time.Time) *OfferingService {
	return NewOfferingServiceWithLogger(offerings, idGenerator, now, nil)
}

// NewOfferingServiceWithLogger constructs an offering service with a specified logger.
func NewOfferingServiceWithLogger(offerings OfferingRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *OfferingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &OfferingService{offerings: offerings, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *OfferingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "OfferingService", operation, attrs...)
}

// ListOfferings returns offerings ordered by category then display order.
// Inactive offerings are listed for administrators only.
func (s *OfferingService) ListOfferings(ctx context.Context, params ListOfferingsParams) (offerings []Offering, err error) {
	if s == nil {
		err = fmt.Errorf("OfferingService is nil")
		return
	}
	if s.offerings == nil {
		err = fmt.Errorf("offering repository not configured")
		return
	}

	category := strings.TrimSpace(params.Category)
	logger := s.loggerWith(ctx, "ListOfferings",
		"include_inactive", params.IncludeInactive,
		"category", category,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list offerings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(offerings)).DebugContext(ctx, "offerings listed")
	}()

	if params.IncludeInactive && !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	var all []Offering
	all, err = s.offerings.ListOfferings(ctx, params.IncludeInactive)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	if category == "" {
		offerings = all
		return
	}
	offerings = make([]Offering, 0, len(all))
	for _, offering := range all {
		if offering.Category == category {
			offerings = append(offerings, offering)
		}
	}
	return
}

// GetOffering returns one offering. Inactive offerings are hidden from visitors.
func (s *OfferingService) GetOffering(ctx context.Context, principal Principal, offeringID string) (offering Offering, err error) {
	if s == nil {
		err = fmt.Errorf("OfferingService is nil")
		return
	}
	if s.offerings == nil {
		err = fmt.Errorf("offering repository not configured")
		return
	}

	offering, err = s.offerings.GetOffering(ctx, strings.TrimSpace(offeringID))
	if err == nil && !offering.IsActive && !principal.IsAdmin {
		offering, err = Offering{}, ErrNotFound
	}
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "GetOffering", "offering_id", offeringID).
			ErrorContext(ctx, "failed to get offering", "error", err, "error_kind", ErrorKind(err))
	}
	return
}

// CreateOffering validates input and persists a new offering for administrators.
// Without an explicit display order it is placed last in its category.
func (s *OfferingService) CreateOffering(ctx context.Context, params CreateOfferingParams) (offering Offering, err error) {
	if s == nil {
		err = fmt.Errorf("OfferingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateOffering", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create offering", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("offering_id", offering.ID).InfoContext(ctx, "offering created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.offerings == nil {
		err = fmt.Errorf("offering repository not configured")
		return
	}

	input := normalizeOfferingInput(params.Input)
	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	order := 0
	if input.DisplayOrder != nil {
		order = *input.DisplayOrder
	} else {
		order, err = s.offerings.NextDisplayOrder(ctx, input.Category)
		if err != nil {
			err = mapStoreError(err)
			return
		}
	}

	now := s.now()
	candidate := Offering{
		ID:              s.idGenerator(),
		Title:           input.Title,
		Description:     input.Description,
		Category:        input.Category,
		PriceCents:      input.PriceCents,
		DurationMinutes: input.DurationMinutes,
		Features:        input.Features,
		ImageURL:        input.ImageURL,
		IsActive:        input.IsActive == nil || *input.IsActive,
		DisplayOrder:    order,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	offering, err = s.offerings.CreateOffering(ctx, candidate)
	if err != nil {
		err = mapOfferingRepoError(err)
		return
	}
	return
}

// UpdateOffering validates input and replaces an existing offering for administrators.
func (s *OfferingService) UpdateOffering(ctx context.Context, params UpdateOfferingParams) (offering Offering, err error) {
	if s == nil {
		err = fmt.Errorf("OfferingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateOffering",
		"principal_id", params.Principal.UserID,
		"offering_id", params.OfferingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update offering", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "offering updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.offerings == nil {
		err = fmt.Errorf("offering repository not configured")
		return
	}

	var existing Offering
	existing, err = s.offerings.GetOffering(ctx, strings.TrimSpace(params.OfferingID))
	if err != nil {
		err = mapOfferingRepoError(err)
		return
	}

	input := normalizeOfferingInput(params.Input)
	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Title = input.Title
	updated.Description = input.Description
	updated.Category = input.Category
	updated.PriceCents = input.PriceCents
	updated.DurationMinutes = input.DurationMinutes
	updated.Features = input.Features
	updated.ImageURL = input.ImageURL
	if input.IsActive != nil {
		updated.IsActive = *input.IsActive
	}
	if input.DisplayOrder != nil {
		updated.DisplayOrder = *input.DisplayOrder
	}
	updated.UpdatedAt = s.now()

	offering, err = s.offerings.UpdateOffering(ctx, updated)
	if err != nil {
		err = mapOfferingRepoError(err)
		return
	}
	return
}

// DeleteOffering removes an offering for administrators.
func (s *OfferingService) DeleteOffering(ctx context.Context, principal Principal, offeringID string) error {
	if s == nil {
		return fmt.Errorf("OfferingService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.offerings == nil {
		return fmt.Errorf("offering repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteOffering",
		"principal_id", principal.UserID,
		"offering_id", offeringID,
	)

	if err := s.offerings.DeleteOffering(ctx, strings.TrimSpace(offeringID)); err != nil {
		err = mapOfferingRepoError(err)
		logger.ErrorContext(ctx, "failed to delete offering", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "offering deleted")
	return nil
}

// ReorderOfferings assigns display orders 1..n to the ids of one category in the given order.
func (s *OfferingService) ReorderOfferings(ctx context.Context, params ReorderOfferingsParams) (err error) {
	if s == nil {
		return fmt.Errorf("OfferingService is nil")
	}

	category := strings.TrimSpace(params.Category)
	logger := s.loggerWith(ctx, "ReorderOfferings",
		"principal_id", params.Principal.UserID,
		"category", category,
		"count", len(params.IDs),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to reorder offerings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "offerings reordered")
	}()

	if !params.Principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.offerings == nil {
		return fmt.Errorf("offering repository not configured")
	}

	vErr := &ValidationError{}
	if category == "" {
		vErr.add("category", "category is required")
	}
	if len(params.IDs) == 0 {
		vErr.add("ids", "ids must not be empty")
	}
	ids := make([]string, 0, len(params.IDs))
	seen := make(map[string]struct{}, len(params.IDs))
	for _, id := range params.IDs {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup || id == "" {
			vErr.add("ids", "ids must be unique and non-empty")
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if vErr.HasErrors() {
		return vErr
	}

	err = s.offerings.ReorderOfferings(ctx, category, ids, s.now())
	switch {
	case errors.Is(err, persistence.ErrConstraintViolation):
		err = fieldError("ids", "every id must belong to category "+category)
	case errors.Is(err, persistence.ErrNotFound):
		err = fieldError("ids", "unknown offering id")
	default:
		err = mapStoreError(err)
	}
	return err
}

func normalizeOfferingInput(input OfferingInput) OfferingInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	input.ImageURL = normalizeOptionalString(input.ImageURL)
	if input.Features != nil {
		features := make([]string, 0, len(input.Features))
		for _, feature := range input.Features {
			features = append(features, strings.TrimSpace(feature))
		}
		input.Features = features
	}
	return input
}

func mapOfferingRepoError(err error) error {
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return fieldError("price", "must be at least 0")
	}
	return mapStoreError(err)
}

package main

import (
	"context"
	"time"

	"github.com/example/gym-reservations/internal/application"
	"github.com/example/gym-reservations/internal/persistence"
)

type lessonRepositoryAdapter struct {
	repo persistence.LessonRepository
}

func newLessonRepositoryAdapter(repo persistence.LessonRepository) *lessonRepositoryAdapter {
	return &lessonRepositoryAdapter{repo: repo}
}

func (a *lessonRepositoryAdapter) CreateLesson(ctx context.Context, lesson application.Lesson) (application.Lesson, error) {
	if err := a.repo.CreateLesson(ctx, toPersistenceLesson(lesson)); err != nil {
		return application.Lesson{}, err
	}
	return a.GetLesson(ctx, lesson.ID)
}

func (a *lessonRepositoryAdapter) UpdateLesson(ctx context.Context, lesson application.Lesson) (application.Lesson, error) {
	if err := a.repo.UpdateLesson(ctx, toPersistenceLesson(lesson)); err != nil {
		return application.Lesson{}, err
	}
	return a.GetLesson(ctx, lesson.ID)
}

func (a *lessonRepositoryAdapter) GetLesson(ctx context.Context, id string) (application.Lesson, error) {
	stored, err := a.repo.GetLesson(ctx, id)
	if err != nil {
		return application.Lesson{}, err
	}
	return toApplicationLesson(stored), nil
}

func (a *lessonRepositoryAdapter) ListLessons(ctx context.Context) ([]application.Lesson, error) {
	models, err := a.repo.ListLessons(ctx)
	if err != nil {
		return nil, err
	}
	lessons := make([]application.Lesson, 0, len(models))
	for _, model := range models {
		lessons = append(lessons, toApplicationLesson(model))
	}
	return lessons, nil
}

func (a *lessonRepositoryAdapter) DeleteLesson(ctx context.Context, id string) error {
	return a.repo.DeleteLesson(ctx, id)
}

type reservationStoreAdapter struct {
	repo persistence.ReservationRepository
}

func newReservationStoreAdapter(repo persistence.ReservationRepository) *reservationStoreAdapter {
	return &reservationStoreAdapter{repo: repo}
}

func (a *reservationStoreAdapter) WithAdmission(ctx context.Context, lessonID, lessonDate string, fn func(tx application.AdmissionTx) error) error {
	return a.repo.WithBookingLock(ctx, lessonID, lessonDate, func(tx persistence.BookingTx) error {
		return fn(admissionTxAdapter{tx: tx})
	})
}

func (a *reservationStoreAdapter) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationStoreAdapter) ListReservations(ctx context.Context, filter application.ReservationFilter) ([]application.Reservation, error) {
	models, err := a.repo.ListReservations(ctx, persistence.ReservationFilter{
		LessonID:   filter.LessonID,
		LessonDate: filter.LessonDate,
		Status:     filter.Status,
	})
	if err != nil {
		return nil, err
	}
	reservations := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		reservations = append(reservations, toApplicationReservation(model))
	}
	return reservations, nil
}

func (a *reservationStoreAdapter) CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error) {
	return a.repo.CountConfirmed(ctx, lessonID, lessonDate)
}

func (a *reservationStoreAdapter) CountAllForLesson(ctx context.Context, lessonID string) (int, error) {
	return a.repo.CountAllForLesson(ctx, lessonID)
}

func (a *reservationStoreAdapter) CountConfirmedBetween(ctx context.Context, fromDate, toDate string) (int, error) {
	return a.repo.CountConfirmedBetween(ctx, fromDate, toDate)
}

func (a *reservationStoreAdapter) PopularLessons(ctx context.Context, limit int) ([]application.LessonCount, error) {
	models, err := a.repo.PopularLessons(ctx, limit)
	if err != nil {
		return nil, err
	}
	counts := make([]application.LessonCount, 0, len(models))
	for _, model := range models {
		counts = append(counts, application.LessonCount{LessonID: model.LessonID, Title: model.Title, Count: model.Count})
	}
	return counts, nil
}

func (a *reservationStoreAdapter) RecentConfirmed(ctx context.Context, limit int) ([]application.RecentReservation, error) {
	models, err := a.repo.RecentConfirmed(ctx, limit)
	if err != nil {
		return nil, err
	}
	recent := make([]application.RecentReservation, 0, len(models))
	for _, model := range models {
		recent = append(recent, application.RecentReservation{
			Reservation: toApplicationReservation(model.Reservation),
			LessonTitle: model.LessonTitle,
		})
	}
	return recent, nil
}

func (a *reservationStoreAdapter) CancelReservation(ctx context.Context, lessonID, lessonDate, email string, cancelledAt time.Time) (application.Reservation, error) {
	stored, err := a.repo.CancelReservation(ctx, lessonID, lessonDate, email, cancelledAt)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationStoreAdapter) DeleteReservation(ctx context.Context, id string) error {
	return a.repo.DeleteReservation(ctx, id)
}

// admissionTxAdapter exposes a persistence.BookingTx as an application.AdmissionTx.
type admissionTxAdapter struct {
	tx persistence.BookingTx
}

func (a admissionTxAdapter) GetLesson(ctx context.Context, id string) (application.Lesson, error) {
	stored, err := a.tx.GetLesson(ctx, id)
	if err != nil {
		return application.Lesson{}, err
	}
	return toApplicationLesson(stored), nil
}

func (a admissionTxAdapter) CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error) {
	return a.tx.CountConfirmed(ctx, lessonID, lessonDate)
}

func (a admissionTxAdapter) ExistsConfirmedForEmail(ctx context.Context, lessonID, lessonDate, email string) (bool, error) {
	return a.tx.ExistsConfirmedForEmail(ctx, lessonID, lessonDate, email)
}

// InsertReservation returns the reservation as written. The row cannot be read
// back until the surrounding lock commits.
func (a admissionTxAdapter) InsertReservation(ctx context.Context, reservation application.Reservation) (application.Reservation, error) {
	if err := a.tx.InsertReservation(ctx, toPersistenceReservation(reservation)); err != nil {
		return application.Reservation{}, err
	}
	return reservation, nil
}

type offeringRepositoryAdapter struct {
	repo persistence.OfferingRepository
}

func newOfferingRepositoryAdapter(repo persistence.OfferingRepository) *offeringRepositoryAdapter {
	return &offeringRepositoryAdapter{repo: repo}
}

func (a *offeringRepositoryAdapter) CreateOffering(ctx context.Context, offering application.Offering) (application.Offering, error) {
	if err := a.repo.CreateOffering(ctx, toPersistenceOffering(offering)); err != nil {
		return application.Offering{}, err
	}
	return a.GetOffering(ctx, offering.ID)
}

func (a *offeringRepositoryAdapter) UpdateOffering(ctx context.Context, offering application.Offering) (application.Offering, error) {
	if err := a.repo.UpdateOffering(ctx, toPersistenceOffering(offering)); err != nil {
		return application.Offering{}, err
	}
	return a.GetOffering(ctx, offering.ID)
}

func (a *offeringRepositoryAdapter) GetOffering(ctx context.Context, id string) (application.Offering, error) {
	stored, err := a.repo.GetOffering(ctx, id)
	if err != nil {
		return application.Offering{}, err
	}
	return toApplicationOffering(stored), nil
}

func (a *offeringRepositoryAdapter) ListOfferings(ctx context.Context, includeInactive bool) ([]application.Offering, error) {
	models, err := a.repo.ListOfferings(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	offerings := make([]application.Offering, 0, len(models))
	for _, model := range models {
		offerings = append(offerings, toApplicationOffering(model))
	}
	return offerings, nil
}

func (a *offeringRepositoryAdapter) DeleteOffering(ctx context.Context, id string) error {
	return a.repo.DeleteOffering(ctx, id)
}

func (a *offeringRepositoryAdapter) NextDisplayOrder(ctx context.Context, category string) (int, error) {
	return a.repo.NextDisplayOrder(ctx, category)
}

func (a *offeringRepositoryAdapter) ReorderOfferings(ctx context.Context, category string, ids []string, updatedAt time.Time) error {
	return a.repo.ReorderOfferings(ctx, category, ids, updatedAt)
}

type dashboardStoreAdapter struct {
	lessons      persistence.LessonRepository
	reservations *reservationStoreAdapter
	offerings    persistence.OfferingRepository
}

func newDashboardStoreAdapter(store persistence.Store) *dashboardStoreAdapter {
	return &dashboardStoreAdapter{
		lessons:      store,
		reservations: newReservationStoreAdapter(store),
		offerings:    store,
	}
}

func (a *dashboardStoreAdapter) CountLessons(ctx context.Context) (int, error) {
	return a.lessons.CountLessons(ctx)
}

func (a *dashboardStoreAdapter) CountConfirmedBetween(ctx context.Context, fromDate, toDate string) (int, error) {
	return a.reservations.CountConfirmedBetween(ctx, fromDate, toDate)
}

func (a *dashboardStoreAdapter) CountActiveOfferings(ctx context.Context) (int, error) {
	return a.offerings.CountActiveOfferings(ctx)
}

func (a *dashboardStoreAdapter) RecentConfirmed(ctx context.Context, limit int) ([]application.RecentReservation, error) {
	return a.reservations.RecentConfirmed(ctx, limit)
}

type adminStoreAdapter struct {
	repo persistence.AdminRepository
}

func newAdminStoreAdapter(repo persistence.AdminRepository) *adminStoreAdapter {
	return &adminStoreAdapter{repo: repo}
}

func (a *adminStoreAdapter) CreateAdmin(ctx context.Context, admin application.AdminUser) (application.AdminUser, error) {
	if err := a.repo.CreateAdmin(ctx, toPersistenceAdmin(admin)); err != nil {
		return application.AdminUser{}, err
	}
	return a.GetAdmin(ctx, admin.ID)
}

func (a *adminStoreAdapter) GetAdmin(ctx context.Context, id string) (application.AdminUser, error) {
	stored, err := a.repo.GetAdmin(ctx, id)
	if err != nil {
		return application.AdminUser{}, err
	}
	return toApplicationAdmin(stored), nil
}

func (a *adminStoreAdapter) GetAdminByUsername(ctx context.Context, username string) (application.AdminUser, error) {
	stored, err := a.repo.GetAdminByUsername(ctx, username)
	if err != nil {
		return application.AdminUser{}, err
	}
	return toApplicationAdmin(stored), nil
}

func (a *adminStoreAdapter) RecordLoginFailure(ctx context.Context, id string, at time.Time) error {
	return a.repo.RecordLoginFailure(ctx, id, at)
}

func (a *adminStoreAdapter) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return a.repo.RecordLoginSuccess(ctx, id, at)
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

func toApplicationLesson(model persistence.Lesson) application.Lesson {
	return application.Lesson{
		ID:           model.ID,
		Title:        model.Title,
		Time:         model.Time,
		Trainer:      model.Trainer,
		Spots:        model.Spots,
		DayOfWeek:    cloneInt(model.DayOfWeek),
		SpecificDate: cloneString(model.SpecificDate),
		Description:  cloneString(model.Description),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toPersistenceLesson(lesson application.Lesson) persistence.Lesson {
	return persistence.Lesson{
		ID:           lesson.ID,
		Title:        lesson.Title,
		Time:         lesson.Time,
		Trainer:      lesson.Trainer,
		Spots:        lesson.Spots,
		DayOfWeek:    cloneInt(lesson.DayOfWeek),
		SpecificDate: cloneString(lesson.SpecificDate),
		Description:  cloneString(lesson.Description),
		CreatedAt:    lesson.CreatedAt,
		UpdatedAt:    lesson.UpdatedAt,
	}
}

func toApplicationReservation(model persistence.Reservation) application.Reservation {
	return application.Reservation{
		ID:         model.ID,
		LessonID:   model.LessonID,
		LessonDate: model.LessonDate,
		Participant: application.Participant{
			Name:  model.ParticipantName,
			Email: model.ParticipantEmail,
			Phone: cloneString(model.ParticipantPhone),
			Notes: cloneString(model.Notes),
		},
		Status:    model.Status,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceReservation(reservation application.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:               reservation.ID,
		LessonID:         reservation.LessonID,
		LessonDate:       reservation.LessonDate,
		ParticipantName:  reservation.Participant.Name,
		ParticipantEmail: reservation.Participant.Email,
		ParticipantPhone: cloneString(reservation.Participant.Phone),
		Notes:            cloneString(reservation.Participant.Notes),
		Status:           reservation.Status,
		CreatedAt:        reservation.CreatedAt,
		UpdatedAt:        reservation.UpdatedAt,
	}
}

func toApplicationOffering(model persistence.Offering) application.Offering {
	return application.Offering{
		ID:              model.ID,
		Title:           model.Title,
		Description:     model.Description,
		Category:        model.Category,
		PriceCents:      model.PriceCents,
		DurationMinutes: cloneInt(model.DurationMinutes),
		Features:        append([]string(nil), model.Features...),
		ImageURL:        cloneString(model.ImageURL),
		IsActive:        model.IsActive,
		DisplayOrder:    model.DisplayOrder,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceOffering(offering application.Offering) persistence.Offering {
	return persistence.Offering{
		ID:              offering.ID,
		Title:           offering.Title,
		Description:     offering.Description,
		Category:        offering.Category,
		PriceCents:      offering.PriceCents,
		DurationMinutes: cloneInt(offering.DurationMinutes),
		Features:        append([]string(nil), offering.Features...),
		ImageURL:        cloneString(offering.ImageURL),
		IsActive:        offering.IsActive,
		DisplayOrder:    offering.DisplayOrder,
		CreatedAt:       offering.CreatedAt,
		UpdatedAt:       offering.UpdatedAt,
	}
}

func toApplicationAdmin(model persistence.AdminUser) application.AdminUser {
	return application.AdminUser{
		ID:                  model.ID,
		Username:            model.Username,
		Email:               model.Email,
		PasswordHash:        model.PasswordHash,
		Role:                model.Role,
		IsActive:            model.IsActive,
		FailedLoginAttempts: model.FailedLoginAttempts,
		LastFailedLogin:     cloneTime(model.LastFailedLogin),
		LastLogin:           cloneTime(model.LastLogin),
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
}

func toPersistenceAdmin(admin application.AdminUser) persistence.AdminUser {
	return persistence.AdminUser{
		ID:                  admin.ID,
		Username:            admin.Username,
		Email:               admin.Email,
		PasswordHash:        admin.PasswordHash,
		Role:                admin.Role,
		IsActive:            admin.IsActive,
		FailedLoginAttempts: admin.FailedLoginAttempts,
		LastFailedLogin:     cloneTime(admin.LastFailedLogin),
		LastLogin:           cloneTime(admin.LastLogin),
		CreatedAt:           admin.CreatedAt,
		UpdatedAt:           admin.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:        model.ID,
		AdminID:   model.AdminID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		AdminID:   session.AdminID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

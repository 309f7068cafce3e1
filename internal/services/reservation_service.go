package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"biblio/internal/events"
	"biblio/internal/metrics"
	"biblio/internal/models"
	"biblio/internal/repositories"
)

type CreateReservationInput struct {
	ClientID uuid.UUID
	BookID   uuid.UUID
	DueAt    time.Time
}

// UpdateReservationInput patches the non-nil fields as-is. It does not touch
// the book; use Return to close a reservation.
type UpdateReservationInput struct {
	DueAt      *time.Time
	Status     *models.ReservationStatus
	ReturnedAt *time.Time
}

type ClientSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	CPF   string    `json:"cpf"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
}

type BookSummary struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Author string    `json:"author"`
	ISBN   *string   `json:"isbn,omitempty"`
}

// ReservationView is a reservation with its effective status and fine, joined
// with summaries of its client and book.
type ReservationView struct {
	ID         uuid.UUID                `json:"id"`
	ClientID   uuid.UUID                `json:"client_id"`
	BookID     uuid.UUID                `json:"book_id"`
	ReservedAt time.Time                `json:"reserved_at"`
	DueAt      time.Time                `json:"due_at"`
	ReturnedAt *time.Time               `json:"returned_at"`
	Status     models.ReservationStatus `json:"status"`
	Fine       *models.Fine             `json:"fine"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
	Client     *ClientSummary           `json:"client,omitempty"`
	Book       *BookSummary             `json:"book,omitempty"`
}

func newReservationView(r models.Reservation) ReservationView {
	v := ReservationView{
		ID:         r.ID,
		ClientID:   r.ClientID,
		BookID:     r.BookID,
		ReservedAt: r.ReservedAt,
		DueAt:      r.DueAt,
		ReturnedAt: r.ReturnedAt,
		Status:     r.Status,
		Fine:       r.Fine,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.Client.ID != uuid.Nil {
		v.Client = &ClientSummary{
			ID:    r.Client.ID,
			Name:  r.Client.Name,
			CPF:   r.Client.CPF,
			Email: r.Client.Email,
			Phone: r.Client.Phone,
		}
	}
	if r.Book.ID != uuid.Nil {
		v.Book = &BookSummary{
			ID:     r.Book.ID,
			Title:  r.Book.Title,
			Author: r.Book.Author,
			ISBN:   r.Book.ISBN,
		}
	}
	return v
}

// ReservationService runs the reservation lifecycle: active → completed.
// Overdue is never stored; it is derived on every read by the fine policy.
type ReservationService interface {
	Create(ctx context.Context, in CreateReservationInput) (*ReservationView, error)
	FindAll(ctx context.Context, page, limit int, status string) (Page[ReservationView], error)
	FindOverdue(ctx context.Context) ([]ReservationView, error)
	FindByClient(ctx context.Context, clientID uuid.UUID) ([]ReservationView, error)
	FindOne(ctx context.Context, id uuid.UUID) (*ReservationView, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateReservationInput) (*ReservationView, error)
	Return(ctx context.Context, id uuid.UUID) (*ReservationView, error)
	Remove(ctx context.Context, id uuid.UUID) error
	CashReport(ctx context.Context, from, to *time.Time) (*CashReport, error)
}

type reservationService struct {
	db              *gorm.DB
	reservationRepo repositories.ReservationRepository
	clients         ClientService
	books           BookService
	policy          FinePolicy
	publisher       events.Publisher
	metrics         *metrics.Metrics
	logger          *zap.Logger
}

// NewReservationService wires up the lifecycle. publisher and m may be nil.
func NewReservationService(
	db *gorm.DB,
	reservationRepo repositories.ReservationRepository,
	clients ClientService,
	books BookService,
	policy FinePolicy,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) ReservationService {
	if publisher == nil {
		publisher = &events.LogPublisher{Logger: logger}
	}
	return &reservationService{
		db:              db,
		reservationRepo: reservationRepo,
		clients:         clients,
		books:           books,
		policy:          policy,
		publisher:       publisher,
		metrics:         m,
		logger:          logger,
	}
}

// Create opens a reservation:
//  1. the client must exist; the book is not touched otherwise.
//  2. the book is flipped to reserved; an unavailable book aborts the call.
//  3. the reservation is stored as active.
//
// Steps 2 and 3 share one transaction, so a failed insert releases the book.
func (s *reservationService) Create(ctx context.Context, in CreateReservationInput) (*ReservationView, error) {
	if in.DueAt.IsZero() {
		return nil, s.fail("create", ErrInvalidDueDate)
	}
	if _, err := s.clients.FindOne(ctx, in.ClientID); err != nil {
		return nil, s.fail("create", err)
	}

	now := s.policy.now().UTC()
	res := &models.Reservation{
		ClientID:   in.ClientID,
		BookID:     in.BookID,
		ReservedAt: now,
		DueAt:      in.DueAt.UTC(),
		Status:     models.ReservationActive,
		CreatedAt:  now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.books.MarkReserved(ctx, tx, in.BookID); err != nil {
			return err
		}
		if err := s.reservationRepo.Create(tx, res); err != nil {
			return wrapStorage("create reservation", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("create", err)
	}

	s.logger.Info("create reservation: created",
		zap.String("reservation_id", res.ID.String()),
		zap.String("client_id", in.ClientID.String()),
		zap.String("book_id", in.BookID.String()),
		zap.Time("due_at", res.DueAt))
	s.metrics.ReservationCreated()
	s.publish(ctx, events.ReservationCreated, res)

	return s.FindOne(ctx, res.ID)
}

// FindAll lists reservations oldest first. The status "overdue" selects active
// reservations whose due date is before today (UTC); any other non-empty
// status matches the stored column.
func (s *reservationService) FindAll(ctx context.Context, page, limit int, status string) (Page[ReservationView], error) {
	page, limit = normalizePage(page, limit)
	filter := repositories.ReservationFilter{
		Offset: (page - 1) * limit,
		Limit:  limit,
	}
	switch {
	case status == string(models.ReservationOverdue):
		today := s.policy.startOfToday()
		filter.Statuses = []models.ReservationStatus{models.ReservationActive}
		filter.DueBefore = &today
	case status != "":
		filter.Statuses = []models.ReservationStatus{models.ReservationStatus(status)}
	}

	items, total, err := s.reservationRepo.List(s.db.WithContext(ctx), filter)
	if err != nil {
		return Page[ReservationView]{}, s.fail("find_all", wrapStorage("list reservations", err))
	}
	return Page[ReservationView]{Items: s.enrichAll(items), Total: total, Page: page, Limit: limit}, nil
}

// FindOverdue returns every open reservation whose computed status is overdue.
func (s *reservationService) FindOverdue(ctx context.Context) ([]ReservationView, error) {
	items, _, err := s.reservationRepo.List(s.db.WithContext(ctx), repositories.ReservationFilter{
		Statuses: []models.ReservationStatus{models.ReservationActive, models.ReservationOverdue},
	})
	if err != nil {
		return nil, s.fail("find_overdue", wrapStorage("list open reservations", err))
	}

	now := s.policy.now()
	overdue := make([]ReservationView, 0, len(items))
	for _, r := range items {
		e := s.policy.EnrichAt(r, now)
		if e.Status == models.ReservationOverdue {
			overdue = append(overdue, newReservationView(e))
		}
	}
	return overdue, nil
}

func (s *reservationService) FindByClient(ctx context.Context, clientID uuid.UUID) ([]ReservationView, error) {
	items, _, err := s.reservationRepo.List(s.db.WithContext(ctx), repositories.ReservationFilter{ClientID: &clientID})
	if err != nil {
		return nil, s.fail("find_by_client", wrapStorage("list client reservations", err))
	}
	return s.enrichAll(items), nil
}

func (s *reservationService) FindOne(ctx context.Context, id uuid.UUID) (*ReservationView, error) {
	r, err := s.get(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, s.fail("find_one", err)
	}
	v := newReservationView(s.policy.Enrich(*r))
	return &v, nil
}

// Update applies a field patch. Setting the status to overdue is rejected
// because overdue is derived, never stored.
func (s *reservationService) Update(ctx context.Context, id uuid.UUID, in UpdateReservationInput) (*ReservationView, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.get(db, id); err != nil {
		return nil, s.fail("update", err)
	}

	changes := &models.Reservation{}
	var columns []string
	if in.DueAt != nil {
		changes.DueAt = in.DueAt.UTC()
		columns = append(columns, "due_at")
	}
	if in.Status != nil {
		if !in.Status.Valid() || *in.Status == models.ReservationOverdue {
			return nil, s.fail("update", ErrInvalidStatus)
		}
		changes.Status = *in.Status
		columns = append(columns, "status")
	}
	if in.ReturnedAt != nil {
		t := in.ReturnedAt.UTC()
		changes.ReturnedAt = &t
		columns = append(columns, "returned_at")
	}

	if len(columns) > 0 {
		if err := s.reservationRepo.Update(db, id, changes, columns...); err != nil {
			return nil, s.fail("update", wrapStorage("update reservation", err))
		}
	}
	return s.FindOne(ctx, id)
}

// Return closes an open reservation: the book is released and the fine owed
// right now is frozen onto the reservation. Completed reservations cannot be
// returned again.
func (s *reservationService) Return(ctx context.Context, id uuid.UUID) (*ReservationView, error) {
	var closed models.Reservation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.getForUpdate(tx, id)
		if err != nil {
			return err
		}
		if r.Status == models.ReservationCompleted {
			s.logger.Warn("return reservation: already completed", zap.String("reservation_id", id.String()))
			return ErrReservationCompleted
		}

		now := s.policy.now()
		enriched := s.policy.EnrichAt(*r, now)

		returnedAt := now.UTC()
		changes := &models.Reservation{
			Status:     models.ReservationCompleted,
			ReturnedAt: &returnedAt,
			Fine:       enriched.Fine,
		}
		completed, err := s.reservationRepo.CompleteIfOpen(tx, id, changes)
		if err != nil {
			return wrapStorage("complete reservation", err)
		}
		if !completed {
			// Completed by another request after our read; its book may
			// already belong to a newer reservation.
			s.logger.Warn("return reservation: completed concurrently", zap.String("reservation_id", id.String()))
			return ErrReservationCompleted
		}

		book, err := s.books.MarkAvailable(ctx, tx, r.BookID)
		if err != nil {
			return err
		}

		closed = *r
		closed.Book = *book
		closed.Status = changes.Status
		closed.ReturnedAt = changes.ReturnedAt
		closed.Fine = changes.Fine
		return nil
	})
	if err != nil {
		return nil, s.fail("return", err)
	}

	fields := []zap.Field{zap.String("reservation_id", id.String()), zap.String("book_id", closed.BookID.String())}
	if closed.Fine != nil {
		fields = append(fields, zap.Int("days_late", closed.Fine.DaysLate), zap.String("fine", closed.Fine.Total.StringFixed(2)))
		s.metrics.ReservationReturned(&closed.Fine.Total)
	} else {
		s.metrics.ReservationReturned(nil)
	}
	s.logger.Info("return reservation: completed", fields...)
	s.publish(ctx, events.ReservationReturned, &closed)

	v := newReservationView(closed)
	return &v, nil
}

// Remove deletes a reservation and releases its book unless the reservation
// is already completed.
func (s *reservationService) Remove(ctx context.Context, id uuid.UUID) error {
	var removed models.Reservation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.getForUpdate(tx, id)
		if err != nil {
			return err
		}
		removed = s.policy.Enrich(*r)

		if removed.Status != models.ReservationCompleted {
			deleted, err := s.reservationRepo.DeleteIfOpen(tx, id)
			if err != nil {
				return wrapStorage("delete reservation", err)
			}
			if deleted {
				_, err := s.books.MarkAvailable(ctx, tx, r.BookID)
				return err
			}
			// Returned since our read, so the book is no longer ours to release.
			removed.Status = models.ReservationCompleted
		}
		if err := s.reservationRepo.Delete(tx, id); err != nil {
			return wrapStorage("delete reservation", err)
		}
		return nil
	})
	if err != nil {
		return s.fail("remove", err)
	}

	s.logger.Info("remove reservation: deleted",
		zap.String("reservation_id", id.String()),
		zap.String("status", string(removed.Status)))
	s.metrics.ReservationRemoved()
	s.publish(ctx, events.ReservationRemoved, &removed)
	return nil
}

func (s *reservationService) get(db *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	r, err := s.reservationRepo.GetByID(db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, wrapStorage("get reservation", err)
	}
	return r, nil
}

func (s *reservationService) getForUpdate(tx *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	r, err := s.reservationRepo.GetByIDForUpdate(tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, wrapStorage("get reservation", err)
	}
	return r, nil
}

func (s *reservationService) enrichAll(items []models.Reservation) []ReservationView {
	now := s.policy.now()
	views := make([]ReservationView, 0, len(items))
	for _, r := range items {
		views = append(views, newReservationView(s.policy.EnrichAt(r, now)))
	}
	return views
}

// fail records err against op and returns it unchanged.
func (s *reservationService) fail(op string, err error) error {
	kind := KindOf(err)
	s.metrics.OperationFailed(op, kind)
	if kind == "internal" {
		s.logger.Error("reservation "+op+" failed", zap.Error(err))
	} else {
		s.logger.Info("reservation "+op+" rejected", zap.String("kind", kind), zap.Error(err))
	}
	return err
}

// publish emits a lifecycle event. The state change has already committed,
// so a broker failure is logged and not returned.
func (s *reservationService) publish(ctx context.Context, routingKey string, r *models.Reservation) {
	evt := events.ReservationEvent{
		ReservationID: r.ID,
		ClientID:      r.ClientID,
		BookID:        r.BookID,
		Status:        string(r.Status),
		OccurredAt:    s.policy.now().UTC(),
	}
	if r.Fine != nil {
		evt.FineTotal = r.Fine.Total.StringFixed(2)
	}
	if err := s.publisher.Publish(ctx, routingKey, evt); err != nil {
		s.logger.Warn("publish event failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
}

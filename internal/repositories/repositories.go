package repositories

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"biblio/internal/models"
)

// Every repository method accepts an optional *gorm.DB so callers can run it
// inside a transaction; nil falls back to the repository's own handle.

type BookFilter struct {
	Query  string
	Offset int
	Limit  int
}

type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error)
	GetByISBN(db *gorm.DB, isbn string) (*models.Book, error)
	List(db *gorm.DB, filter BookFilter) ([]models.Book, int64, error)
	ListByAvailability(db *gorm.DB, availability models.BookAvailability) ([]models.Book, error)
	Save(db *gorm.DB, book *models.Book) error
	SetAvailabilityIf(db *gorm.DB, id uuid.UUID, from, to models.BookAvailability) (bool, error)
	SetAvailability(db *gorm.DB, id uuid.UUID, to models.BookAvailability) error
	DeleteIfAvailable(db *gorm.DB, id uuid.UUID) (bool, error)
	DeleteAll(db *gorm.DB) error
}

type ClientRepository interface {
	Create(db *gorm.DB, client *models.Client) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Client, error)
	GetByCPF(db *gorm.DB, cpf string) (*models.Client, error)
	List(db *gorm.DB) ([]models.Client, error)
	Save(db *gorm.DB, client *models.Client) error
	Delete(db *gorm.DB, id uuid.UUID) (bool, error)
	DeleteAll(db *gorm.DB) error
}

type ReservationFilter struct {
	Statuses    []models.ReservationStatus
	ClientID    *uuid.UUID
	DueBefore   *time.Time
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	NewestFirst bool
	Offset      int
	Limit       int
}

type ReservationRepository interface {
	Create(db *gorm.DB, reservation *models.Reservation) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Reservation, error)
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Reservation, error)
	List(db *gorm.DB, filter ReservationFilter) ([]models.Reservation, int64, error)
	Update(db *gorm.DB, id uuid.UUID, changes *models.Reservation, columns ...string) error
	CompleteIfOpen(db *gorm.DB, id uuid.UUID, changes *models.Reservation) (bool, error)
	CountOpenByClient(db *gorm.DB, clientID uuid.UUID) (int64, error)
	Delete(db *gorm.DB, id uuid.UUID) error
	DeleteIfOpen(db *gorm.DB, id uuid.UUID) (bool, error)
	DeleteAll(db *gorm.DB) error
}

type UserRepository interface {
	Count(db *gorm.DB) (int64, error)
	Create(db *gorm.DB, user *models.User) error
	GetByIdentifier(db *gorm.DB, identifier string) (*models.User, error)
}

// legacyReservationFKs were created by earlier schemas with ON DELETE CASCADE.
var legacyReservationFKs = []string{"fk_reservations_client", "fk_reservations_book"}

// Migrate creates or updates the schema for every model. Legacy reservation
// foreign keys are dropped first; sqlite rebuilds the table to do so, which
// loses its indexes until AutoMigrate recreates them.
func Migrate(db *gorm.DB) error {
	m := db.Migrator()
	for _, name := range legacyReservationFKs {
		if !m.HasConstraint(&models.Reservation{}, name) {
			continue
		}
		if err := m.DropConstraint(&models.Reservation{}, name); err != nil {
			return err
		}
	}
	return db.AutoMigrate(models.All()...)
}

// concrete implementations

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) conn(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *bookRepository) Create(db *gorm.DB, book *models.Book) error {
	return r.conn(db).Create(book).Error
}

func (r *bookRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.conn(db).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) GetByISBN(db *gorm.DB, isbn string) (*models.Book, error) {
	var book models.Book
	if err := r.conn(db).First(&book, "isbn = ?", isbn).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) List(db *gorm.DB, filter BookFilter) ([]models.Book, int64, error) {
	q := r.conn(db).Model(&models.Book{})
	if s := strings.TrimSpace(filter.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR isbn LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var books []models.Book
	q = q.Order("title ASC")
	if filter.Limit > 0 {
		q = q.Offset(filter.Offset).Limit(filter.Limit)
	}
	if err := q.Find(&books).Error; err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

func (r *bookRepository) ListByAvailability(db *gorm.DB, availability models.BookAvailability) ([]models.Book, error) {
	var books []models.Book
	if err := r.conn(db).Where("availability = ?", availability).Order("title ASC").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

// Save writes every column except availability, which only the conditional
// setters below may change.
func (r *bookRepository) Save(db *gorm.DB, book *models.Book) error {
	return r.conn(db).Omit("availability").Save(book).Error
}

// SetAvailabilityIf flips availability only when the row currently holds
// from. It reports whether a row was changed; false means the book is
// missing or not in the expected state.
func (r *bookRepository) SetAvailabilityIf(db *gorm.DB, id uuid.UUID, from, to models.BookAvailability) (bool, error) {
	res := r.conn(db).Model(&models.Book{}).
		Where("id = ? AND availability = ?", id, from).
		Update("availability", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *bookRepository) SetAvailability(db *gorm.DB, id uuid.UUID, to models.BookAvailability) error {
	return r.conn(db).Model(&models.Book{}).
		Where("id = ?", id).
		Update("availability", to).
		Error
}

func (r *bookRepository) DeleteIfAvailable(db *gorm.DB, id uuid.UUID) (bool, error) {
	res := r.conn(db).
		Where("id = ? AND availability = ?", id, models.BookAvailable).
		Delete(&models.Book{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *bookRepository) DeleteAll(db *gorm.DB) error {
	return r.conn(db).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Book{}).Error
}

type clientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) conn(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *clientRepository) Create(db *gorm.DB, client *models.Client) error {
	return r.conn(db).Create(client).Error
}

func (r *clientRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.conn(db).First(&client, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) GetByCPF(db *gorm.DB, cpf string) (*models.Client, error) {
	var client models.Client
	if err := r.conn(db).First(&client, "cpf = ?", cpf).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) List(db *gorm.DB) ([]models.Client, error) {
	var clients []models.Client
	if err := r.conn(db).Order("name ASC").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *clientRepository) Save(db *gorm.DB, client *models.Client) error {
	return r.conn(db).Save(client).Error
}

func (r *clientRepository) Delete(db *gorm.DB, id uuid.UUID) (bool, error) {
	res := r.conn(db).Delete(&models.Client{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *clientRepository) DeleteAll(db *gorm.DB) error {
	return r.conn(db).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Client{}).Error
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) conn(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *reservationRepository) Create(db *gorm.DB, reservation *models.Reservation) error {
	return r.conn(db).Omit("Client", "Book").Create(reservation).Error
}

func (r *reservationRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.conn(db).
		Preload("Client").
		Preload("Book").
		First(&res, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetByIDForUpdate locks the reservation row (SELECT ... FOR UPDATE) to prevent
// concurrent double-returns. Must be called inside a transaction.
func (r *reservationRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.conn(db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Client").
		Preload("Book").
		First(&res, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) List(db *gorm.DB, filter ReservationFilter) ([]models.Reservation, int64, error) {
	q := r.conn(db).Model(&models.Reservation{})
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.ClientID != nil {
		q = q.Where("client_id = ?", *filter.ClientID)
	}
	if filter.DueBefore != nil {
		q = q.Where("due_at < ?", *filter.DueBefore)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.NewestFirst {
		q = q.Order("created_at DESC")
	} else {
		q = q.Order("created_at ASC")
	}
	if filter.Limit > 0 {
		q = q.Offset(filter.Offset).Limit(filter.Limit)
	}

	var res []models.Reservation
	if err := q.Preload("Client").Preload("Book").Find(&res).Error; err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

// Update writes the named columns of changes to the reservation with the
// given id. Associations are never touched.
func (r *reservationRepository) Update(db *gorm.DB, id uuid.UUID, changes *models.Reservation, columns ...string) error {
	return r.conn(db).
		Model(&models.Reservation{ID: id}).
		Select(columns).
		Omit("Client", "Book").
		Updates(changes).
		Error
}

// CompleteIfOpen writes status, returned_at and fine only while the
// reservation is not completed yet. It reports whether a row changed.
func (r *reservationRepository) CompleteIfOpen(db *gorm.DB, id uuid.UUID, changes *models.Reservation) (bool, error) {
	res := r.conn(db).
		Model(&models.Reservation{}).
		Where("id = ? AND status <> ?", id, models.ReservationCompleted).
		Select("status", "returned_at", "fine").
		Omit("Client", "Book").
		Updates(changes)
	return res.RowsAffected > 0, res.Error
}

func (r *reservationRepository) CountOpenByClient(db *gorm.DB, clientID uuid.UUID) (int64, error) {
	var n int64
	err := r.conn(db).Model(&models.Reservation{}).
		Where("client_id = ? AND status <> ?", clientID, models.ReservationCompleted).
		Count(&n).Error
	return n, err
}

func (r *reservationRepository) Delete(db *gorm.DB, id uuid.UUID) error {
	return r.conn(db).Delete(&models.Reservation{}, "id = ?", id).Error
}

// DeleteIfOpen deletes the reservation only while it is not completed.
func (r *reservationRepository) DeleteIfOpen(db *gorm.DB, id uuid.UUID) (bool, error) {
	res := r.conn(db).Delete(&models.Reservation{}, "id = ? AND status <> ?", id, models.ReservationCompleted)
	return res.RowsAffected > 0, res.Error
}

func (r *reservationRepository) DeleteAll(db *gorm.DB) error {
	return r.conn(db).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Reservation{}).Error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) conn(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *userRepository) Count(db *gorm.DB) (int64, error) {
	var n int64
	err := r.conn(db).Model(&models.User{}).Count(&n).Error
	return n, err
}

func (r *userRepository) Create(db *gorm.DB, user *models.User) error {
	return r.conn(db).Create(user).Error
}

func (r *userRepository) GetByIdentifier(db *gorm.DB, identifier string) (*models.User, error) {
	var user models.User
	err := r.conn(db).Where("email = ? OR username = ?", identifier, identifier).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// Money goes out as JSON numbers, e.g. {"total": 12.5}.
	decimal.MarshalJSONWithoutQuotes = true
}

type BookAvailability string

const (
	BookAvailable BookAvailability = "available"
	BookReserved  BookAvailability = "reserved"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationOverdue   ReservationStatus = "overdue"
)

// Valid reports whether s is one of the known reservation statuses.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationActive, ReservationCompleted, ReservationOverdue:
		return true
	}
	return false
}

type Book struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Title        string           `gorm:"size:200;not null" json:"title"`
	Author       string           `gorm:"size:255;not null" json:"author"`
	ISBN         *string          `gorm:"size:32;uniqueIndex" json:"isbn,omitempty"`
	Publisher    *string          `gorm:"size:255" json:"publisher,omitempty"`
	Year         *int             `json:"year,omitempty"`
	Category     *string          `gorm:"size:120" json:"category,omitempty"`
	Availability BookAvailability `gorm:"size:16;not null;default:available;index" json:"availability"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (b *Book) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

type Address struct {
	Street string `gorm:"size:255" json:"street,omitempty"`
	Number string `gorm:"size:32" json:"number,omitempty"`
	City   string `gorm:"size:120" json:"city,omitempty"`
	State  string `gorm:"size:2" json:"state,omitempty"`
	Zip    string `gorm:"size:8" json:"zip,omitempty"`
}

type Client struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CPF       string    `gorm:"size:11;not null;uniqueIndex" json:"cpf"`
	Email     string    `gorm:"size:255;not null" json:"email"`
	Phone     string    `gorm:"size:11;not null" json:"phone"`
	Address   Address   `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Client) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Fine is the late fee attached to a reservation. It is recomputed on every
// read while the reservation is open and frozen once it is completed.
type Fine struct {
	FixedFee decimal.Decimal `json:"fixed_fee"`
	DaysLate int             `json:"days_late"`
	Total    decimal.Decimal `json:"total"`
}

// Reservation keeps plain ids to its client and book, with no foreign key, so
// history and frozen fines outlive a deleted client or book.
type Reservation struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"client_id"`
	Client     Client            `gorm:"constraint:-" json:"-"`
	BookID     uuid.UUID         `gorm:"type:uuid;not null;index" json:"book_id"`
	Book       Book              `gorm:"constraint:-" json:"-"`
	ReservedAt time.Time         `gorm:"not null" json:"reserved_at"`
	DueAt      time.Time         `gorm:"not null;index" json:"due_at"`
	ReturnedAt *time.Time        `json:"returned_at"`
	Status     ReservationStatus `gorm:"size:16;not null;default:active;index" json:"status"`
	Fine       *Fine             `gorm:"type:text;serializer:json" json:"fine"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// User is an operator account allowed to use the API.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:32;not null;default:admin" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// All lists every persisted model, in dependency order, for migrations.
func All() []any {
	return []any{&User{}, &Book{}, &Client{}, &Reservation{}}
}

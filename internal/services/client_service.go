package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"biblio/internal/cpf"
	"biblio/internal/models"
	"biblio/internal/repositories"
)

var validate = validator.New()

var ErrInvalidClient = kindError(ErrInvalidInput, "name (3-100 characters), valid email and phone (10-11 digits) are required")

type CreateClientInput struct {
	Name    string
	CPF     string
	Email   string
	Phone   string
	Address models.Address
}

type UpdateClientInput struct {
	Name    *string
	CPF     *string
	Email   *string
	Phone   *string
	Address *models.Address
}

type ClientService interface {
	Create(ctx context.Context, in CreateClientInput) (*models.Client, error)
	FindAll(ctx context.Context) ([]models.Client, error)
	FindOne(ctx context.Context, id uuid.UUID) (*models.Client, error)
	FindByCPF(ctx context.Context, cpf string) (*models.Client, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateClientInput) (*models.Client, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type clientService struct {
	db              *gorm.DB
	clientRepo      repositories.ClientRepository
	reservationRepo repositories.ReservationRepository
	logger          *zap.Logger
}

func NewClientService(
	db *gorm.DB,
	clientRepo repositories.ClientRepository,
	reservationRepo repositories.ReservationRepository,
	logger *zap.Logger,
) ClientService {
	return &clientService{db: db, clientRepo: clientRepo, reservationRepo: reservationRepo, logger: logger}
}

// Create registers a client. The CPF is stored digits-only and must be
// unique.
func (s *clientService) Create(ctx context.Context, in CreateClientInput) (*models.Client, error) {
	client := &models.Client{
		Name:    strings.TrimSpace(in.Name),
		CPF:     cpf.Sanitize(in.CPF),
		Email:   strings.TrimSpace(in.Email),
		Phone:   digitsOnly(in.Phone),
		Address: in.Address,
	}
	if !cpf.IsValid(client.CPF) {
		return nil, ErrInvalidCPF
	}
	if err := validateClient(client); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if err := s.ensureCPFFree(db, client.CPF, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.clientRepo.Create(db, client); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCPF
		}
		return nil, wrapStorage("create client", err)
	}
	s.logger.Info("create client: created", zap.String("client_id", client.ID.String()))
	return client, nil
}

func (s *clientService) FindAll(ctx context.Context) ([]models.Client, error) {
	clients, err := s.clientRepo.List(s.db.WithContext(ctx))
	if err != nil {
		return nil, wrapStorage("list clients", err)
	}
	return clients, nil
}

func (s *clientService) FindOne(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	client, err := s.clientRepo.GetByID(s.db.WithContext(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, wrapStorage("get client", err)
	}
	return client, nil
}

func (s *clientService) FindByCPF(ctx context.Context, raw string) (*models.Client, error) {
	client, err := s.clientRepo.GetByCPF(s.db.WithContext(ctx), cpf.Sanitize(raw))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, wrapStorage("get client by cpf", err)
	}
	return client, nil
}

// Update patches a client. A new CPF is validated, and checked for
// uniqueness only when it differs from the current one.
func (s *clientService) Update(ctx context.Context, id uuid.UUID, in UpdateClientInput) (*models.Client, error) {
	client, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	if in.CPF != nil {
		clean := cpf.Sanitize(*in.CPF)
		if !cpf.IsValid(clean) {
			return nil, ErrInvalidCPF
		}
		if clean != client.CPF {
			if err := s.ensureCPFFree(db, clean, client.ID); err != nil {
				return nil, err
			}
		}
		client.CPF = clean
	}
	if in.Name != nil {
		client.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		client.Email = strings.TrimSpace(*in.Email)
	}
	if in.Phone != nil {
		client.Phone = digitsOnly(*in.Phone)
	}
	if in.Address != nil {
		client.Address = *in.Address
	}
	if err := validateClient(client); err != nil {
		return nil, err
	}

	if err := s.clientRepo.Save(db, client); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCPF
		}
		return nil, wrapStorage("update client", err)
	}
	return client, nil
}

// Remove deletes a client that holds no open reservation. Deleting a client
// with an open reservation would leave its book marked reserved forever.
func (s *clientService) Remove(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := s.reservationRepo.CountOpenByClient(tx, id)
		if err != nil {
			return wrapStorage("count open reservations", err)
		}
		if open > 0 {
			return ErrClientHasActiveReservations
		}
		deleted, err := s.clientRepo.Delete(tx, id)
		if err != nil {
			return wrapStorage("delete client", err)
		}
		if !deleted {
			return ErrClientNotFound
		}
		s.logger.Info("remove client: deleted", zap.String("client_id", id.String()))
		return nil
	})
}

func (s *clientService) ensureCPFFree(db *gorm.DB, clean string, self uuid.UUID) error {
	existing, err := s.clientRepo.GetByCPF(db, clean)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return wrapStorage("lookup cpf", err)
	}
	if existing.ID != self {
		return ErrDuplicateCPF
	}
	return nil
}

func validateClient(c *models.Client) error {
	if n := len([]rune(c.Name)); n < 3 || n > 100 {
		return ErrInvalidClient
	}
	if err := validate.Var(c.Email, "required,email"); err != nil {
		return ErrInvalidClient
	}
	if n := len(c.Phone); n < 10 || n > 11 {
		return ErrInvalidClient
	}
	if len(c.Address.State) != 0 && len(c.Address.State) != 2 {
		return ErrInvalidClient
	}
	if len(c.Address.Zip) != 0 && len(c.Address.Zip) != 8 {
		return ErrInvalidClient
	}
	return nil
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

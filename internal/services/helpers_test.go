package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"biblio/internal/models"
	"biblio/internal/repositories"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")+"?_foreign_keys=on"), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	bodies []any
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *recordingPublisher) Close() {}

// spyBooks counts gate calls on top of the real book service.
type spyBooks struct {
	BookService
	markAvailable int
	markReserved  int
}

func (s *spyBooks) MarkAvailable(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Book, error) {
	s.markAvailable++
	return s.BookService.MarkAvailable(ctx, tx, id)
}

func (s *spyBooks) MarkReserved(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Book, error) {
	s.markReserved++
	return s.BookService.MarkReserved(ctx, tx, id)
}

type testEnv struct {
	ctx             context.Context
	db              *gorm.DB
	clock           *time.Time
	books           *spyBooks
	clients         ClientService
	reservations    ReservationService
	bookRepo        repositories.BookRepository
	reservationRepo repositories.ReservationRepository
	publisher       *recordingPublisher
}

var testNow = time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRepo(t, nil)
}

// newTestEnvWithRepo lets a test swap the reservation repository seen by the
// lifecycle, e.g. to inject write failures.
func newTestEnvWithRepo(t *testing.T, wrap func(repositories.ReservationRepository) repositories.ReservationRepository) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := zaptest.NewLogger(t)

	clock := testNow
	policy := NewFinePolicy(DefaultFixedFee, DefaultDailyPercent)
	policy.Now = func() time.Time { return clock }

	bookRepo := repositories.NewBookRepository(db)
	clientRepo := repositories.NewClientRepository(db)
	reservationRepo := repositories.NewReservationRepository(db)

	var lifecycleRepo repositories.ReservationRepository = reservationRepo
	if wrap != nil {
		lifecycleRepo = wrap(reservationRepo)
	}

	books := &spyBooks{BookService: NewBookService(db, bookRepo, log)}
	clients := NewClientService(db, clientRepo, reservationRepo, log)
	pub := &recordingPublisher{}

	return &testEnv{
		ctx:             context.Background(),
		db:              db,
		clock:           &clock,
		books:           books,
		clients:         clients,
		reservations:    NewReservationService(db, lifecycleRepo, clients, books, policy, pub, nil, log),
		bookRepo:        bookRepo,
		reservationRepo: reservationRepo,
		publisher:       pub,
	}
}

func (e *testEnv) addBook(t *testing.T, title string) *models.Book {
	t.Helper()
	b, err := e.books.Create(e.ctx, CreateBookInput{Title: title, Author: "Machado de Assis"})
	require.NoError(t, err)
	return b
}

var validCPFs = []string{"52998224725", "11144477735", "39053344705", "93541134780"}

func (e *testEnv) addClient(t *testing.T, n int) *models.Client {
	t.Helper()
	c, err := e.clients.Create(e.ctx, CreateClientInput{
		Name:  "Cliente " + validCPFs[n][:3],
		CPF:   validCPFs[n],
		Email: "cliente" + validCPFs[n][:3] + "@example.com",
		Phone: "11987654321",
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) availability(t *testing.T, id uuid.UUID) models.BookAvailability {
	t.Helper()
	b, err := e.bookRepo.GetByID(nil, id)
	require.NoError(t, err)
	return b.Availability
}

func (e *testEnv) reservationCount(t *testing.T) int64 {
	t.Helper()
	_, total, err := e.reservationRepo.List(nil, repositories.ReservationFilter{})
	require.NoError(t, err)
	return total
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

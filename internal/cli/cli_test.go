package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"biblio/internal/models"
	"biblio/internal/repositories"
	"biblio/internal/services"
)

type testStack struct {
	db           *gorm.DB
	books        services.BookService
	clients      services.ClientService
	reservations services.ReservationService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cli.db")), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	log := zap.NewNop()
	reservationRepo := repositories.NewReservationRepository(db)
	books := services.NewBookService(db, repositories.NewBookRepository(db), log)
	clients := services.NewClientService(db, repositories.NewClientRepository(db), reservationRepo, log)
	return &testStack{
		db:      db,
		books:   books,
		clients: clients,
		reservations: services.NewReservationService(db, reservationRepo, clients, books,
			services.NewFinePolicy(services.DefaultFixedFee, services.DefaultDailyPercent), nil, nil, log),
	}
}

func TestSeedThenClean(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	var out bytes.Buffer

	opts := seedOptions{Clients: 5, Books: 8, Reservations: 12, Seed: 7}
	require.NoError(t, seed(ctx, s.books, s.clients, s.reservations, opts, &out))
	assert.Contains(t, out.String(), "created 5 clients")

	clients, err := s.clients.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 5)

	// Every open reservation holds a reserved book and every reserved book
	// has exactly one open reservation.
	all, err := s.reservations.FindAll(ctx, 1, 100, "")
	require.NoError(t, err)
	assert.NotZero(t, all.Total)
	open := map[string]int{}
	for _, r := range all.Items {
		if r.Status != models.ReservationCompleted {
			open[r.BookID.String()]++
		}
	}
	books, err := s.books.FindAll(ctx, "", 1, 100)
	require.NoError(t, err)
	for _, b := range books.Items {
		if b.Availability == models.BookReserved {
			assert.Equal(t, 1, open[b.ID.String()], b.Title)
		} else {
			assert.Zero(t, open[b.ID.String()], b.Title)
		}
	}

	out.Reset()
	require.NoError(t, clean(s.db, &out))
	books, err = s.books.FindAll(ctx, "", 1, 100)
	require.NoError(t, err)
	assert.Zero(t, books.Total)
	all, err = s.reservations.FindAll(ctx, 1, 100, "")
	require.NoError(t, err)
	assert.Zero(t, all.Total)
}

func TestWriteReport(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	require.NoError(t, seed(ctx, s.books, s.clients, s.reservations, seedOptions{Clients: 2, Books: 3, Reservations: 3, Seed: 1}, &bytes.Buffer{}))

	var buf bytes.Buffer
	require.NoError(t, writeReport(ctx, s.reservations, nil, nil, &buf))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), 2)
	assert.Equal(t, "Reserved On", records[0][0])
	assert.Equal(t, "Total:", records[len(records)-1][6])
}

func TestParseDateFlag(t *testing.T) {
	got, err := parseDateFlag("from", "")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseDateFlag("from", "2026-03-10")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))

	_, err = parseDateFlag("to", "10/03/2026")
	assert.ErrorContains(t, err, "--to")
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("debug", "console")
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = newLogger("loud", "json")
	assert.Error(t, err)
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "seed", "clean", "report"})
}

package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biblio/internal/models"
)

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func TestBookCreate_Validates(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.books.Create(e.ctx, CreateBookInput{Title: "  ", Author: "X"})
	assert.ErrorIs(t, err, ErrInvalidBook)

	_, err = e.books.Create(e.ctx, CreateBookInput{Title: "Iracema", Author: "Alencar", Year: intPtr(999)})
	assert.ErrorIs(t, err, ErrInvalidYear)
	assert.Equal(t, "invalid_input", KindOf(err))

	b, err := e.books.Create(e.ctx, CreateBookInput{Title: " Iracema ", Author: "Alencar", ISBN: strPtr(" "), Year: intPtr(1865)})
	require.NoError(t, err)
	assert.Equal(t, "Iracema", b.Title)
	assert.Nil(t, b.ISBN)
	assert.Equal(t, models.BookAvailable, b.Availability)
	assert.NotEqual(t, uuid.Nil, b.ID)
}

func TestBookCreate_DuplicateISBN(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.books.Create(e.ctx, CreateBookInput{Title: "A", Author: "X", ISBN: strPtr("9788535914849")})
	require.NoError(t, err)

	_, err = e.books.Create(e.ctx, CreateBookInput{Title: "B", Author: "Y", ISBN: strPtr("9788535914849")})
	assert.ErrorIs(t, err, ErrDuplicateISBN)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBookUpdate(t *testing.T) {
	e := newTestEnv(t)
	a, err := e.books.Create(e.ctx, CreateBookInput{Title: "A", Author: "X", ISBN: strPtr("111")})
	require.NoError(t, err)
	b := e.addBook(t, "B")

	got, err := e.books.Update(e.ctx, b.ID, UpdateBookInput{Title: strPtr("B2"), Category: strPtr("Romance")})
	require.NoError(t, err)
	assert.Equal(t, "B2", got.Title)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Romance", *got.Category)

	_, err = e.books.Update(e.ctx, b.ID, UpdateBookInput{ISBN: strPtr("111")})
	assert.ErrorIs(t, err, ErrDuplicateISBN)

	// Keeping one's own ISBN is fine.
	_, err = e.books.Update(e.ctx, a.ID, UpdateBookInput{ISBN: strPtr("111"), Title: strPtr("A2")})
	assert.NoError(t, err)

	_, err = e.books.Update(e.ctx, uuid.New(), UpdateBookInput{})
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestBookUpdate_DoesNotTouchAvailability(t *testing.T) {
	e := newTestEnv(t)
	b := e.addBook(t, "A")
	stale, err := e.books.FindOne(e.ctx, b.ID)
	require.NoError(t, err)

	_, err = e.books.MarkReserved(e.ctx, nil, b.ID)
	require.NoError(t, err)

	require.NoError(t, e.bookRepo.Save(nil, stale))
	assert.Equal(t, models.BookReserved, e.availability(t, b.ID))
}

func TestMarkReserved(t *testing.T) {
	e := newTestEnv(t)
	b := e.addBook(t, "A")

	got, err := e.books.MarkReserved(e.ctx, nil, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookReserved, got.Availability)

	_, err = e.books.MarkReserved(e.ctx, nil, b.ID)
	assert.ErrorIs(t, err, ErrBookAlreadyReserved)
	assert.Equal(t, "domain_rule", KindOf(err))

	_, err = e.books.MarkReserved(e.ctx, nil, uuid.New())
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestMarkAvailable_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	b := e.addBook(t, "A")
	_, err := e.books.MarkReserved(e.ctx, nil, b.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := e.books.MarkAvailable(e.ctx, nil, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookAvailable, got.Availability)
	}
	assert.Equal(t, models.BookAvailable, e.availability(t, b.ID))

	_, err = e.books.MarkAvailable(e.ctx, nil, uuid.New())
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestBookRemove(t *testing.T) {
	e := newTestEnv(t)
	free := e.addBook(t, "A")
	held := e.addBook(t, "B")
	_, err := e.books.MarkReserved(e.ctx, nil, held.ID)
	require.NoError(t, err)

	require.NoError(t, e.books.Remove(e.ctx, free.ID))
	_, err = e.books.FindOne(e.ctx, free.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)

	err = e.books.Remove(e.ctx, held.ID)
	assert.ErrorIs(t, err, ErrBookUnderHold)
	assert.Equal(t, models.BookReserved, e.availability(t, held.ID))

	assert.ErrorIs(t, e.books.Remove(e.ctx, uuid.New()), ErrBookNotFound)
}

func TestBookFindAll_SearchAndPaging(t *testing.T) {
	e := newTestEnv(t)
	for _, title := range []string{"Dom Casmurro", "Helena", "Iaiá Garcia", "Memorial de Aires"} {
		e.addBook(t, title)
	}
	_, err := e.books.Create(e.ctx, CreateBookInput{Title: "Vidas Secas", Author: "Graciliano Ramos"})
	require.NoError(t, err)

	page, err := e.books.FindAll(e.ctx, "MACHADO", 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Dom Casmurro", page.Items[0].Title)
	assert.Equal(t, "Helena", page.Items[1].Title)

	page, err = e.books.FindAll(e.ctx, "secas", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Graciliano Ramos", page.Items[0].Author)

	page, err = e.books.FindAll(e.ctx, "", 1, 500)
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, page.Limit)
	assert.Len(t, page.Items, 5)
}

func TestBookFindAvailable(t *testing.T) {
	e := newTestEnv(t)
	a := e.addBook(t, "A")
	e.addBook(t, "B")
	_, err := e.books.MarkReserved(e.ctx, nil, a.ID)
	require.NoError(t, err)

	got, err := e.books.FindAvailable(e.ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].Title)
}

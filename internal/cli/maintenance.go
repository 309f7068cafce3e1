package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"biblio/internal/cpf"
	"biblio/internal/models"
	"biblio/internal/repositories"
	"biblio/internal/services"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := repositories.Migrate(a.db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete every reservation, book and client; operator accounts are kept",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return clean(a.db, cmd.OutOrStdout())
		},
	}
}

func clean(db *gorm.DB, out io.Writer) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := repositories.NewReservationRepository(db).DeleteAll(tx); err != nil {
			return fmt.Errorf("delete reservations: %w", err)
		}
		if err := repositories.NewBookRepository(db).DeleteAll(tx); err != nil {
			return fmt.Errorf("delete books: %w", err)
		}
		if err := repositories.NewClientRepository(db).DeleteAll(tx); err != nil {
			return fmt.Errorf("delete clients: %w", err)
		}
		fmt.Fprintln(out, "reservations, books and clients removed")
		return nil
	})
}

func newSeedCommand() *cobra.Command {
	var opts seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the catalogue with generated sample data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := repositories.Migrate(a.db); err != nil {
				return err
			}
			if err := clean(a.db, cmd.OutOrStdout()); err != nil {
				return err
			}
			return seed(cmd.Context(), a.books, a.clients, a.reservations, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.Clients, "clients", 30, "number of clients")
	cmd.Flags().IntVar(&opts.Books, "books", 50, "number of books")
	cmd.Flags().IntVar(&opts.Reservations, "reservations", 40, "number of reservations to attempt")
	cmd.Flags().Int64Var(&opts.Seed, "seed", time.Now().UnixNano(), "random seed")
	return cmd
}

type seedOptions struct {
	Clients      int
	Books        int
	Reservations int
	Seed         int64
}

var (
	seedFirstNames = []string{"Ana", "Bruno", "Carla", "Diego", "Elisa", "Fábio", "Gabriela", "Heitor", "Isabela", "João"}
	seedLastNames  = []string{"Silva", "Souza", "Oliveira", "Pereira", "Costa", "Almeida", "Ribeiro", "Carvalho"}
	seedCategories = []string{"Programação", "Ficção", "História", "Tecnologia", "Design", "Autoajuda", "Ciência"}
	seedPrefixes   = []string{"O Segredo de", "A Jornada em", "O Mistério de", "Crônicas de", "O Guia de", "A Arte de"}
	seedNouns      = []string{"Eternidade", "Silício", "Conhecimento", "Destino", "Algoritmos", "Inovação", "Futuro"}
	seedStates     = []string{"SP", "RJ", "MG", "BA", "PE", "RS", "PR"}
)

// seed goes through the services so generated reservations respect the
// book gate: a book already reserved is simply skipped.
func seed(ctx context.Context, books services.BookService, clients services.ClientService, reservations services.ReservationService, opts seedOptions, out io.Writer) error {
	r := rand.New(rand.NewSource(opts.Seed))
	pick := func(s []string) string { return s[r.Intn(len(s))] }

	var seededClients []models.Client
	for i := 0; len(seededClients) < opts.Clients; i++ {
		name := pick(seedFirstNames) + " " + pick(seedLastNames)
		c, err := clients.Create(ctx, services.CreateClientInput{
			Name:  name,
			CPF:   cpf.Generate(r),
			Email: fmt.Sprintf("cliente%d@example.com", i+1),
			Phone: fmt.Sprintf("11%09d", r.Intn(1_000_000_000)),
			Address: models.Address{
				Street: "Rua " + pick(seedLastNames),
				Number: fmt.Sprint(r.Intn(999) + 1),
				City:   "Cidade " + pick(seedNouns),
				State:  pick(seedStates),
				Zip:    fmt.Sprintf("%08d", r.Intn(100_000_000)),
			},
		})
		if errors.Is(err, services.ErrDuplicateCPF) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed client: %w", err)
		}
		seededClients = append(seededClients, *c)
	}
	fmt.Fprintf(out, "created %d clients\n", len(seededClients))

	var seededBooks []models.Book
	for i := 0; i < opts.Books; i++ {
		isbn := fmt.Sprintf("978%010d", r.Int63n(10_000_000_000))
		year := 1990 + r.Intn(35)
		category := pick(seedCategories)
		b, err := books.Create(ctx, services.CreateBookInput{
			Title:    pick(seedPrefixes) + " " + pick(seedNouns),
			Author:   pick(seedFirstNames) + " " + pick(seedLastNames),
			ISBN:     &isbn,
			Year:     &year,
			Category: &category,
		})
		if errors.Is(err, services.ErrDuplicateISBN) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed book: %w", err)
		}
		seededBooks = append(seededBooks, *b)
	}
	fmt.Fprintf(out, "created %d books\n", len(seededBooks))

	if len(seededClients) == 0 || len(seededBooks) == 0 {
		return nil
	}

	created, returned := 0, 0
	now := time.Now().UTC()
	for i := 0; i < opts.Reservations; i++ {
		// Due dates from two weeks ago to two weeks ahead, so some are overdue.
		due := now.AddDate(0, 0, r.Intn(29)-14)
		v, err := reservations.Create(ctx, services.CreateReservationInput{
			ClientID: seededClients[r.Intn(len(seededClients))].ID,
			BookID:   seededBooks[r.Intn(len(seededBooks))].ID,
			DueAt:    due,
		})
		if err != nil {
			if errors.Is(err, services.ErrBookAlreadyReserved) {
				continue
			}
			return fmt.Errorf("seed reservation: %w", err)
		}
		created++
		if r.Intn(3) == 0 {
			if _, err := reservations.Return(ctx, v.ID); err != nil {
				return fmt.Errorf("seed return: %w", err)
			}
			returned++
		}
	}
	fmt.Fprintf(out, "created %d reservations (%d returned)\n", created, returned)
	return nil
}

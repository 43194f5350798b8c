package service_test

import (
	"context"
	"testing"
	"time"

	"library_backend/config"
	"library_backend/db"
	"library_backend/db/dbtest"
	"library_backend/logging"
	"library_backend/models"
	"library_backend/service"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	repo     *db.Repo
	catalog  *service.CatalogService
	identity *service.IdentityService
	loans    *service.LoanService
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := db.NewRepo(dbtest.Open(t))
	log := logging.Discard()
	f := &fixture{
		repo:     repo,
		catalog:  service.NewCatalogService(repo, log),
		identity: service.NewIdentityService(repo, log).WithHashCost(bcrypt.MinCost),
		loans:    service.NewLoanService(repo, log, config.DefaultLoanPolicy()),
		clock:    time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
	}
	f.loans.Now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(days int) { f.clock = f.clock.AddDate(0, 0, days) }

func intp(n int) *int { return &n }

func bookInput(isbn string, copies int) service.BookInput {
	return service.BookInput{
		Title: "Title " + isbn, Author: "Author " + isbn, ISBN: isbn, Publisher: "P",
		PublicationYear: 2020, Category: "C", TotalCopies: copies,
	}
}

func (f *fixture) addBook(t *testing.T, isbn string, copies int) *models.Book {
	t.Helper()
	b, err := f.catalog.Add(context.Background(), bookInput(isbn, copies))
	require.NoError(t, err)
	return b
}

func (f *fixture) addStudent(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.identity.Register(context.Background(), service.Registration{
		Username: name, Password: "secret1", FullName: name + " Full", Email: name + "@example.com", Role: models.RoleStudent,
	})
	require.NoError(t, err)
	return u
}

// requireKind asserts err is a service error of kind with message msg (msg "" skips the text check).
func requireKind(t *testing.T, err error, kind service.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, service.KindOf(err), "err: %v", err)
	if msg != "" {
		require.Equal(t, msg, service.MessageOf(err))
	}
}

// requireBalanced checks available + open loans = total for every live book.
func (f *fixture) requireBalanced(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	books, err := f.catalog.List(ctx)
	require.NoError(t, err)
	for _, b := range books {
		open, err := f.repo.CountOpenLoansForBook(ctx, b.ID)
		require.NoError(t, err)
		require.Equal(t, b.TotalCopies, b.AvailableCopies+int(open), "book %d", b.ID)
	}
}

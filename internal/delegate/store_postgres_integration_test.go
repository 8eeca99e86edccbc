//go:build integration

package delegate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kayo/internal/auth"
	"kayo/internal/delegate"
	"kayo/internal/platform/postgres"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg        *containers.PostgresContainer
	store     *delegate.PostgresStore
	registrar id.UserID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(ctx, s.pg.Pool))

	s.store = delegate.NewPostgresStore(s.pg.Pool)

	s.registrar = id.NewUserID()
	users := auth.NewPostgresUserStore(s.pg.Pool)
	s.Require().NoError(users.Insert(ctx, auth.User{
		ID:           s.registrar,
		Name:         "Parish Chair",
		Email:        "chair@kayo.or.ke",
		Role:         auth.RoleChair,
		PasswordHash: "not-a-real-hash",
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "payments", "delegates"))
}

func (s *PostgresStoreSuite) newDelegate(name, archdeaconry string) delegate.Delegate {
	return delegate.Delegate{
		ID:           id.NewDelegateID(),
		Name:         name,
		LocalChurch:  "St. Peter's",
		Parish:       "Nambale",
		Archdeaconry: archdeaconry,
		Gender:       delegate.GenderFemale,
		Category:     delegate.CategoryDelegate,
		RegisteredBy: s.registrar,
		RegisteredAt: time.Now().UTC(),
	}
}

func (s *PostgresStoreSuite) insertPayment() id.PaymentID {
	paymentID := id.NewPaymentID()
	_, err := s.pg.Pool.Exec(context.Background(),
		`INSERT INTO payments (id, user_id, amount_cents) VALUES ($1, $2, $3)`,
		uuid.UUID(paymentID), uuid.UUID(s.registrar), int64(150000))
	s.Require().NoError(err)
	return paymentID
}

func (s *PostgresStoreSuite) TestInsertAndFind() {
	ctx := context.Background()

	d := s.newDelegate("Achieng Odhiambo", "Nambale")
	d.PhoneNumber = "+254712345678"
	d.AgeBracket = "18-25"
	s.Require().NoError(s.store.Insert(ctx, d))

	got, err := s.store.FindByID(ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(d.Name, got.Name)
	s.Equal(d.Archdeaconry, got.Archdeaconry)
	s.Equal(d.PhoneNumber, got.PhoneNumber)
	s.Equal(d.RegisteredBy, got.RegisteredBy)
	s.False(got.IsPaid)
	s.False(got.CheckedIn)

	_, err = s.store.FindByID(ctx, id.NewDelegateID())
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *PostgresStoreSuite) TestListFilters() {
	ctx := context.Background()

	a := s.newDelegate("Achieng Odhiambo", "Nambale")
	b := s.newDelegate("Barasa Wafula", "Butula")
	c := s.newDelegate("Nekesa Simiyu", "Butula")
	for _, d := range []delegate.Delegate{a, b, c} {
		s.Require().NoError(s.store.Insert(ctx, d))
	}

	paymentID := s.insertPayment()
	s.Require().NoError(s.store.ClaimForPayment(ctx, []id.DelegateID{a.ID}, paymentID))
	changed, err := s.store.MarkPaid(ctx, paymentID)
	s.Require().NoError(err)
	s.Equal(1, changed)

	byArch, err := s.store.List(ctx, delegate.Filter{Archdeaconry: "Butula"})
	s.Require().NoError(err)
	s.Len(byArch, 2)

	paid := true
	paidOnly, err := s.store.List(ctx, delegate.Filter{IsPaid: &paid})
	s.Require().NoError(err)
	s.Require().Len(paidOnly, 1)
	s.Equal(a.ID, paidOnly[0].ID)

	bySearch, err := s.store.List(ctx, delegate.Filter{Search: "wafula"})
	s.Require().NoError(err)
	s.Require().Len(bySearch, 1)
	s.Equal(b.ID, bySearch[0].ID)

	total, err := s.store.Count(ctx, delegate.Filter{})
	s.Require().NoError(err)
	s.Equal(3, total)
}

func (s *PostgresStoreSuite) TestClaimMarkPaidRelease() {
	ctx := context.Background()

	a := s.newDelegate("Achieng Odhiambo", "Nambale")
	b := s.newDelegate("Barasa Wafula", "Butula")
	s.Require().NoError(s.store.Insert(ctx, a))
	s.Require().NoError(s.store.Insert(ctx, b))

	paymentID := s.insertPayment()
	s.Require().NoError(s.store.ClaimForPayment(ctx, []id.DelegateID{a.ID, b.ID}, paymentID))

	got, err := s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(paymentID, got.PaymentID)
	s.False(got.IsPaid)

	// A second claim against an already attached delegate must not persist.
	other := s.insertPayment()
	err = s.store.ClaimForPayment(ctx, []id.DelegateID{b.ID}, other)
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	s.Require().NoError(s.store.ReleasePayment(ctx, paymentID))
	got, err = s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.True(got.PaymentID.IsZero())

	s.Require().NoError(s.store.ClaimForPayment(ctx, []id.DelegateID{a.ID, b.ID}, other))
	changed, err := s.store.MarkPaid(ctx, other)
	s.Require().NoError(err)
	s.Equal(2, changed)

	got, err = s.store.FindByID(ctx, b.ID)
	s.Require().NoError(err)
	s.True(got.IsPaid)
}

// TestConcurrentClaimsSerialize drives overlapping claims at the same
// delegate from many goroutines. Exactly one may win; the rest must see
// a conflict, never a partial attach.
func (s *PostgresStoreSuite) TestConcurrentClaimsSerialize() {
	ctx := context.Background()

	d := s.newDelegate("Achieng Odhiambo", "Nambale")
	s.Require().NoError(s.store.Insert(ctx, d))

	const claimers = 8
	payments := make([]id.PaymentID, claimers)
	for i := range payments {
		payments[i] = s.insertPayment()
	}

	var wg sync.WaitGroup
	errs := make([]error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.store.ClaimForPayment(ctx, []id.DelegateID{d.ID}, payments[i])
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			s.True(dErrors.Is(err, dErrors.CodeConflict))
		}
	}
	s.Equal(1, wins)
}

func (s *PostgresStoreSuite) TestSetCheckedIn() {
	ctx := context.Background()

	d := s.newDelegate("Achieng Odhiambo", "Nambale")
	s.Require().NoError(s.store.Insert(ctx, d))

	s.Require().NoError(s.store.SetCheckedIn(ctx, d.ID, true))
	got, err := s.store.FindByID(ctx, d.ID)
	s.Require().NoError(err)
	s.True(got.CheckedIn)

	err = s.store.SetCheckedIn(ctx, id.NewDelegateID(), true)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

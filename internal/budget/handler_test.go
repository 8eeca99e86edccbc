package budget

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"kayo/internal/audit"
	"kayo/internal/auth"
	id "kayo/pkg/domain"
	"kayo/pkg/testutil"
)

// HandlerSuite drives requests through the real router stack, so the JWT
// middleware and role checks are part of what is under test.
type HandlerSuite struct {
	suite.Suite

	router       chi.Router
	issuer       *auth.TokenIssuer
	financeToken string
	chairToken   string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	service := NewService(NewMemoryStore(), slog.Default(), nil, audit.NopRecorder{})
	s.issuer = auth.NewTokenIssuer("test-signing-key", time.Hour)

	s.router = chi.NewRouter()
	NewHandler(service, s.issuer, slog.Default()).Register(s.router)

	s.financeToken = s.token(auth.RoleFinance)
	s.chairToken = s.token(auth.RoleChair)
}

func (s *HandlerSuite) token(role string) string {
	user := auth.User{ID: id.NewUserID(), Name: "Esther", Email: "esther@kayo.or.ke", Role: role}
	token, _, err := s.issuer.Issue(user, id.NewSessionID(), time.Now())
	s.Require().NoError(err)
	return token
}

func (s *HandlerSuite) TestCreateAndFetch() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/budgets",
		CreateBudgetRequest{Name: "Annual Convention 2026", Description: "June convention"})
	req.Header.Set("Authorization", "Bearer "+s.financeToken)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	created := testutil.UnmarshalResponse[Budget](s.T(), rr)
	s.Equal("Annual Convention 2026", created.Name)
	s.Equal(BudgetDraft, created.Status)

	req = testutil.NewRequest(s.T(), http.MethodGet, "/budgets/"+created.ID.String())
	req.Header.Set("Authorization", "Bearer "+s.financeToken)
	rr = testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	fetched := testutil.UnmarshalResponse[BudgetDetail](s.T(), rr)
	s.Equal(created.ID, fetched.Budget.ID)
}

func (s *HandlerSuite) TestMissingToken() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/budgets")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestChairCannotManageBudgets() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/budgets",
		CreateBudgetRequest{Name: "Annual Convention 2026"})
	req.Header.Set("Authorization", "Bearer "+s.chairToken)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
}

func (s *HandlerSuite) TestValidationErrorShape() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/budgets", CreateBudgetRequest{})
	req.Header.Set("Authorization", "Bearer "+s.financeToken)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	body := testutil.UnmarshalErrorResponse(s.T(), rr)
	s.NotEmpty(body["error"])
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"deskhub.org/internal/account"
	"deskhub.org/internal/audit"
	"deskhub.org/internal/auth"
	"deskhub.org/internal/session"
	"deskhub.org/internal/ticket"
)

// stubAccounts is an in-memory account.Store for handler tests.
type stubAccounts struct {
	mu       sync.Mutex
	accounts map[int64]*account.Account
	nextID   int64
}

func newStubAccounts() *stubAccounts {
	return &stubAccounts{accounts: map[int64]*account.Account{}}
}

func (s *stubAccounts) seed(acc *account.Account) *account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	acc.ID = s.nextID
	acc.CreatedAt = time.Now().UTC()
	acc.UpdatedAt = acc.CreatedAt
	s.accounts[acc.ID] = acc
	return acc
}

func (s *stubAccounts) Create(ctx context.Context, acc *account.Account) error {
	s.mu.Lock()
	for _, existing := range s.accounts {
		if existing.DeletedAt == nil && (existing.Username == acc.Username || existing.Email == acc.Email) {
			s.mu.Unlock()
			return account.ErrAlreadyExists
		}
	}
	s.mu.Unlock()
	s.seed(acc)
	return nil
}

func (s *stubAccounts) Find(ctx context.Context, id int64) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || acc.DeletedAt != nil {
		return nil, account.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *stubAccounts) FindByUsername(ctx context.Context, username string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.DeletedAt == nil && acc.Username == username {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, account.ErrNotFound
}

func (s *stubAccounts) List(ctx context.Context) ([]*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*account.Account
	for _, acc := range s.accounts {
		if acc.DeletedAt == nil {
			cp := *acc
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (s *stubAccounts) UpdateFields(ctx context.Context, id int64, fields account.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || acc.DeletedAt != nil {
		return account.ErrNotFound
	}
	if fields.Username != nil {
		acc.Username = *fields.Username
	}
	if fields.Email != nil {
		acc.Email = *fields.Email
	}
	if fields.PasswordHash != nil {
		acc.PasswordHash = *fields.PasswordHash
	}
	if fields.Role != nil {
		acc.Role = *fields.Role
	}
	if fields.Department != nil {
		acc.Department = *fields.Department
	}
	if fields.Status != nil {
		acc.Status = *fields.Status
	}
	if fields.PasswordChangedAt != nil {
		t := *fields.PasswordChangedAt
		acc.PasswordChangedAt = &t
	}
	return nil
}

func (s *stubAccounts) IncrementFailedLogins(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.DeletedAt == nil && acc.Username == username {
			acc.FailedLogins++
			return nil
		}
	}
	return account.ErrNotFound
}

func (s *stubAccounts) ResetFailedLogins(ctx context.Context, id int64, touchLogin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || acc.DeletedAt != nil {
		return account.ErrNotFound
	}
	acc.FailedLogins = 0
	if touchLogin {
		now := time.Now().UTC()
		acc.LastLoginAt = &now
	}
	return nil
}

func (s *stubAccounts) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || acc.DeletedAt != nil {
		return account.ErrNotFound
	}
	acc.DeletedAt = &at
	acc.Status = account.StatusDeleted
	return nil
}

func (s *stubAccounts) CountActive(ctx context.Context, role account.Role) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, acc := range s.accounts {
		if acc.DeletedAt == nil && acc.Role == role && acc.Status == account.StatusActive {
			n++
		}
	}
	return n, nil
}

// stubTickets is an in-memory ticket.Store.
type stubTickets struct {
	mu      sync.Mutex
	tickets map[int64]*ticket.Ticket
	nextID  int64
}

func newStubTickets() *stubTickets {
	return &stubTickets{tickets: map[int64]*ticket.Ticket{}}
}

func (s *stubTickets) Create(ctx context.Context, t *ticket.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *stubTickets) Find(ctx context.Context, id int64) (*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, ticket.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *stubTickets) ListAll(ctx context.Context) ([]*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*ticket.Ticket
	for _, t := range s.tickets {
		cp := *t
		res = append(res, &cp)
	}
	return res, nil
}

func (s *stubTickets) ListByDepartment(ctx context.Context, department string) ([]*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*ticket.Ticket
	for _, t := range s.tickets {
		if t.Department == department {
			cp := *t
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (s *stubTickets) Assign(ctx context.Context, id, assigneeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return ticket.ErrNotFound
	}
	t.AssignedTo = &assigneeID
	return nil
}

func (s *stubTickets) SetStatus(ctx context.Context, id int64, status ticket.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return ticket.ErrNotFound
	}
	t.Status = status
	return nil
}

// fakeHasher avoids bcrypt cost in handler tests.
type fakeHasher struct{}

func (fakeHasher) Hash(ctx context.Context, password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Compare(ctx context.Context, hash, password string) (bool, error) {
	return hash == "hashed:"+password, nil
}

type captureSender struct {
	mu    sync.Mutex
	email string
	token string
}

func (c *captureSender) SendReset(ctx context.Context, email, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.email = email
	c.token = token
	return nil
}

func (c *captureSender) last() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.email, c.token
}

type testEnv struct {
	api      *API
	handler  http.Handler
	store    *stubAccounts
	sessions *session.Store
	rec      *audit.MemRecorder
	sender   *captureSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newStubAccounts()
	rec := audit.NewMemRecorder()
	sessions := session.NewStore(client, "deskhub", time.Hour)
	hasher := fakeHasher{}
	accounts := account.NewService(store, hasher, sessions, rec)
	authn := auth.NewAuthenticator(store, hasher)
	tickets := ticket.NewService(newStubTickets(), store, rec)
	resetTokens, err := auth.NewResetTokenizer("test-secret", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewResetTokenizer: %v", err)
	}
	sender := &captureSender{}

	api := New(Config{
		Accounts:      accounts,
		AccountStore:  store,
		Authenticator: authn,
		Sessions:      sessions,
		SessionTTL:    time.Hour,
		Tickets:       tickets,
		ResetTokens:   resetTokens,
		ResetSender:   sender,
		ReadyProbe:    ReadyProbe{},
		Version:       "test",
	})
	return &testEnv{
		api:      api,
		handler:  api.Handler(),
		store:    store,
		sessions: sessions,
		rec:      rec,
		sender:   sender,
	}
}

func (env *testEnv) seedAccount(username string, role account.Role, dept string) *account.Account {
	return env.store.seed(&account.Account{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashed:Str0ng!pass",
		Role:         role,
		Department:   dept,
		Status:       account.StatusActive,
	})
}

func (env *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	return rr
}

// login authenticates and returns the session cookie.
func (env *testEnv) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	rr := env.do(t, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login failed with %d: %s", rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
	}
	return body
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"accord/backend/go/internal/config"
	"accord/backend/go/internal/models"
)

type memoryUserStore struct {
	users     map[uint]*models.User
	nextID    uint
	perms     map[uint][]*models.Permission
	lastLogin map[uint]time.Time
	assigned  map[uint][]string
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{
		users:     make(map[uint]*models.User),
		perms:     make(map[uint][]*models.Permission),
		lastLogin: make(map[uint]time.Time),
		assigned:  make(map[uint][]string),
	}
}

func (m *memoryUserStore) CreateUser(user *models.User) error {
	m.nextID++
	user.ID = m.nextID
	user.Roles = append(user.Roles, &models.AuthRole{Name: models.RoleMember})
	m.users[user.ID] = user
	return nil
}

func (m *memoryUserStore) GetUserByEmail(email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryUserStore) GetUserByUsername(username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryUserStore) GetUserByPhone(phone string) (*models.User, error) {
	for _, u := range m.users {
		if u.Phone != "" && u.Phone == phone {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryUserStore) GetUserByID(id uint) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryUserStore) UpdateLastLogin(userID uint, at time.Time) error {
	m.lastLogin[userID] = at
	return nil
}

func (m *memoryUserStore) AssignRoleToUser(userID uint, roleName string) error {
	m.assigned[userID] = append(m.assigned[userID], roleName)
	if u, ok := m.users[userID]; ok {
		u.Roles = append(u.Roles, &models.AuthRole{Name: roleName})
	}
	return nil
}

func (m *memoryUserStore) GetUserPermissions(userID uint) ([]*models.Permission, error) {
	return m.perms[userID], nil
}

type memoryDenylist struct {
	ttls map[string]time.Duration
}

func newMemoryDenylist() *memoryDenylist {
	return &memoryDenylist{ttls: make(map[string]time.Duration)}
}

func (m *memoryDenylist) Deny(ctx context.Context, jti string, ttl time.Duration) error {
	m.ttls[jti] = ttl
	return nil
}

func (m *memoryDenylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	_, ok := m.ttls[jti]
	return ok, nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JwtSecret: "test-secret",
		Issuer:    "accord",
		Audience:  "accord-clients",
		TokenTTL:  3600,
	}
}

func signup(t *testing.T, svc *Service) *models.User {
	t.Helper()
	user, err := svc.Signup(SignupRequest{
		Username: "ada",
		Email:    "ada@example.com",
		Phone:    "+4915112345678",
		Password: "correct horse",
		FullName: "Ada Lovelace",
	})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	return user
}

func TestSignupHashesPassword(t *testing.T) {
	store := newMemoryUserStore()
	svc := NewService(store, newMemoryDenylist(), testAuthConfig())

	user := signup(t, svc)
	if user.Password == "correct horse" {
		t.Fatal("Expected the stored password to be hashed")
	}
	if !strings.HasPrefix(user.Password, "$2") {
		t.Errorf("Expected a bcrypt hash, got %q", user.Password)
	}
	if user.Status != models.StatusActive {
		t.Errorf("Expected an active account, got %q", user.Status)
	}
	if !user.HasRole(models.RoleMember) {
		t.Error("Expected the default member role on a new account")
	}
}

func TestSignupRejectsDuplicates(t *testing.T) {
	store := newMemoryUserStore()
	svc := NewService(store, newMemoryDenylist(), testAuthConfig())
	signup(t, svc)

	cases := []struct {
		name string
		req  SignupRequest
		want error
	}{
		{"email", SignupRequest{Username: "bob", Email: "ada@example.com", Password: "pw"}, ErrEmailTaken},
		{"username", SignupRequest{Username: "ada", Email: "bob@example.com", Password: "pw"}, ErrUsernameTaken},
		{"phone", SignupRequest{Username: "bob", Email: "bob@example.com", Phone: "+4915112345678", Password: "pw"}, ErrPhoneTaken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Signup(tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSignupRequiresCoreFields(t *testing.T) {
	svc := NewService(newMemoryUserStore(), newMemoryDenylist(), testAuthConfig())

	_, err := svc.Signup(SignupRequest{Username: "ada"})
	if err == nil {
		t.Fatal("Expected an error for a signup without email and password")
	}
}

func TestLoginReturnsValidToken(t *testing.T) {
	store := newMemoryUserStore()
	svc := NewService(store, newMemoryDenylist(), testAuthConfig())
	user := signup(t, svc)

	token, loggedIn, err := svc.Login("ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Errorf("Expected user %d, got %d", user.ID, loggedIn.ID)
	}
	if token == "" {
		t.Fatal("Expected a signed token")
	}

	userID, err := svc.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if userID != user.ID {
		t.Errorf("Expected the token issued to user %d, got %d", user.ID, userID)
	}
	if _, ok := store.lastLogin[user.ID]; !ok {
		t.Error("Expected the login time to be recorded")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewService(newMemoryUserStore(), newMemoryDenylist(), testAuthConfig())
	signup(t, svc)

	if _, _, err := svc.Login("ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for a wrong password, got %v", err)
	}
	if _, _, err := svc.Login("nobody@example.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for an unknown email, got %v", err)
	}
}

func TestLoginRejectsSuspendedAccount(t *testing.T) {
	store := newMemoryUserStore()
	svc := NewService(store, newMemoryDenylist(), testAuthConfig())
	user := signup(t, svc)
	store.users[user.ID].Status = models.StatusSuspended

	_, _, err := svc.Login("ada@example.com", "correct horse")
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("Expected ErrAccountDisabled, got %v", err)
	}
	if !strings.Contains(err.Error(), "suspended") {
		t.Errorf("Expected the status in the error, got %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	denylist := newMemoryDenylist()
	svc := NewService(newMemoryUserStore(), denylist, testAuthConfig())
	signup(t, svc)

	token, _, err := svc.Login("ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), token); err != nil {
		t.Fatalf("Expected the token valid before logout, got %v", err)
	}

	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Expected ErrInvalidToken after logout, got %v", err)
	}

	if len(denylist.ttls) != 1 {
		t.Fatalf("Expected one denylist entry, got %d", len(denylist.ttls))
	}
	for _, ttl := range denylist.ttls {
		if ttl <= 0 || ttl > time.Hour {
			t.Errorf("Expected a TTL within the remaining token lifetime, got %v", ttl)
		}
	}
}

func TestLogoutWithoutDenylist(t *testing.T) {
	svc := NewService(newMemoryUserStore(), nil, testAuthConfig())
	signup(t, svc)

	token, _, err := svc.Login("ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := svc.Logout(context.Background(), token); err == nil {
		t.Fatal("Expected an error when no denylist is configured")
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := NewService(newMemoryUserStore(), newMemoryDenylist(), testAuthConfig())
	signup(t, svc)

	token, _, err := svc.Login("ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := svc.ValidateToken(context.Background(), token+"x"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for a tampered token, got %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for garbage, got %v", err)
	}

	otherCfg := testAuthConfig()
	otherCfg.JwtSecret = "different-secret"
	other := NewService(newMemoryUserStore(), newMemoryDenylist(), otherCfg)
	if _, err := other.ValidateToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken under a different secret, got %v", err)
	}
}

func TestValidateTokenRejectsForeignIssuer(t *testing.T) {
	svc := NewService(newMemoryUserStore(), newMemoryDenylist(), testAuthConfig())
	signup(t, svc)

	token, _, err := svc.Login("ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	otherCfg := testAuthConfig()
	otherCfg.Issuer = "someone-else"
	other := NewService(newMemoryUserStore(), newMemoryDenylist(), otherCfg)
	if _, err := other.ValidateToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for a foreign issuer, got %v", err)
	}
}

func TestUserHasRole(t *testing.T) {
	store := newMemoryUserStore()
	svc := NewService(store, newMemoryDenylist(), testAuthConfig())
	user := signup(t, svc)

	isAdmin, err := svc.UserHasRole(user.ID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("UserHasRole failed: %v", err)
	}
	if isAdmin {
		t.Error("Expected a fresh account not to be an admin")
	}

	if err := svc.AssignRole(user.ID, models.RoleAdmin); err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}
	isAdmin, err = svc.UserHasRole(user.ID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("UserHasRole failed: %v", err)
	}
	if !isAdmin {
		t.Error("Expected the admin role after assignment")
	}
}

func TestCheckUserPermission(t *testing.T) {
	store := newMemoryUserStore()
	svc := NewService(store, newMemoryDenylist(), testAuthConfig())
	user := signup(t, svc)
	store.perms[user.ID] = []*models.Permission{{Name: "documents:delete"}}

	ok, err := svc.CheckUserPermission(user.ID, "documents:delete")
	if err != nil {
		t.Fatalf("CheckUserPermission failed: %v", err)
	}
	if !ok {
		t.Error("Expected the granted permission to be found")
	}

	ok, err = svc.CheckUserPermission(user.ID, "finetune:create")
	if err != nil {
		t.Fatalf("CheckUserPermission failed: %v", err)
	}
	if ok {
		t.Error("Expected an ungranted permission to be denied")
	}
}

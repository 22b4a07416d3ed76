package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"accord/backend/go/internal/config"
	"accord/backend/go/internal/models"
	"accord/backend/go/internal/pii"
	userservice "accord/backend/go/internal/user_service/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memUserStore struct {
	users  map[uint]*models.User
	nextID uint
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uint]*models.User)}
}

func (m *memUserStore) CreateUser(user *models.User) error {
	m.nextID++
	user.ID = m.nextID
	user.Roles = append(user.Roles, &models.AuthRole{Name: models.RoleMember})
	m.users[user.ID] = user
	return nil
}

func (m *memUserStore) GetUserByEmail(email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUserStore) GetUserByUsername(username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUserStore) GetUserByPhone(phone string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *memUserStore) GetUserByID(id uint) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUserStore) UpdateLastLogin(userID uint, at time.Time) error {
	return nil
}

func (m *memUserStore) AssignRoleToUser(userID uint, roleName string) error {
	if u, ok := m.users[userID]; ok {
		u.Roles = append(u.Roles, &models.AuthRole{Name: roleName})
	}
	return nil
}

func (m *memUserStore) GetUserPermissions(userID uint) ([]*models.Permission, error) {
	return nil, nil
}

type memDenylist struct {
	denied map[string]bool
}

func newMemDenylist() *memDenylist {
	return &memDenylist{denied: make(map[string]bool)}
}

func (m *memDenylist) Deny(ctx context.Context, jti string, ttl time.Duration) error {
	m.denied[jti] = true
	return nil
}

func (m *memDenylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	return m.denied[jti], nil
}

// newAuthFixture builds an auth service plus one logged-in user's token.
func newAuthFixture(t *testing.T) (*userservice.Service, *models.User, string) {
	t.Helper()
	svc := userservice.NewService(newMemUserStore(), newMemDenylist(), config.AuthConfig{
		JwtSecret: "test-secret",
		Issuer:    "accord",
		Audience:  "accord-clients",
		TokenTTL:  3600,
	})
	user, err := svc.Signup(userservice.SignupRequest{
		Username: "ada",
		Email:    "ada@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	token, _, err := svc.Login("ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return svc, user, token
}

func authedRequest(method, target, token string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthMiddleware(t *testing.T) {
	svc, user, token := newAuthFixture(t)

	var seenUserID uint
	r := gin.New()
	r.GET("/protected", AuthMiddleware(svc), func(c *gin.Context) {
		seenUserID = c.GetUint(ctxUserID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Errorf("Expected status %d, got %d", tc.want, w.Code)
			}
		})
	}

	if seenUserID != user.ID {
		t.Errorf("Expected user ID %d on the context, got %d", user.ID, seenUserID)
	}
}

func TestAuthMiddlewareRejectsRevokedToken(t *testing.T) {
	svc, _, token := newAuthFixture(t)

	r := gin.New()
	r.GET("/protected", AuthMiddleware(svc), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/protected", token))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 before logout, got %d", w.Code)
	}

	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/protected", token))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 after logout, got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	svc, user, token := newAuthFixture(t)

	r := gin.New()
	r.DELETE("/admin-only", AuthMiddleware(svc), RequireAdmin(svc), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodDelete, "/admin-only", token))
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for a member, got %d", w.Code)
	}

	if err := svc.AssignRole(user.ID, models.RoleAdmin); err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodDelete, "/admin-only", token))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for an admin, got %d", w.Code)
	}
}

func TestResponseRedaction(t *testing.T) {
	r := gin.New()
	r.Use(ResponseRedaction(pii.NewRedactor([]string{"ssn"})))
	r.GET("/answer", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"answer": "The employee record lists SSN 123-45-6789."})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/answer", nil))

	body := w.Body.String()
	if strings.Contains(body, "123-45-6789") {
		t.Errorf("Expected the SSN removed from the response, got %q", body)
	}
	if !strings.Contains(body, "[REDACTED_SSN]") {
		t.Errorf("Expected a redaction marker in the response, got %q", body)
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

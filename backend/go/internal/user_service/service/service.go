package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"accord/backend/go/internal/config"
	"accord/backend/go/internal/models"
	"accord/backend/go/pkg/logger"
)

// Errors returned to callers. Handlers map them to HTTP status codes.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrPhoneTaken         = errors.New("phone number already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrAccountDisabled    = errors.New("account disabled")
)

// UserStore is the persistence surface the auth service needs.
// *store.Store satisfies it.
type UserStore interface {
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	GetUserByPhone(phone string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	UpdateLastLogin(userID uint, at time.Time) error
	AssignRoleToUser(userID uint, roleName string) error
	GetUserPermissions(userID uint) ([]*models.Permission, error)
}

// Service implements account registration, login and token lifecycle.
type Service struct {
	store    UserStore
	denylist TokenDenylist
	cfg      config.AuthConfig
	log      *logger.Logger
}

// NewService creates the auth service. denylist may be nil, in which case
// logout is unavailable and tokens stay valid until they expire.
func NewService(store UserStore, denylist TokenDenylist, cfg config.AuthConfig) *Service {
	return &Service{
		store:    store,
		denylist: denylist,
		cfg:      cfg,
		log:      logger.New("auth-service", "", ""),
	}
}

// SignupRequest carries the fields of a registration.
type SignupRequest struct {
	Username string
	Email    string
	Phone    string
	Password string
	FullName string
}

// Signup registers a new account. Username, email and phone must be unused.
func (s *Service) Signup(req SignupRequest) (*models.User, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, errors.New("username, email and password are required")
	}

	if err := s.checkAvailable(req); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username: req.Username,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: string(hashed),
		Status:   models.StatusActive,
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}

	s.log.WithField("user_id", user.ID).WithField("username", user.Username).Info("User registered")
	return user, nil
}

func (s *Service) checkAvailable(req SignupRequest) error {
	if _, err := s.store.GetUserByEmail(req.Email); !errors.Is(err, gorm.ErrRecordNotFound) {
		if err != nil {
			return err
		}
		return ErrEmailTaken
	}
	if _, err := s.store.GetUserByUsername(req.Username); !errors.Is(err, gorm.ErrRecordNotFound) {
		if err != nil {
			return err
		}
		return ErrUsernameTaken
	}
	if req.Phone != "" {
		if _, err := s.store.GetUserByPhone(req.Phone); !errors.Is(err, gorm.ErrRecordNotFound) {
			if err != nil {
				return err
			}
			return ErrPhoneTaken
		}
	}
	return nil
}

// Login checks the credentials and returns a signed token plus the user.
// Lookup and password failures return the same error so callers cannot
// probe which accounts exist.
func (s *Service) Login(email, password string) (string, *models.User, error) {
	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if user.Status != models.StatusActive {
		return "", nil, fmt.Errorf("%w: account is %s", ErrAccountDisabled, user.Status)
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	if err := s.store.UpdateLastLogin(user.ID, time.Now().UTC()); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("Failed to record login time")
	}
	return token, user, nil
}

// Logout revokes the given token by denylisting its ID for the remainder of
// its lifetime. An already expired token needs no revocation.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	if s.denylist == nil {
		return errors.New("logout unavailable: no token denylist configured")
	}

	claims, err := s.parseClaims(tokenString)
	if err != nil {
		return err
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return ErrInvalidToken
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return ErrInvalidToken
	}

	remaining := time.Until(time.Unix(int64(exp), 0))
	if remaining <= 0 {
		return nil
	}
	return s.denylist.Deny(ctx, jti, remaining)
}

// ValidateToken verifies the signature, expiry, issuer and revocation state
// of a token and returns the user ID it was issued to.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (uint, error) {
	claims, err := s.parseClaims(tokenString)
	if err != nil {
		return 0, err
	}

	if s.denylist != nil {
		jti, _ := claims["jti"].(string)
		if jti != "" {
			denied, err := s.denylist.IsDenied(ctx, jti)
			if err != nil {
				return 0, fmt.Errorf("check token revocation: %w", err)
			}
			if denied {
				return 0, ErrInvalidToken
			}
		}
	}

	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, ErrInvalidToken
	}
	return uint(sub), nil
}

// GetUser returns the user with the given ID, roles included.
func (s *Service) GetUser(id uint) (*models.User, error) {
	return s.store.GetUserByID(id)
}

// UserHasRole reports whether the user currently holds the named role. The
// check reads the database, so a role change takes effect on the next
// request rather than at the next login.
func (s *Service) UserHasRole(userID uint, role string) (bool, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return false, err
	}
	return user.HasRole(role), nil
}

// AssignRole adds the named role to a user.
func (s *Service) AssignRole(userID uint, role string) error {
	return s.store.AssignRoleToUser(userID, role)
}

// CheckUserPermission reports whether any of the user's roles grants the
// named permission.
func (s *Service) CheckUserPermission(userID uint, requiredPermission string) (bool, error) {
	permissions, err := s.store.GetUserPermissions(userID)
	if err != nil {
		return false, err
	}
	for _, p := range permissions {
		if p.Name == requiredPermission {
			return true, nil
		}
	}
	return false, nil
}

// --- Helpers ---

func (s *Service) generateJWT(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": user.ID,
		"iss": s.cfg.Issuer,
		"aud": s.cfg.Audience,
		"exp": now.Add(time.Duration(s.cfg.TokenTTL) * time.Second).Unix(),
		"iat": now.Unix(),
		"jti": uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JwtSecret))
}

func (s *Service) parseClaims(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if s.cfg.Issuer != "" && !claims.VerifyIssuer(s.cfg.Issuer, true) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

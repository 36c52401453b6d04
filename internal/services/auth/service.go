package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/castlegate/castlegate/internal/dependencies/clock"
	"github.com/castlegate/castlegate/internal/model"
	"github.com/castlegate/castlegate/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims is the JWT claim set carried by every issued token
type Claims struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Guest       bool   `json:"guest"`
	jwt.RegisteredClaims
}

// Identity is the verified identity behind a token. The PlayerID is the
// only thing the session core consumes; it treats it as opaque.
type Identity struct {
	PlayerID    model.PlayerID
	DisplayName string
	Guest       bool
}

// Config holds configuration for the auth service
type Config struct {
	// Secret signs issued tokens. Every server process must share it,
	// since tokens are verified statelessly.
	Secret        string
	TokenDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		TokenDuration: 24 * time.Hour,
	}
}

// Service issues and verifies player identity tokens. Tokens are signed
// JWTs rather than server-side sessions so that any process behind the
// same secret can verify them without shared state.
type Service struct {
	storage storage.Store
	clock   clock.Clock
	logger  *slog.Logger

	secret        []byte
	tokenDuration time.Duration
}

// New creates a new auth Service
func New(storage storage.Store, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = DefaultConfig().TokenDuration
	}
	return &Service{
		storage:       storage,
		clock:         clock,
		logger:        logger.With(slog.String("component", "auth")),
		secret:        []byte(cfg.Secret),
		tokenDuration: cfg.TokenDuration,
	}
}

// Login describes a successful authentication: the identity plus the
// bearer token the client presents on the websocket upgrade.
type Login struct {
	Identity Identity
	Token    string
}

// LoginGuest mints an identity for an anonymous player. Nothing is
// persisted: a guest exists only as long as their token does.
func (s *Service) LoginGuest(ctx context.Context, displayName string) (*Login, error) {
	identity := Identity{
		PlayerID:    model.PlayerID("guest_" + uuid.New().String()),
		DisplayName: displayName,
		Guest:       true,
	}

	token, err := s.issueToken(identity)
	if err != nil {
		return nil, err
	}

	s.logger.Info("guest login", slog.String("player_id", string(identity.PlayerID)))
	return &Login{Identity: identity, Token: token}, nil
}

// Register creates a named account and logs it in
func (s *Service) Register(ctx context.Context, username, password string) (*Login, error) {
	_, err := s.storage.GetAccountByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameExists
	}
	if !errors.Is(err, model.ErrAccountNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		PlayerID:     model.PlayerID("p_" + uuid.New().String()),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.storage.SaveAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account registered",
		slog.String("player_id", string(account.PlayerID)),
		slog.String("username", username),
	)
	return s.loginAccount(account)
}

// LoginAccount authenticates a registered account by password
func (s *Service) LoginAccount(ctx context.Context, username, password string) (*Login, error) {
	account, err := s.storage.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.loginAccount(account)
}

func (s *Service) loginAccount(account *model.Account) (*Login, error) {
	identity := Identity{
		PlayerID:    account.PlayerID,
		DisplayName: account.Username,
	}
	token, err := s.issueToken(identity)
	if err != nil {
		return nil, err
	}
	return &Login{Identity: identity, Token: token}, nil
}

// VerifyToken checks a bearer token and returns the identity it carries
func (s *Service) VerifyToken(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.PlayerID == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		PlayerID:    model.PlayerID(claims.PlayerID),
		DisplayName: claims.DisplayName,
		Guest:       claims.Guest,
	}, nil
}

func (s *Service) issueToken(identity Identity) (string, error) {
	now := s.clock.Now()
	claims := &Claims{
		PlayerID:    string(identity.PlayerID),
		DisplayName: identity.DisplayName,
		Guest:       identity.Guest,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// TokenFromHeader extracts the bearer token from an Authorization header
func TokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrInvalidToken
	}
	return header[len(prefix):], nil
}

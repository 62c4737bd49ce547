package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/margindesk/admin-api/internal/admin"
	"github.com/margindesk/admin-api/pkg/response"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenGeneration    = errors.New("failed to generate token")
	ErrInvalidToken       = errors.New("invalid token")
)

// Credentials represents an admin login request
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	Token      string    `json:"jwt_token"`
	Expiration time.Time `json:"expiration"`
	Role       string    `json:"role"`
}

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	AdminID string `json:"admin_id"`
	Role    string `json:"role"`
}

// Service handles admin authentication
type Service struct {
	jwtSecret []byte
	tokenTTL  time.Duration
	admins    *admin.Database
}

// NewService creates a new authentication service with the given JWT secret
func NewService(jwtSecret string, tokenTTL time.Duration, admins *admin.Database) *Service {
	return &Service{
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		admins:    admins,
	}
}

// Login verifies an admin's credentials and returns a signed JWT carrying
// the admin id and role. Inactive admins cannot log in.
func (s *Service) Login(creds Credentials) (*TokenResponse, error) {
	adm, err := s.admins.GetAdminByUsername(creds.Username)
	if err != nil {
		return nil, err
	}
	if adm == nil || !adm.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(adm.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.GenerateToken(adm)
}

// GenerateToken signs a token for an already-verified admin identity.
func (s *Service) GenerateToken(adm *admin.Admin) (*TokenResponse, error) {
	expiration := time.Now().Add(s.tokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adm.AdminID,
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		AdminID: adm.AdminID,
		Role:    adm.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
		Role:       adm.Role,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// HashPassword produces a bcrypt hash for storage on the admin record.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// LoginHandler handles POST requests to exchange credentials for a JWT
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.Login(creds)
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

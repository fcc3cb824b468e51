package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrDisabled           = errors.New("admin access is not configured")
)

const issuer = "portfolio-web"

// Service issues and checks operator tokens for a single admin account.
type Service struct {
	jwtSecret     string
	jwtExpiration time.Duration
	adminUser     string
	adminHash     string
	now           func() time.Time
}

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func NewService(jwtSecret string, jwtExpiration time.Duration, adminUser, adminHash string) *Service {
	return &Service{
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		adminUser:     adminUser,
		adminHash:     adminHash,
		now:           time.Now,
	}
}

// Enabled reports whether a secret and a password hash are configured.
func (s *Service) Enabled() bool {
	return s.jwtSecret != "" && s.adminHash != ""
}

// Login checks the admin credentials and returns a signed token.
func (s *Service) Login(req *LoginRequest) (*TokenResponse, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.adminUser)) == 1
	passOK := CheckPassword(req.Password, s.adminHash)
	if !userOK || !passOK {
		return nil, ErrInvalidCredentials
	}
	return s.GenerateToken(req.Username)
}

func (s *Service) GenerateToken(username string) (*TokenResponse, error) {
	now := s.now()
	expirationTime := now.Add(s.jwtExpiration)

	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		Token:     tokenString,
		ExpiresAt: expirationTime.Unix(),
	}, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.Username != s.adminUser {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

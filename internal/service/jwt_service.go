package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distingue access de refresh dentro del claim "type".
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// JWTService emite y valida tokens JWT firmados con HS256.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

type Claims struct {
	TokenType TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenClaims es lo que sobrevive a una verificación exitosa.
type TokenClaims struct {
	Subject   string
	ExpiresAt time.Time
}

type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

func NewJWTService(secret, issuer string, accessTTL, refreshTTL time.Duration) *JWTService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "authorization-service"
	}
	return &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
		now:        time.Now,
	}
}

func (s *JWTService) IssueAccess(userID int64) (string, time.Time, error) {
	return s.Issue(strconv.FormatInt(userID, 10), TokenAccess, s.accessTTL)
}

func (s *JWTService) IssueRefresh(userID int64) (string, time.Time, error) {
	return s.Issue(strconv.FormatInt(userID, 10), TokenRefresh, s.refreshTTL)
}

// Issue firma un token del tipo pedido; expiresAt queda truncado a segundos como el claim exp.
func (s *JWTService) Issue(subject string, tokenType TokenType, ttl time.Duration) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrInvalidToken
	}
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	// iat y exp se emiten en segundos enteros; se trunca antes de sumar el ttl.
	now := s.now().UTC().Truncate(time.Second)
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify valida firma, exp, issuer y que el tipo coincida con el esperado.
func (s *JWTService) Verify(tokenString string, expected TokenType) (TokenClaims, error) {
	if len(s.secret) == 0 {
		return TokenClaims{}, ErrInvalidToken
	}
	if strings.TrimSpace(tokenString) == "" {
		return TokenClaims{}, ErrInvalidToken
	}
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return TokenClaims{}, err
	}
	if claims.TokenType != expected {
		return TokenClaims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ExpiresAt == nil {
		return TokenClaims{}, ErrInvalidToken
	}
	return TokenClaims{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// UserID convierte el subject al id entero; un subject no numérico es un token inválido.
func (c TokenClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

func (s *JWTService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *JWTService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

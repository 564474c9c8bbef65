// ABOUTME: JWT login tokens embedded in web app deep links
// ABOUTME: Uses HS256 signing with the configured secret and an auto-login claim

package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

// DefaultLoginTTL matches how long a deep link from the bot stays usable.
const DefaultLoginTTL = 30 * 24 * time.Hour

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrShortSecret  = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
)

// LoginClaims are carried by a deep-link token.
type LoginClaims struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	AutoLogin bool   `json:"autoLogin"`
	jwt.RegisteredClaims
}

// Signer issues and verifies login tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a signer. A ttl of zero uses DefaultLoginTTL.
func NewSigner(secret []byte, ttl time.Duration) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrShortSecret
	}
	if ttl <= 0 {
		ttl = DefaultLoginTTL
	}
	return &Signer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Sign issues an auto-login token for the account.
func (s *Signer) Sign(userID, username string) (string, error) {
	now := s.now()
	claims := LoginClaims{
		UserID:    userID,
		Username:  username,
		AutoLogin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing login token: %w", err)
	}
	return signed, nil
}

// Verify validates a token and returns its claims.
func (s *Signer) Verify(tokenString string) (*LoginClaims, error) {
	claims := &LoginClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: userId", ErrMissingClaim)
	}
	return claims, nil
}

// CatalogURL builds {base}/catalog?token=<jwt>, tolerating a trailing slash on base.
func CatalogURL(base, token string) string {
	return strings.TrimRight(base, "/") + "/catalog?token=" + url.QueryEscape(token)
}

// FallbackUsername is the login name used when the platform handle is empty.
func FallbackUsername(telegramID int64) string {
	return "user_" + strconv.FormatInt(telegramID, 10)
}

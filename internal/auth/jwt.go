package auth

import (
	"errors"
	"fmt"
	"time"

	"scout-portal/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	secret     = []byte("change-me")
	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Configure sets the signing secret and token lifetimes. Called once at
// startup.
func Configure(signingSecret string, access, refresh time.Duration) {
	secret = []byte(signingSecret)
	if access > 0 {
		accessTTL = access
	}
	if refresh > 0 {
		refreshTTL = refresh
	}
}

func RefreshTTL() time.Duration { return refreshTTL }

// TokenData is what a verified token says about its bearer.
type TokenData struct {
	UserID       uint64
	Role         domain.Role
	TokenVersion uint64
	Type         string
}

func generate(userID uint64, role domain.Role, tokenVersion uint64, typ string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":       userID,
		"role":          string(role),
		"token_version": tokenVersion,
		"type":          typ,
		"exp":           time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func GenerateAccessToken(userID uint64, role domain.Role, tokenVersion uint64) (string, error) {
	return generate(userID, role, tokenVersion, tokenTypeAccess, accessTTL)
}

func GenerateRefreshToken(userID uint64, role domain.Role, tokenVersion uint64) (string, error) {
	return generate(userID, role, tokenVersion, tokenTypeRefresh, refreshTTL)
}

func VerifyJWT(tokenString string) (*jwt.Token, error) {
	// parse token
	jwtToken, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	// isValid
	if !jwtToken.Valid {
		return nil, errors.New("token invalid")
	}

	return jwtToken, nil
}

func GetDataFromToken(token *jwt.Token) (*TokenData, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	// numbers come back as float64 from the JSON payload
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return nil, errors.New("user_id missing")
	}
	version, ok := claims["token_version"].(float64)
	if !ok {
		return nil, errors.New("token_version missing")
	}
	role, _ := claims["role"].(string)
	typ, _ := claims["type"].(string)

	data := &TokenData{
		UserID:       uint64(userID),
		Role:         domain.Role(role),
		TokenVersion: uint64(version),
		Type:         typ,
	}
	if !data.Role.Valid() {
		return nil, errors.New("unknown role")
	}
	return data, nil
}

func (d *TokenData) IsAccess() bool  { return d.Type == tokenTypeAccess }
func (d *TokenData) IsRefresh() bool { return d.Type == tokenTypeRefresh }

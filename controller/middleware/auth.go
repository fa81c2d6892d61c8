package middleware

import (
	"strings"
	"time"

	"mini-app-service/common"
	"mini-app-service/controller/respond"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextIdentity      = "identity"
	ContextWalletTrusted = "wallet_trusted"
)

// IdentityClaims identity token issued by the session layer
type IdentityClaims struct {
	// WalletTrusted set by a first-party mini app host that already holds the wallet
	WalletTrusted bool `json:"wallet_trusted,omitempty"`
	jwt.RegisteredClaims
}

// GenerateIdentityToken sign an identity token, subject is the wallet or external id
func GenerateIdentityToken(secret, identity string, walletTrusted bool, ttl time.Duration) (string, error) {
	claims := IdentityClaims{
		WalletTrusted: walletTrusted,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseIdentityToken validate an identity token
func ParseIdentityToken(secret, tokenString string) (*IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*IdentityClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

// RequireIdentity resolves the bearer token into the current identity, 40100 otherwise
func RequireIdentity(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || raw == "" || raw == header {
			respond.Unauthenticated(c, "missing bearer token")
			c.Abort()
			return
		}
		claims, err := ParseIdentityToken(secret, raw)
		if err != nil {
			respond.Unauthenticated(c, "invalid token")
			c.Abort()
			return
		}
		identity, err := common.NormalizeIdentity(claims.Subject)
		if err != nil {
			respond.Unauthenticated(c, "invalid identity")
			c.Abort()
			return
		}
		c.Set(ContextIdentity, identity)
		c.Set(ContextWalletTrusted, claims.WalletTrusted)
		c.Next()
	}
}

// Identity current identity set by RequireIdentity
func Identity(c *gin.Context) string {
	return c.GetString(ContextIdentity)
}

// WalletTrusted whether the identity provider vouched for the wallet
func WalletTrusted(c *gin.Context) bool {
	return c.GetBool(ContextWalletTrusted)
}

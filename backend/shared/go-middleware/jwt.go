package middleware

import (
	"context"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ticketland/mono-repo/backend/shared/go-utils"
)

// TokenIssuer identifies the service that issues gate device tokens.
const TokenIssuer = "Ticketland"

// ValidateGateToken checks the token's RS256 signature, expiry, issuer and
// that it was issued to a gate device. Any deviation returns a descriptive
// error.
func ValidateGateToken(
	ctx context.Context,
	tokenString string,
	publicKey *rsa.PublicKey,
) (*jwt.Token, error) {
	if publicKey == nil {
		return nil, errors.New("gate public key not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return publicKey, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("missing expiration claim")
	}
	if exp.Before(time.Now()) {
		return nil, jwt.ErrTokenExpired
	}

	iss, ok := claims["iss"].(string)
	if !ok {
		return nil, errors.New("missing issuer claim")
	}
	if iss != TokenIssuer {
		return nil, errors.New("invalid token issuer")
	}

	if typ, _ := claims["account_type"].(string); typ != utils.GateDeviceAccountType {
		return nil, errors.New("token was not issued to a gate device")
	}

	return token, nil
}

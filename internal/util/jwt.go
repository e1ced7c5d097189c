package util

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the bearer token claims this service reads. Subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func parsePublicKey(pemKey string) (interface{}, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("failed to decode PEM block containing public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return pub, nil
}

// verifierFor fixes the accepted algorithms from the configured key material: a PEM public key
// allows only its asymmetric family, anything else is an HMAC secret.
func verifierFor(keyMaterial string) (interface{}, []string, error) {
	if block, _ := pem.Decode([]byte(keyMaterial)); block != nil {
		pub, err := parsePublicKey(keyMaterial)
		if err != nil {
			return nil, nil, err
		}
		switch pub.(type) {
		case *rsa.PublicKey:
			return pub, []string{"RS256", "RS384", "RS512"}, nil
		case *ecdsa.PublicKey:
			return pub, []string{"ES256", "ES384", "ES512"}, nil
		default:
			return nil, nil, fmt.Errorf("unsupported public key type %T", pub)
		}
	}
	if keyMaterial == "" {
		return nil, nil, errors.New("no verification key configured")
	}
	return []byte(keyMaterial), []string{"HS256", "HS384", "HS512"}, nil
}

// ValidateJWT verifies tokenString against keyMaterial, which is either an HMAC secret or a PEM
// public key. The token's alg header must belong to the family of the configured key.
func ValidateJWT(tokenString string, keyMaterial string) (*Claims, error) {
	key, methods, err := verifierFor(keyMaterial)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods(methods))
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

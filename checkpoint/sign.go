package checkpoint

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// signatureClaims binds a checkpoint id to the checksum of its records.
type signatureClaims struct {
	Checksum string `json:"sha256"`
	jwt.RegisteredClaims
}

func sign(key []byte, id, checksum string) (string, error) {
	claims := signatureClaims{
		Checksum:         checksum,
		RegisteredClaims: jwt.RegisteredClaims{Subject: id},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("checkpoint: sign: %w", err)
	}
	return signed, nil
}

func verify(key []byte, signature, id, checksum string) error {
	if signature == "" {
		return fmt.Errorf("%w: checkpoint is not signed", ErrSignature)
	}
	claims := &signatureClaims{}
	_, err := jwt.ParseWithClaims(signature, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithSubject(id))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSignature, err)
	}
	if claims.Checksum != checksum {
		return fmt.Errorf("%w: checksum claim does not match", ErrSignature)
	}
	return nil
}

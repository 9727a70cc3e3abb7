// internal/token/intent_token.go
package token

import (
	"fmt"
	"time"

	"custody-service/internal/domain"
	"custody-service/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "custody-service"

// Claims identify an intent. Nothing in here is trusted for execution; the
// stored intent is always reloaded and re-validated.
type Claims struct {
	IntentID  string            `json:"iid"`
	AccountID int64             `json:"acct"`
	Kind      domain.IntentKind `json:"kind"`
	Chain     string            `json:"chain"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 intent tokens. Expiry is enforced by the
// intent store, not the token.
type Signer struct {
	key []byte
}

func NewSigner(key []byte) (*Signer, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("intent signing key must be at least 32 bytes, got %d", len(key))
	}
	return &Signer{key: key}, nil
}

func (s *Signer) Sign(intent *domain.Intent) (string, error) {
	claims := Claims{
		IntentID:  intent.ID,
		AccountID: intent.AccountID,
		Kind:      intent.Kind,
		Chain:     intent.Chain,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(intent.QuotedAt.Truncate(time.Second)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign intent token: %w", err)
	}
	return signed, nil
}

func (s *Signer) Verify(tokenStr string) (*Claims, error) {
	const op = "token.Verify"

	claims := new(Claims)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil || !parsed.Valid || claims.IntentID == "" {
		return nil, apperr.New(apperr.CodeInvalidIntentToken, op, "intent token is invalid or has been tampered with")
	}
	return claims, nil
}

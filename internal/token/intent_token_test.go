package token

import (
	"strings"
	"testing"
	"time"

	"custody-service/internal/domain"
	"custody-service/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T, seed string) *Signer {
	t.Helper()
	signer, err := NewSigner([]byte(strings.Repeat(seed, 32)))
	require.NoError(t, err)
	return signer
}

func TestSignAndVerify(t *testing.T) {
	signer := testSigner(t, "k")
	intent := &domain.Intent{
		ID:        "int_01JABCDEF",
		AccountID: 7,
		Kind:      domain.IntentKindBuy,
		Chain:     "base",
		QuotedAt:  time.Now(),
	}

	tok, err := signer.Sign(intent)
	require.NoError(t, err)

	claims, err := signer.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, claims.IntentID)
	assert.Equal(t, int64(7), claims.AccountID)
	assert.Equal(t, domain.IntentKindBuy, claims.Kind)
	assert.Equal(t, "base", claims.Chain)
}

func TestVerifyRejectsTampering(t *testing.T) {
	signer := testSigner(t, "k")
	tok, err := signer.Sign(&domain.Intent{ID: "int_1", AccountID: 1, QuotedAt: time.Now()})
	require.NoError(t, err)

	_, err = testSigner(t, "x").Verify(tok)
	assert.Equal(t, apperr.CodeInvalidIntentToken, apperr.CodeOf(err))

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	forged := parts[0] + "." + parts[1] + "A." + parts[2]
	_, err = signer.Verify(forged)
	assert.Equal(t, apperr.CodeInvalidIntentToken, apperr.CodeOf(err))

	_, err = signer.Verify("not-a-token")
	assert.Equal(t, apperr.CodeInvalidIntentToken, apperr.CodeOf(err))
}

func TestNewSignerRequiresLongKey(t *testing.T) {
	_, err := NewSigner([]byte("short"))
	assert.Error(t, err)
}

package authflow

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestFinalizeGrantExpiresInWins(t *testing.T) {
	now := time.Unix(1700000000, 0)
	grant := finalizeGrant(&TokenGrant{AccessToken: "opaque", ExpiresIn: 3600}, now)

	want := now.Add(time.Hour)
	if !grant.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", grant.ExpiresAt, want)
	}
}

func TestFinalizeGrantFallsBackToClaims(t *testing.T) {
	exp := time.Unix(1700003600, 0)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	grant := finalizeGrant(&TokenGrant{AccessToken: signed}, time.Unix(1700000000, 0))
	if !grant.ExpiresAt.Equal(exp) {
		t.Fatalf("ExpiresAt = %v, want %v", grant.ExpiresAt, exp)
	}
}

func TestFinalizeGrantExpiredClaimStillParses(t *testing.T) {
	// Expiry extraction must not validate: an already-expired claim is
	// still read, scheduling is the caller's problem.
	exp := time.Unix(1000000000, 0)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	signed, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	grant := finalizeGrant(&TokenGrant{AccessToken: signed}, time.Unix(1700000000, 0))
	if !grant.ExpiresAt.Equal(exp) {
		t.Fatalf("ExpiresAt = %v, want %v", grant.ExpiresAt, exp)
	}
}

func TestFinalizeGrantOpaqueToken(t *testing.T) {
	grant := finalizeGrant(&TokenGrant{AccessToken: "not-a-jwt"}, time.Unix(1700000000, 0))
	if !grant.ExpiresAt.IsZero() {
		t.Fatalf("opaque token should yield zero ExpiresAt, got %v", grant.ExpiresAt)
	}
}

func TestFinalizeGrantNil(t *testing.T) {
	if finalizeGrant(nil, time.Now()) != nil {
		t.Fatal("nil grant must stay nil")
	}
}

package auth

import (
	"testing"
	"time"
)

func TestSessionIssuerTokensPassValidation(t *testing.T) {
	clockNow := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return clockNow }
	issuer, err := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		Issuer:        testSessionIssuer,
		SessionTTL:    time.Hour,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	token, expiresAt, err := issuer.Issue(SessionIdentity{UserID: " user-9 ", Email: testSessionUserEmail})
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if !expiresAt.Equal(clockNow.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := newTestValidator(t, clock).ValidateToken(token)
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if claims.UserID != "user-9" || claims.Subject != "user-9" || claims.UserEmail != testSessionUserEmail {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestSessionIssuerRejectsInvalidInput(t *testing.T) {
	if _, err := NewSessionIssuer(SessionIssuerConfig{Issuer: testSessionIssuer}); err == nil {
		t.Fatalf("expected constructor error for missing secret")
	}
	if _, err := NewSessionIssuer(SessionIssuerConfig{SigningSecret: []byte("secret")}); err == nil {
		t.Fatalf("expected constructor error for missing issuer")
	}

	issuer, err := NewSessionIssuer(SessionIssuerConfig{SigningSecret: []byte("secret"), Issuer: testSessionIssuer})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, _, err := issuer.Issue(SessionIdentity{UserID: "  "}); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}

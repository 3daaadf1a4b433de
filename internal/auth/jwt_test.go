// ABOUTME: Tests for HS256 token minting and verification
// ABOUTME: Covers round trips, expiry, tampering, and secret length enforcement

package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewJWTSigner_ShortSecret(t *testing.T) {
	_, err := NewJWTSigner([]byte("too-short"))
	if !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("error = %v, want ErrSecretTooShort", err)
	}
}

func TestJWTSigner_RoundTrip(t *testing.T) {
	signer, err := NewJWTSigner([]byte(testSecret))
	if err != nil {
		t.Fatalf("NewJWTSigner() error = %v", err)
	}

	token, err := signer.Mint("client-a", "agent:invoke agent:stream", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	subject, scope, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if subject != "client-a" {
		t.Errorf("subject = %q", subject)
	}
	if scope != "agent:invoke agent:stream" {
		t.Errorf("scope = %q", scope)
	}
}

func TestJWTSigner_Expired(t *testing.T) {
	signer, err := NewJWTSigner([]byte(testSecret))
	if err != nil {
		t.Fatalf("NewJWTSigner() error = %v", err)
	}

	token, err := signer.Mint("client-a", "", -time.Minute)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	_, _, err = signer.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTSigner_WrongSecret(t *testing.T) {
	signer, err := NewJWTSigner([]byte(testSecret))
	if err != nil {
		t.Fatalf("NewJWTSigner() error = %v", err)
	}
	other, err := NewJWTSigner([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("NewJWTSigner() error = %v", err)
	}

	token, err := signer.Mint("client-a", "", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	_, _, err = other.Verify(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTSigner_Garbage(t *testing.T) {
	signer, err := NewJWTSigner([]byte(testSecret))
	if err != nil {
		t.Fatalf("NewJWTSigner() error = %v", err)
	}

	_, _, err = signer.Verify("not.a.jwt")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("error = %v, want ErrInvalidToken", err)
	}
}

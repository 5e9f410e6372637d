package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", "doaqui-test", time.Hour)
	userID := uuid.New()

	token, err := issuer.Issue(userID)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got != userID {
		t.Errorf("expected subject %s, got %s", userID, got)
	}
}

func TestTokenIssuer_Verify(t *testing.T) {
	issuer := NewTokenIssuer("secret", "doaqui-test", time.Hour)

	t.Run("garbage token", func(t *testing.T) {
		if _, err := issuer.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenIssuer("other-secret", "doaqui-test", time.Hour)
		token, err := other.Issue(uuid.New())
		if err != nil {
			t.Fatalf("issue failed: %v", err)
		}
		if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenIssuer("secret", "someone-else", time.Hour)
		token, err := other.Issue(uuid.New())
		if err != nil {
			t.Fatalf("issue failed: %v", err)
		}
		if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewTokenIssuer("secret", "doaqui-test", -time.Minute)
		token, err := expired.Issue(uuid.New())
		if err != nil {
			t.Fatalf("issue failed: %v", err)
		}
		if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})
}

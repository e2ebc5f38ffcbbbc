package crypto

import (
	"context"
	"errors"
	"testing"
	"time"

	"gitlab.com/effect-network.net/internal/config"
)

func TestJWTRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewJWTService(&config.JwtConfig{Secret: "s3cret"})

	tok, err := svc.GenerateTokenHMAC(ctx, "HS256", map[string]interface{}{"sub": "operator"})
	if err != nil {
		t.Fatalf("GenerateTokenHMAC: %v", err)
	}
	ok, err := svc.VerifyTokenHMAC(ctx, tok, "HS256")
	if err != nil || !ok {
		t.Fatalf("VerifyTokenHMAC = %v, %v", ok, err)
	}

	if _, err := svc.VerifyTokenHMAC(ctx, tok, "HS512"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("VerifyTokenHMAC with another method = %v", err)
	}
	other := NewJWTService(&config.JwtConfig{Secret: "other"})
	if _, err := other.VerifyTokenHMAC(ctx, tok, "HS256"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("VerifyTokenHMAC with another secret = %v", err)
	}
}

func TestJWTExpiry(t *testing.T) {
	ctx := context.Background()
	svc := &JWTServiceImpl{HMACSecretKey: "s3cret", now: time.Now}

	tok, err := svc.GenerateTokenHMAC(ctx, "HS256", map[string]interface{}{
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("GenerateTokenHMAC: %v", err)
	}
	if _, err := svc.VerifyTokenHMAC(ctx, tok, "HS256"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestJWTRejectsNonHMAC(t *testing.T) {
	svc := NewJWTService(&config.JwtConfig{Secret: "s3cret"})
	if _, err := svc.GenerateTokenHMAC(context.Background(), "RS256", map[string]interface{}{}); err == nil {
		t.Fatal("RS256 accepted")
	}
}

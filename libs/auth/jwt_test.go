package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestHS256RoundTrip(t *testing.T) {
	secret := "test-secret"
	token, err := SignHS256("user-1", RoleOwner, secret, time.Hour)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	claims, err := Verifier{Secret: secret}.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != RoleOwner {
		t.Fatalf("claims mismatch: got %+v", claims)
	}
	if _, err := (Verifier{Secret: "wrong-secret"}).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken with wrong secret, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := SignHS256("user-1", RoleCustomer, "s", -time.Minute)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := (Verifier{Secret: "s"}).Verify(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestRS256ViaJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "kid-1",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	defer srv.Close()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		Role: RoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-2",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	tok.Header["kid"] = "kid-1"
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign RS256: %v", err)
	}

	claims, err := Verifier{Keys: NewJWKSClient(srv.URL, time.Minute)}.Verify(signed)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "user-2" || claims.Role != RoleCustomer {
		t.Fatalf("claims mismatch: got %+v", claims)
	}

	// An HS256 token must not pass a verifier that only trusts the JWKS.
	hs, _ := SignHS256("user-2", RoleCustomer, "s", time.Hour)
	if _, err := (Verifier{Keys: NewJWKSClient(srv.URL, time.Minute)}).Verify(hs); err == nil {
		t.Fatal("expected HS256 token to be rejected")
	}
}

func TestStateRoundTrip(t *testing.T) {
	state, err := SignState("owner-9", "state-secret", time.Minute)
	if err != nil {
		t.Fatalf("SignState failed: %v", err)
	}
	user, err := VerifyState(state, "state-secret")
	if err != nil || user != "owner-9" {
		t.Fatalf("VerifyState: got %q, %v", user, err)
	}

	// A session token is not a valid state, even with the same secret.
	session, _ := SignHS256("owner-9", RoleOwner, "state-secret", time.Hour)
	if _, err := VerifyState(session, "state-secret"); err == nil {
		t.Fatal("expected session token to be rejected as state")
	}
}

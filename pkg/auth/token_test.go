package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "marketplace-auth"}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	accountID := uuid.New()

	token, err := MintAccessToken(testJWT, now, 30*time.Minute, accountID, "chef", RoleAdmin)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	claims, err := ParseAccessToken(testJWT, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.AccountID != accountID {
		t.Fatalf("expected account_id %s, got %s", accountID, claims.AccountID)
	}
	if !claims.HasRole("chef") || !claims.HasRole(RoleAdmin) || claims.HasRole("rider") {
		t.Fatalf("unexpected roles %v", claims.Roles)
	}
	if claims.Issuer != testJWT.Issuer {
		t.Fatalf("expected issuer %s, got %s", testJWT.Issuer, claims.Issuer)
	}
	diff := claims.ExpiresAt.Sub(now.Add(30 * time.Minute))
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("unexpected expiry %v", claims.ExpiresAt)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now(), 10*time.Minute, uuid.New())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := config.JWTConfig{Secret: "other", Issuer: testJWT.Issuer}
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), time.Hour, uuid.New())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	_, err = ParseAccessToken(testJWT, token)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestParseAccessTokenWrongIssuer(t *testing.T) {
	token, err := MintAccessToken(config.JWTConfig{Secret: "secret", Issuer: "someone-else"}, time.Now(), time.Hour, uuid.New())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatalf("expected issuer error")
	}
}

func TestParseAccessTokenRequiresAccount(t *testing.T) {
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testJWT.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWT.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatalf("expected missing account error")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	if _, err := MintAccessToken(config.JWTConfig{Issuer: "x"}, time.Now(), time.Hour, uuid.New()); err == nil {
		t.Fatalf("expected secret error")
	}
	if _, err := MintAccessToken(testJWT, time.Now(), 0, uuid.New()); err == nil {
		t.Fatalf("expected ttl error")
	}
	if _, err := MintAccessToken(testJWT, time.Now(), time.Hour, uuid.Nil); err == nil {
		t.Fatalf("expected account error")
	}
}

func TestNormalizeRolesDropsUnknownAndPlatform(t *testing.T) {
	got := NormalizeRoles([]string{" Chef", "chef", "platform", "superuser", "ADMIN", "rider"})
	want := []string{"chef", "admin", "rider"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseAccessTokenRejectsSubjectMismatch(t *testing.T) {
	now := time.Now()
	claims := AccessTokenClaims{
		AccountID: uuid.New(),
		Roles:     []string{"chef"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testJWT.Issuer,
			Subject:   uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWT.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatalf("expected subject mismatch error")
	}
}

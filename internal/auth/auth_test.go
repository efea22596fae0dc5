package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("kiosk-1", "checkin-gateway", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	claims, err := Parse(pair.AccessToken, "secret", "checkin-gateway")
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "kiosk-1" || claims.Role != "kiosk" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParse_RejectsWrongKeyAndIssuer(t *testing.T) {
	pair, err := Issue("kiosk-1", "checkin-gateway", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(pair.AccessToken, "other-secret", "checkin-gateway"); err == nil {
		t.Error("expected signature failure")
	}
	if _, err := Parse(pair.AccessToken, "secret", "someone-else"); err == nil {
		t.Error("expected issuer mismatch")
	}
}

func TestParse_RejectsExpired(t *testing.T) {
	pair, err := Issue("kiosk-1", "checkin-gateway", "secret", -time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "checkin-gateway"); err == nil {
		t.Error("expected expiry failure")
	}
}

package domain

import (
	"testing"
	"time"
)

func TestRequestExpired(t *testing.T) {
	now := time.Now().UTC()

	req := Request{ExpiresAt: now.Add(time.Minute)}
	if req.Expired(now) {
		t.Fatal("a request inside its window is not expired")
	}

	req.ExpiresAt = now
	if !req.Expired(now) {
		t.Fatal("a request at its deadline is expired")
	}

	req.ExpiresAt = now.Add(-time.Second)
	if !req.Expired(now) {
		t.Fatal("a request past its deadline is expired")
	}
}

func TestProviderEligible(t *testing.T) {
	validated := ProviderValidated
	pending := "pending"

	cases := []struct {
		name     string
		provider ProviderAvailability
		want     bool
	}{
		{"available without status", ProviderAvailability{Available: true}, true},
		{"available validated", ProviderAvailability{Available: true, ValidationStatus: &validated}, true},
		{"available pending validation", ProviderAvailability{Available: true, ValidationStatus: &pending}, false},
		{"unavailable validated", ProviderAvailability{Available: false, ValidationStatus: &validated}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.provider.Eligible(); got != tc.want {
				t.Fatalf("Eligible() = %v, want %v", got, tc.want)
			}
		})
	}
}

package app

import (
	"testing"

	"github.com/google/uuid"

	"github.com/allobrico/dispatch-service/internal/domain"
)

func TestNormalizeCity(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Casablanca", "casablanca"},
		{"casa", "casablanca"},
		{"  CASA  ", "casablanca"},
		{"Dar El Beida", "casablanca"},
		{"Marrakech", "marrakech"},
		{"Marrakesh", "marrakech"},
		{"Fès", "fes"},
		{"Fez", "fes"},
		{"Tanger", "tanger"},
		{"Tangier", "tanger"},
		{"Essaouira", "essaouira"},
		{"Mogador", "essaouira"},
		{"Salé", "sale"},
		{"  Rabat ", "rabat"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeCity(tc.raw); got != tc.want {
			t.Errorf("NormalizeCity(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func strPtr(s string) *string { return &s }

func TestEligibleProviders_CityAndStatusFiltering(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)

	matchAccented := domain.ProviderAvailability{ProviderID: uuid.New(), Available: true, ValidationStatus: strPtr(domain.ProviderValidated), City: strPtr("Fès")}
	matchAlias := domain.ProviderAvailability{ProviderID: uuid.New(), Available: true, City: strPtr("fez")}
	otherCity := domain.ProviderAvailability{ProviderID: uuid.New(), Available: true, ValidationStatus: strPtr(domain.ProviderValidated), City: strPtr("Rabat")}
	unavailable := domain.ProviderAvailability{ProviderID: uuid.New(), Available: false, ValidationStatus: strPtr(domain.ProviderValidated), City: strPtr("Fez")}
	rejected := domain.ProviderAvailability{ProviderID: uuid.New(), Available: true, ValidationStatus: strPtr("rejected"), City: strPtr("Fez")}
	noCity := domain.ProviderAvailability{ProviderID: uuid.New(), Available: true, ValidationStatus: strPtr(domain.ProviderValidated)}

	pool := []domain.ProviderAvailability{matchAccented, matchAlias, otherCity, unavailable, rejected, noCity}

	got := svc.eligibleProviders(pool, strPtr("FEZ"))
	if len(got) != 2 {
		t.Fatalf("expected 2 eligible providers, got %d", len(got))
	}
	if got[0].ProviderID != matchAccented.ProviderID || got[1].ProviderID != matchAlias.ProviderID {
		t.Fatal("expected the accented and alias spellings of the same city to match")
	}
}

func TestEligibleProviders_NoCityBroadcastsToAllEligible(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)

	pool := []domain.ProviderAvailability{
		{ProviderID: uuid.New(), Available: true, ValidationStatus: strPtr(domain.ProviderValidated), City: strPtr("Rabat")},
		{ProviderID: uuid.New(), Available: true, City: strPtr("Agadir")},
		{ProviderID: uuid.New(), Available: false, City: strPtr("Rabat")},
		{ProviderID: uuid.New(), Available: true, ValidationStatus: strPtr("pending")},
	}

	got := svc.eligibleProviders(pool, nil)
	if len(got) != 2 {
		t.Fatalf("expected unresolved city to broadcast to all available validated providers, got %d recipients", len(got))
	}
}

func TestRequestSummary(t *testing.T) {
	amount := int64(35000)
	long := make([]byte, 120)
	for i := range long {
		long[i] = 'a'
	}

	req := &domain.Request{Address: string(long), ProposedAmount: &amount}
	summary := requestSummary(req)
	if want := "Budget 350 MAD - " + string(long[:addressSummaryMaxLen]); summary != want {
		t.Errorf("summary = %q, want %q", summary, want)
	}

	req = &domain.Request{Address: "12 rue des Fleurs"}
	if got := requestSummary(req); got != "12 rue des Fleurs" {
		t.Errorf("summary without amount = %q", got)
	}
}

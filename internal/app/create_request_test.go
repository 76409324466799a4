package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/allobrico/dispatch-service/internal/domain"
	"github.com/allobrico/dispatch-service/internal/store"
)

type createRequestRepoStub struct {
	store.Repository

	client  *domain.Client
	created *domain.Request
}

func (s *createRequestRepoStub) FindClientByID(ctx context.Context, clientID uuid.UUID) (*domain.Client, error) {
	if s.client == nil {
		return nil, store.ErrClientNotFound
	}
	return s.client, nil
}

func (s *createRequestRepoStub) CreateRequest(ctx context.Context, req *domain.Request) error {
	s.created = req
	return nil
}

func (s *createRequestRepoStub) ListAvailableProviders(ctx context.Context) ([]domain.ProviderAvailability, error) {
	return nil, nil
}

func TestCreateRequest_RejectsBlankFields(t *testing.T) {
	repo := &createRequestRepoStub{}
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.CreateRequest(context.Background(), uuid.New(), domain.CreateRequestPayload{Address: "  ", Description: "fuite d'eau"})
	if !errors.Is(err, ErrEmptyAddress) {
		t.Fatalf("expected ErrEmptyAddress, got %v", err)
	}

	_, err = svc.CreateRequest(context.Background(), uuid.New(), domain.CreateRequestPayload{Address: "12 rue X", Description: "\t"})
	if !errors.Is(err, ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}

	negative := int64(-1)
	_, err = svc.CreateRequest(context.Background(), uuid.New(), domain.CreateRequestPayload{Address: "12 rue X", Description: "fuite", ProposedAmount: &negative})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	if repo.created != nil {
		t.Fatal("no request may be persisted for invalid input")
	}
}

func TestCreateRequest_OpensFifteenMinuteWindow(t *testing.T) {
	clientID := uuid.New()
	city := "Casablanca"
	repo := &createRequestRepoStub{client: &domain.Client{ID: clientID, City: &city}}
	svc := NewService(repo, nil, nil, nil, nil)

	before := time.Now().UTC()
	result, err := svc.CreateRequest(context.Background(), clientID, domain.CreateRequestPayload{
		Address:     "12 rue des Orangers, Casablanca",
		Description: "chauffe-eau en panne",
	})
	if err != nil {
		t.Fatalf("expected request creation to succeed, got %v", err)
	}

	if result.Status != domain.RequestStatusPending {
		t.Errorf("status = %q, want %q", result.Status, domain.RequestStatusPending)
	}

	window := result.ExpiresAt.Sub(repo.created.CreatedAt)
	if window != RequestTTL {
		t.Errorf("offer window = %v, want %v", window, RequestTTL)
	}
	if result.ExpiresAt.Before(before.Add(RequestTTL)) {
		t.Error("expiry must be at least TTL past the creation instant")
	}

	if repo.created.City == nil || *repo.created.City != "Casablanca" {
		t.Error("expected the client's saved city to be used without a geocoder")
	}
}

func TestCreateRequest_MissingClientProfileStillCreates(t *testing.T) {
	repo := &createRequestRepoStub{}
	svc := NewService(repo, nil, nil, nil, nil)

	result, err := svc.CreateRequest(context.Background(), uuid.New(), domain.CreateRequestPayload{
		Address:     "7 avenue Hassan II",
		Description: "robinet qui fuit",
	})
	if err != nil {
		t.Fatalf("city resolution failures must not block creation, got %v", err)
	}
	if repo.created.City != nil {
		t.Error("expected no city when neither profile nor geocoder resolves one")
	}
	if result.RequestID != repo.created.ID {
		t.Error("result must reference the persisted request")
	}
}

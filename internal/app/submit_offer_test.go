package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/allobrico/dispatch-service/internal/domain"
	"github.com/allobrico/dispatch-service/internal/store"
)

type submitOfferRepoStub struct {
	store.Repository

	createErr    error
	createdOffer *domain.Offer

	request *domain.Request
}

func (s *submitOfferRepoStub) CreateOffer(ctx context.Context, offer *domain.Offer, now time.Time) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.createdOffer = offer
	return nil
}

func (s *submitOfferRepoStub) FindRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.Request, error) {
	if s.request == nil {
		return nil, store.ErrRequestNotFound
	}
	return s.request, nil
}

func TestSubmitOffer_RejectsNegativeAmount(t *testing.T) {
	repo := &submitOfferRepoStub{}
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.SubmitOffer(context.Background(), uuid.New(), uuid.New(), domain.SubmitOfferPayload{Amount: -1})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if repo.createdOffer != nil {
		t.Fatal("no offer may be created for a negative amount")
	}
}

func TestSubmitOffer_BoundsMessage(t *testing.T) {
	repo := &submitOfferRepoStub{}
	svc := NewService(repo, nil, nil, nil, nil)

	long := strings.Repeat("x", OfferMessageMaxLen+100)
	offer, err := svc.SubmitOffer(context.Background(), uuid.New(), uuid.New(), domain.SubmitOfferPayload{
		Amount:  25000,
		Message: &long,
	})
	if err != nil {
		t.Fatalf("expected offer to be created, got %v", err)
	}
	if offer.Message == nil || len(*offer.Message) != OfferMessageMaxLen {
		t.Fatalf("expected message truncated to %d chars", OfferMessageMaxLen)
	}

	blank := "   "
	offer, err = svc.SubmitOffer(context.Background(), uuid.New(), uuid.New(), domain.SubmitOfferPayload{
		Amount:  25000,
		Message: &blank,
	})
	if err != nil {
		t.Fatalf("expected offer to be created, got %v", err)
	}
	if offer.Message != nil {
		t.Fatal("expected a blank message to be stored as absent")
	}
}

func TestSubmitOffer_BoundsMessageByCharactersNotBytes(t *testing.T) {
	repo := &submitOfferRepoStub{}
	svc := NewService(repo, nil, nil, nil, nil)

	accented := strings.Repeat("é", OfferMessageMaxLen+10)
	offer, err := svc.SubmitOffer(context.Background(), uuid.New(), uuid.New(), domain.SubmitOfferPayload{
		Amount:  25000,
		Message: &accented,
	})
	if err != nil {
		t.Fatalf("expected offer to be created, got %v", err)
	}
	if offer.Message == nil {
		t.Fatal("expected the message to be stored")
	}
	if !utf8.ValidString(*offer.Message) {
		t.Fatal("a truncated message must still be valid UTF-8")
	}
	if got := utf8.RuneCountInString(*offer.Message); got != OfferMessageMaxLen {
		t.Fatalf("message truncated to %d characters, want %d", got, OfferMessageMaxLen)
	}

	exact := strings.Repeat("è", OfferMessageMaxLen)
	offer, err = svc.SubmitOffer(context.Background(), uuid.New(), uuid.New(), domain.SubmitOfferPayload{
		Amount:  25000,
		Message: &exact,
	})
	if err != nil {
		t.Fatalf("expected offer to be created, got %v", err)
	}
	if offer.Message == nil || *offer.Message != exact {
		t.Fatal("a message of exactly the character limit must be stored untouched")
	}
}

func TestSubmitOffer_StoreFailuresPassThrough(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"duplicate offer", store.ErrDuplicateOffer},
		{"request expired", store.ErrRequestExpired},
		{"request not pending", store.ErrRequestNotPending},
		{"request not found", store.ErrRequestNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &submitOfferRepoStub{createErr: tc.err}
			svc := NewService(repo, nil, nil, nil, nil)

			_, err := svc.SubmitOffer(context.Background(), uuid.New(), uuid.New(), domain.SubmitOfferPayload{Amount: 1000})
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestSubmitOffer_InitialStateIsPending(t *testing.T) {
	repo := &submitOfferRepoStub{}
	svc := NewService(repo, nil, nil, nil, nil)

	requestID := uuid.New()
	providerID := uuid.New()
	offer, err := svc.SubmitOffer(context.Background(), requestID, providerID, domain.SubmitOfferPayload{Amount: 0})
	if err != nil {
		t.Fatalf("expected a zero-amount offer to be accepted, got %v", err)
	}
	if offer.Status != domain.OfferStatusPending {
		t.Errorf("offer status = %q, want %q", offer.Status, domain.OfferStatusPending)
	}
	if offer.RequestID != requestID || offer.ProviderID != providerID {
		t.Error("offer must carry the request and provider identities")
	}
}

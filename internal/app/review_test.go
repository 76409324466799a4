package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/allobrico/dispatch-service/internal/domain"
	"github.com/allobrico/dispatch-service/internal/store"
)

type reviewRepoStub struct {
	store.Repository

	request   *domain.Request
	createErr error
	created   *domain.Review
}

func (s *reviewRepoStub) FindRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.Request, error) {
	if s.request == nil {
		return nil, store.ErrRequestNotFound
	}
	return s.request, nil
}

func (s *reviewRepoStub) CreateReview(ctx context.Context, review *domain.Review) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = review
	return nil
}

func completedRequest(clientID, providerID uuid.UUID) *domain.Request {
	return &domain.Request{
		ID:         uuid.New(),
		ClientID:   clientID,
		ProviderID: &providerID,
		Status:     domain.RequestStatusCompleted,
	}
}

func TestSubmitReview_RejectsInvalidRating(t *testing.T) {
	repo := &reviewRepoStub{}
	svc := NewService(repo, nil, nil, nil, nil)

	for _, rating := range []int{0, -1, 6} {
		_, err := svc.SubmitReview(context.Background(), uuid.New(), uuid.New(), domain.SubmitReviewPayload{Rating: rating})
		if !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d: expected ErrInvalidRating, got %v", rating, err)
		}
	}
}

func TestSubmitReview_RequiresCompletedRequest(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	req := completedRequest(clientID, providerID)
	req.Status = domain.RequestStatusAccepted
	repo := &reviewRepoStub{request: req}
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.SubmitReview(context.Background(), req.ID, clientID, domain.SubmitReviewPayload{ToUserID: providerID, Rating: 5})
	if !errors.Is(err, ErrRequestNotCompleted) {
		t.Fatalf("expected ErrRequestNotCompleted, got %v", err)
	}
}

func TestSubmitReview_OnlyPartiesMayReview(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	repo := &reviewRepoStub{request: completedRequest(clientID, providerID)}
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.SubmitReview(context.Background(), repo.request.ID, uuid.New(), domain.SubmitReviewPayload{ToUserID: providerID, Rating: 4})
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestSubmitReview_RecipientMustBeCounterpart(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	repo := &reviewRepoStub{request: completedRequest(clientID, providerID)}
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.SubmitReview(context.Background(), repo.request.ID, clientID, domain.SubmitReviewPayload{ToUserID: clientID, Rating: 4})
	if !errors.Is(err, ErrNotCounterpart) {
		t.Fatalf("expected ErrNotCounterpart, got %v", err)
	}
}

func TestSubmitReview_BothDirections(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	repo := &reviewRepoStub{request: completedRequest(clientID, providerID)}
	svc := NewService(repo, nil, nil, nil, nil)

	review, err := svc.SubmitReview(context.Background(), repo.request.ID, clientID, domain.SubmitReviewPayload{ToUserID: providerID, Rating: 5})
	if err != nil {
		t.Fatalf("client review failed: %v", err)
	}
	if review.ToUserID != providerID {
		t.Fatal("client review must target the provider")
	}

	review, err = svc.SubmitReview(context.Background(), repo.request.ID, providerID, domain.SubmitReviewPayload{ToUserID: clientID, Rating: 3})
	if err != nil {
		t.Fatalf("provider review failed: %v", err)
	}
	if review.ToUserID != clientID {
		t.Fatal("provider review must target the client")
	}
}

func TestSubmitReview_BoundsCommentByCharactersNotBytes(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	repo := &reviewRepoStub{request: completedRequest(clientID, providerID)}
	svc := NewService(repo, nil, nil, nil, nil)

	accented := strings.Repeat("à", reviewCommentMaxLen+50)
	review, err := svc.SubmitReview(context.Background(), repo.request.ID, clientID, domain.SubmitReviewPayload{
		ToUserID: providerID,
		Rating:   4,
		Comment:  &accented,
	})
	if err != nil {
		t.Fatalf("expected review to be created, got %v", err)
	}
	if review.Comment == nil {
		t.Fatal("expected the comment to be stored")
	}
	if !utf8.ValidString(*review.Comment) {
		t.Fatal("a truncated comment must still be valid UTF-8")
	}
	if got := utf8.RuneCountInString(*review.Comment); got != reviewCommentMaxLen {
		t.Fatalf("comment truncated to %d characters, want %d", got, reviewCommentMaxLen)
	}
}

func TestSubmitReview_DuplicatePassesThroughAsConflict(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	repo := &reviewRepoStub{request: completedRequest(clientID, providerID), createErr: store.ErrDuplicateReview}
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.SubmitReview(context.Background(), repo.request.ID, clientID, domain.SubmitReviewPayload{ToUserID: providerID, Rating: 5})
	if !errors.Is(err, store.ErrDuplicateReview) {
		t.Fatalf("expected ErrDuplicateReview, got %v", err)
	}
}

/**
 * @description
 * Post-completion reviews. Exactly one review per party per mission: the
 * client rates the provider, the provider rates the client. Aggregates are
 * derived on read (see ListOffers); nothing is denormalized at write time.
 */

package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allobrico/dispatch-service/internal/domain"
)

const reviewCommentMaxLen = 1000

var (
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrRequestNotCompleted = errors.New("request is not completed")
	ErrNotParticipant      = errors.New("caller is not a party to this mission")
	ErrNotCounterpart      = errors.New("review recipient is not the mission counterpart")
)

// SubmitReview records one party's rating of the other after completion. The
// recipient must be the caller's actual counterpart on the mission; a second
// review from the same party is rejected as a conflict.
func (s *Service) SubmitReview(ctx context.Context, requestID, fromUserID uuid.UUID, payload domain.SubmitReviewPayload) (*domain.Review, error) {
	if payload.Rating < 1 || payload.Rating > 5 {
		return nil, ErrInvalidRating
	}

	req, err := s.repo.FindRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RequestStatusCompleted {
		return nil, ErrRequestNotCompleted
	}
	if req.ProviderID == nil {
		return nil, ErrRequestNotCompleted
	}

	var counterpart uuid.UUID
	switch fromUserID {
	case req.ClientID:
		counterpart = *req.ProviderID
	case *req.ProviderID:
		counterpart = req.ClientID
	default:
		return nil, ErrNotParticipant
	}
	if payload.ToUserID != counterpart {
		return nil, ErrNotCounterpart
	}

	review := &domain.Review{
		RequestID:  requestID,
		FromUserID: fromUserID,
		ToUserID:   counterpart,
		Rating:     payload.Rating,
		Comment:    boundReviewComment(payload.Comment),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// ProviderRatings exposes the on-read aggregates for a set of providers.
func (s *Service) ProviderRatings(ctx context.Context, providerIDs []uuid.UUID) (map[uuid.UUID]domain.ProviderRating, error) {
	return s.repo.GetProviderRatings(ctx, providerIDs)
}

func boundReviewComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comment)
	if trimmed == "" {
		return nil
	}
	trimmed = truncateRunes(trimmed, reviewCommentMaxLen)
	return &trimmed
}

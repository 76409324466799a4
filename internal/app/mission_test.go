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

func TestEtaPhrase(t *testing.T) {
	cases := []struct {
		minutes int
		want    string
	}{
		{5, "dans 5 min"},
		{10, "dans 10 min"},
		{15, "dans 15 min"},
		{16, "dans environ 16 min"},
		{45, "dans environ 45 min"},
		{60, "dans environ 60 min"},
		{61, "dans environ 1h"},
		{89, "dans environ 1h"},
		{90, "dans environ 2h"},
		{120, "dans environ 2h"},
	}

	for _, tc := range cases {
		if got := EtaPhrase(tc.minutes); got != tc.want {
			t.Errorf("EtaPhrase(%d) = %q, want %q", tc.minutes, got, tc.want)
		}
	}
}

type missionRepoStub struct {
	store.Repository

	request *domain.Request

	etaErr        error
	etaMinutes    int
	etaSet        bool
	savedLat      float64
	savedLng      float64
	locationSaved bool
	completeErr   error
	completed     bool
	photosMarked  bool
	appendedURLs  []string
}

func (s *missionRepoStub) FindRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.Request, error) {
	if s.request == nil {
		return nil, store.ErrRequestNotFound
	}
	return s.request, nil
}

func (s *missionRepoStub) SetRequestEta(ctx context.Context, requestID, providerID uuid.UUID, etaMinutes int, etaAt time.Time) error {
	if s.etaErr != nil {
		return s.etaErr
	}
	s.etaSet = true
	s.etaMinutes = etaMinutes
	return nil
}

func (s *missionRepoStub) SaveLiveLocation(ctx context.Context, requestID uuid.UUID, lat, lng float64) error {
	s.locationSaved = true
	s.savedLat = lat
	s.savedLng = lng
	return nil
}

func (s *missionRepoStub) FindLiveLocation(ctx context.Context, requestID uuid.UUID) (*domain.LiveLocation, error) {
	return &domain.LiveLocation{RequestID: requestID, Lat: s.savedLat, Lng: s.savedLng}, nil
}

func (s *missionRepoStub) MarkPhotosRequested(ctx context.Context, requestID uuid.UUID) error {
	s.photosMarked = true
	return nil
}

func (s *missionRepoStub) AppendRequestPhotos(ctx context.Context, requestID uuid.UUID, urls []string) error {
	s.appendedURLs = urls
	return nil
}

func (s *missionRepoStub) CompleteRequest(ctx context.Context, requestID, providerID uuid.UUID, now time.Time) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed = true
	return nil
}

func acceptedRequest(clientID, providerID uuid.UUID) *domain.Request {
	return &domain.Request{
		ID:         uuid.New(),
		ClientID:   clientID,
		ProviderID: &providerID,
		Status:     domain.RequestStatusAccepted,
	}
}

func TestSetEta_RejectsOutOfRangeValues(t *testing.T) {
	repo := &missionRepoStub{}
	svc := NewService(repo, nil, nil, nil, nil)

	for _, minutes := range []int{0, 4, 121, 600} {
		_, err := svc.SetEta(context.Background(), uuid.New(), uuid.New(), domain.SetEtaPayload{EtaMinutes: minutes})
		if !errors.Is(err, ErrInvalidEta) {
			t.Errorf("SetEta(%d): expected ErrInvalidEta, got %v", minutes, err)
		}
	}
	if repo.etaSet {
		t.Fatal("no ETA may be stored for an out-of-range value")
	}
}

func TestSetEta_ReturnsBucketedPhrase(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	repo := &missionRepoStub{request: acceptedRequest(clientID, providerID)}
	svc := NewService(repo, nil, nil, nil, nil)

	result, err := svc.SetEta(context.Background(), repo.request.ID, providerID, domain.SetEtaPayload{EtaMinutes: 90})
	if err != nil {
		t.Fatalf("expected ETA to be recorded, got %v", err)
	}
	if !repo.etaSet || repo.etaMinutes != 90 {
		t.Fatal("expected the raw minute value to be stored")
	}
	if result.Phrase != "dans environ 2h" {
		t.Errorf("phrase = %q, want %q", result.Phrase, "dans environ 2h")
	}
}

type fixedLimiter struct {
	count int
	err   error
}

func (l *fixedLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return l.count, 15, l.err
}

func TestPingLocation_EnforcesRateLimit(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	repo := &missionRepoStub{request: acceptedRequest(clientID, providerID)}
	svc := NewService(repo, nil, nil, nil, nil)
	svc.SetRateLimiter(&fixedLimiter{count: 5})

	err := svc.PingLocation(context.Background(), repo.request.ID, providerID, domain.PingLocationPayload{Lat: 33.58, Lng: -7.62})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if repo.locationSaved {
		t.Fatal("a limited ping must not be stored")
	}
}

func TestPingLocation_LimiterOutageDoesNotBlockPings(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	repo := &missionRepoStub{request: acceptedRequest(clientID, providerID)}
	svc := NewService(repo, nil, nil, nil, nil)
	svc.SetRateLimiter(&fixedLimiter{err: errors.New("redis down")})

	if err := svc.PingLocation(context.Background(), repo.request.ID, providerID, domain.PingLocationPayload{Lat: 33.58, Lng: -7.62}); err != nil {
		t.Fatalf("expected ping to survive a limiter outage, got %v", err)
	}
	if !repo.locationSaved {
		t.Fatal("expected the position to be stored")
	}
}

func TestPingLocation_OnlyAssignedProviderMayPing(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	repo := &missionRepoStub{request: acceptedRequest(clientID, providerID)}
	svc := NewService(repo, nil, nil, nil, nil)

	err := svc.PingLocation(context.Background(), repo.request.ID, uuid.New(), domain.PingLocationPayload{})
	if !errors.Is(err, store.ErrNotAssignedProvider) {
		t.Fatalf("expected ErrNotAssignedProvider, got %v", err)
	}

	repo.request.Status = domain.RequestStatusPending
	err = svc.PingLocation(context.Background(), repo.request.ID, providerID, domain.PingLocationPayload{})
	if !errors.Is(err, store.ErrRequestNotAccepted) {
		t.Fatalf("expected ErrRequestNotAccepted for a pending request, got %v", err)
	}
}

func TestSubmitPhotos_RequiresProviderAsk(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	repo := &missionRepoStub{request: acceptedRequest(clientID, providerID)}
	svc := NewService(repo, nil, nil, nil, nil)

	err := svc.SubmitPhotos(context.Background(), repo.request.ID, clientID, domain.SubmitPhotosPayload{PhotoURLs: []string{"https://cdn.example/p.jpg"}})
	if !errors.Is(err, ErrPhotosNotRequested) {
		t.Fatalf("expected ErrPhotosNotRequested, got %v", err)
	}

	repo.request.PhotoRequested = true
	if err := svc.SubmitPhotos(context.Background(), repo.request.ID, clientID, domain.SubmitPhotosPayload{PhotoURLs: []string{"https://cdn.example/p.jpg"}}); err != nil {
		t.Fatalf("expected photos to be appended after the provider asked, got %v", err)
	}
	if len(repo.appendedURLs) != 1 {
		t.Fatal("expected the photo url to be persisted")
	}
}

func TestCompleteMission_StoreErrorsPassThrough(t *testing.T) {
	repo := &missionRepoStub{completeErr: store.ErrNotAssignedProvider}
	svc := NewService(repo, nil, nil, nil, nil)

	err := svc.CompleteMission(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, store.ErrNotAssignedProvider) {
		t.Fatalf("expected ErrNotAssignedProvider, got %v", err)
	}
}

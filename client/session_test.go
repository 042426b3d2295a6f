package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletap/tabletap/models"
)

// fakeProbe answers status probes from a canned map; unknown sessions
// read as ended, mirroring the server.
type fakeProbe struct {
	statuses map[string]string
	err      error
}

func (f *fakeProbe) GetSessionStatus(_ context.Context, sessionID string) (string, error) {
	if f.err != nil {
		return models.SessionEnded, f.err
	}
	if s, ok := f.statuses[sessionID]; ok {
		return s, nil
	}
	return models.SessionEnded, nil
}

// fakeRegistrar mints walk-in sessions and marks them active on the
// attached probe, like the real backend does.
type fakeRegistrar struct {
	probe  *fakeProbe
	nextID int
}

func (f *fakeRegistrar) CreateWalkIn(_ context.Context, restaurantID uint, label string) (*models.TableSession, error) {
	f.nextID++
	if label == "" {
		label = "walk-in"
	}
	session := &models.TableSession{
		ID:           fmt.Sprintf("walkin-%d", f.nextID),
		RestaurantID: restaurantID,
		Label:        label,
		Status:       models.SessionActive,
		SessionToken: fmt.Sprintf("wtok-%d", f.nextID),
	}
	if f.probe != nil {
		if f.probe.statuses == nil {
			f.probe.statuses = make(map[string]string)
		}
		f.probe.statuses[session.ID] = models.SessionActive
	}
	return session, nil
}

type fakeSlugResolver struct {
	restaurants map[string]*models.Restaurant
}

func (f *fakeSlugResolver) ResolveRestaurantBySlug(_ context.Context, slug string) (*models.Restaurant, error) {
	return f.restaurants[slug], nil
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	probe := &fakeProbe{statuses: map[string]string{"s1": models.SessionActive}}
	sm := NewSessionManager(NewMemStore(), probe, nil)

	original := &models.TableSession{
		ID:           "s1",
		RestaurantID: 3,
		Label:        "Counter 02",
		Status:       models.SessionActive,
		QRToken:      "Q7X2P9",
		SessionToken: "tok-1",
	}
	require.NoError(t, sm.Persist(original))

	restored, err := sm.Restore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.Label, restored.Label)
	assert.Equal(t, original.QRToken, restored.QRToken)
	assert.Equal(t, original.SessionToken, restored.SessionToken)
}

// Scenario: probe reports ended, so restore discards the stored
// session and returns nothing.
func TestRestoreEndedSessionIsDiscarded(t *testing.T) {
	store := NewMemStore()
	probe := &fakeProbe{statuses: map[string]string{"s1": models.SessionEnded}}
	sm := NewSessionManager(store, probe, nil)

	require.NoError(t, sm.Persist(&models.TableSession{ID: "s1", Status: models.SessionActive}))

	restored, err := sm.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, restored)

	_, ok, _ := store.Get(keyActiveSession)
	assert.False(t, ok, "ended session must be removed from storage")
}

func TestRestoreFailsClosedOnProbeError(t *testing.T) {
	store := NewMemStore()
	probe := &fakeProbe{err: errors.New("timeout")}
	sm := NewSessionManager(store, probe, nil)

	require.NoError(t, sm.Persist(&models.TableSession{ID: "s1", Status: models.SessionActive}))

	restored, err := sm.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, restored)

	_, ok, _ := store.Get(keyActiveSession)
	assert.False(t, ok)
}

func TestRestoreWithNothingStored(t *testing.T) {
	sm := NewSessionManager(NewMemStore(), &fakeProbe{}, nil)
	restored, err := sm.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, restored)
}

func TestCreateWalkInIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sm := NewSessionManager(NewMemStore(), &fakeProbe{}, &fakeRegistrar{})

	first, err := sm.CreateWalkIn(ctx, 9, "Counter")
	require.NoError(t, err)
	second, err := sm.CreateWalkIn(ctx, 9, "Counter")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "rapid re-invocation must not mint a second session")

	other, err := sm.CreateWalkIn(ctx, 9, "Patio")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreateWalkInWithoutRegistrar(t *testing.T) {
	sm := NewSessionManager(NewMemStore(), &fakeProbe{}, nil)
	_, err := sm.CreateWalkIn(context.Background(), 9, "Counter")
	assert.Error(t, err)
}

func TestWalkInSessionTokenFallback(t *testing.T) {
	sm := NewSessionManager(NewMemStore(), &fakeProbe{}, &fakeRegistrar{})
	session, err := sm.CreateWalkIn(context.Background(), 2, "")
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.Token())
	assert.Empty(t, session.QRToken, "walk-ins have no scanned code")
}

// Scenario: the device restarts after opening a walk-in. The session
// was registered on the backend, so a fresh manager over the same
// store restores it instead of discarding it as unknown.
func TestWalkInRestoresAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	probe := &fakeProbe{}
	sm := NewSessionManager(store, probe, &fakeRegistrar{probe: probe})

	opened, err := sm.CreateWalkIn(ctx, 5, "Counter")
	require.NoError(t, err)

	fresh := NewSessionManager(store, probe, nil)
	restored, err := fresh.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored, "registered walk-in must survive a restart")
	assert.Equal(t, opened.ID, restored.ID)
}

func TestBootPrecedence(t *testing.T) {
	ctx := context.Background()
	slugs := &fakeSlugResolver{restaurants: map[string]*models.Restaurant{
		"kape-tayo": {ID: 4, Name: "Kape Tayo", Slug: "kape-tayo"},
	}}

	t.Run("verify token beats stored session", func(t *testing.T) {
		probe := &fakeProbe{statuses: map[string]string{"old": models.SessionActive}}
		sm := NewSessionManager(NewMemStore(), probe, &fakeRegistrar{probe: probe})
		require.NoError(t, sm.Persist(&models.TableSession{ID: "old", Status: models.SessionActive}))

		result, err := Boot(ctx, BootInput{VerifyToken: "Q7X2P9", Slug: "kape-tayo"}, sm, slugs)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "verify-token", result.Source)
		assert.Equal(t, "Q7X2P9", result.PendingToken)
		assert.Nil(t, result.Session)
	})

	t.Run("stored guest session beats stored staff session", func(t *testing.T) {
		probe := &fakeProbe{statuses: map[string]string{"guest": models.SessionActive}}
		sm := NewSessionManager(NewMemStore(), probe, nil)
		require.NoError(t, sm.Persist(&models.TableSession{ID: "guest", Status: models.SessionActive}))
		require.NoError(t, sm.PersistStaffSession(&models.TableSession{ID: "staff", Status: models.SessionActive}))

		result, err := Boot(ctx, BootInput{}, sm, slugs)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "stored-guest-session", result.Source)
		assert.Equal(t, "guest", result.Session.ID)
	})

	t.Run("stored staff session beats slug", func(t *testing.T) {
		probe := &fakeProbe{}
		sm := NewSessionManager(NewMemStore(), probe, &fakeRegistrar{probe: probe})
		require.NoError(t, sm.PersistStaffSession(&models.TableSession{ID: "staff", Status: models.SessionActive}))

		result, err := Boot(ctx, BootInput{Slug: "kape-tayo"}, sm, slugs)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "stored-staff-session", result.Source)
		assert.Equal(t, "staff", result.Session.ID)
	})

	t.Run("stored guest session beats slug", func(t *testing.T) {
		probe := &fakeProbe{statuses: map[string]string{"old": models.SessionActive}}
		sm := NewSessionManager(NewMemStore(), probe, nil)
		require.NoError(t, sm.Persist(&models.TableSession{ID: "old", Status: models.SessionActive}))

		result, err := Boot(ctx, BootInput{Slug: "kape-tayo"}, sm, slugs)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "stored-guest-session", result.Source)
		assert.Equal(t, "old", result.Session.ID)
	})

	t.Run("ended stored session falls through to slug walk-in", func(t *testing.T) {
		probe := &fakeProbe{statuses: map[string]string{"old": models.SessionEnded}}
		sm := NewSessionManager(NewMemStore(), probe, &fakeRegistrar{probe: probe})
		require.NoError(t, sm.Persist(&models.TableSession{ID: "old", Status: models.SessionActive}))

		result, err := Boot(ctx, BootInput{Slug: "kape-tayo"}, sm, slugs)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "slug", result.Source)
		assert.Equal(t, uint(4), result.Session.RestaurantID)
	})

	t.Run("restaurant query is the last resort", func(t *testing.T) {
		probe := &fakeProbe{}
		sm := NewSessionManager(NewMemStore(), probe, &fakeRegistrar{probe: probe})

		result, err := Boot(ctx, BootInput{RestaurantQuery: "12"}, sm, slugs)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "restaurant-query", result.Source)
		assert.Equal(t, uint(12), result.Session.RestaurantID)
	})

	t.Run("nothing applicable yields nil", func(t *testing.T) {
		sm := NewSessionManager(NewMemStore(), &fakeProbe{}, nil)

		result, err := Boot(ctx, BootInput{}, sm, slugs)
		require.NoError(t, err)
		assert.Nil(t, result)
	})
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := t.TempDir() + "/state.json"

	store := NewFileStore(path)
	require.NoError(t, store.Set("k", []byte(`{"a":1}`)))

	// a fresh handle over the same file sees the value
	reopened := NewFileStore(path)
	raw, ok, err := reopened.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	require.NoError(t, reopened.Delete("k"))
	_, ok, _ = reopened.Get("k")
	assert.False(t, ok)
}

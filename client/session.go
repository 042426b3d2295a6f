package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tabletap/tabletap/models"
)

// WalkInRegistrar opens a tableless session on the backend. Walk-ins
// must be registered server-side: a session the backend has never seen
// probes as ended and could never be restored after a restart.
type WalkInRegistrar interface {
	CreateWalkIn(ctx context.Context, restaurantID uint, label string) (*models.TableSession, error)
}

// SessionManager owns every piece of persisted session state on the
// device. No other component reads the store directly; they receive
// session data as parameters.
type SessionManager struct {
	store     Store
	probe     StatusProbe
	registrar WalkInRegistrar

	mu          sync.Mutex
	lastWalkIns map[string]*models.TableSession // restaurantID/label -> session
}

func NewSessionManager(store Store, probe StatusProbe, registrar WalkInRegistrar) *SessionManager {
	return &SessionManager{
		store:       store,
		probe:       probe,
		registrar:   registrar,
		lastWalkIns: make(map[string]*models.TableSession),
	}
}

// Restore reads the persisted guest session and probes its status.
// Ended (or unprobeable, which fails closed as ended) sessions are
// discarded; the caller gets nil and must re-verify.
func (sm *SessionManager) Restore(ctx context.Context) (*models.TableSession, error) {
	session, err := sm.stored(keyActiveSession)
	if err != nil || session == nil {
		return nil, err
	}

	status, probeErr := sm.probe.GetSessionStatus(ctx, session.ID)
	if probeErr != nil || status == models.SessionEnded {
		if err := sm.Clear(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return session, nil
}

// CreateWalkIn opens a session when no QR/PIN flow is available: slug
// bootstrap, ?restaurant= query, or a demo restaurant. The session is
// registered on the backend so Restore recognizes it after a restart.
// Rapid re-invocation for the same restaurant and label returns the
// session already created instead of minting a second one.
func (sm *SessionManager) CreateWalkIn(ctx context.Context, restaurantID uint, label string) (*models.TableSession, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := walkInKey(restaurantID, label)
	if existing, ok := sm.lastWalkIns[key]; ok && existing.Status == models.SessionActive {
		return existing, nil
	}

	if sm.registrar == nil {
		return nil, fmt.Errorf("no walk-in registrar configured")
	}
	session, err := sm.registrar.CreateWalkIn(ctx, restaurantID, label)
	if err != nil {
		return nil, err
	}

	if err := sm.persistLocked(keyActiveSession, session); err != nil {
		return nil, err
	}
	sm.lastWalkIns[key] = session
	return session, nil
}

// Persist stores a verified guest session.
func (sm *SessionManager) Persist(session *models.TableSession) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.persistLocked(keyActiveSession, session)
}

// Clear removes the persisted guest session.
func (sm *SessionManager) Clear() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.store.Delete(keyActiveSession)
}

// PersistStaffSession stores the session a staff device runs under
// after login, kept separate from the guest slot so a staff member
// testing the guest flow on the same device never loses their own.
func (sm *SessionManager) PersistStaffSession(session *models.TableSession) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.persistLocked(keyStaffSession, session)
}

// StoredStaffSession reads a persisted staff/admin session, used only
// as a low-priority boot source. Staff sessions never override a fresh
// guest scan.
func (sm *SessionManager) StoredStaffSession() (*models.TableSession, error) {
	return sm.stored(keyStaffSession)
}

func (sm *SessionManager) stored(key string) (*models.TableSession, error) {
	raw, ok, err := sm.store.Get(key)
	if err != nil || !ok {
		return nil, err
	}

	var session models.TableSession
	if err := json.Unmarshal(raw, &session); err != nil {
		// unreadable state is treated as absent, forcing re-verification
		return nil, nil
	}
	return &session, nil
}

func (sm *SessionManager) persistLocked(key string, session *models.TableSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return sm.store.Set(key, raw)
}

func walkInKey(restaurantID uint, label string) string {
	return fmt.Sprintf("%d/%s", restaurantID, label)
}

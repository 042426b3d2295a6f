package client

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/tabletap/tabletap/models"
)

// Verifier states.
type VerifierState int

const (
	StateIdle VerifierState = iota
	StateScanning
	StateTokenResolved
	StatePinRequired
	StateVerified
	StateExpired
)

func (s VerifierState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateScanning:
		return "Scanning"
	case StateTokenResolved:
		return "TokenResolved"
	case StatePinRequired:
		return "PinRequired"
	case StateVerified:
		return "Verified"
	case StateExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// Verifier drives the scan/PIN flow. Lookup and verification failures
// never crash the flow: the machine rolls back to a user-correctable
// state and surfaces a message. Verified only ever leaves for Expired,
// when staff end the session; the resulting session is persisted
// through the SessionManager before anyone sees it.
type Verifier struct {
	backend  Backend
	sessions *SessionManager

	state    VerifierState
	lookup   *TableLookup
	pinInput string
	message  string
	session  *models.TableSession
}

func NewVerifier(backend Backend, sessions *SessionManager) *Verifier {
	return &Verifier{
		backend:  backend,
		sessions: sessions,
		state:    StateIdle,
	}
}

// Begin moves Idle -> Scanning, optionally pre-seeding a deep-linked
// token which is submitted immediately.
func (v *Verifier) Begin(ctx context.Context, seedToken string) error {
	v.state = StateScanning
	v.message = ""
	if seedToken != "" {
		return v.Scan(ctx, seedToken)
	}
	return nil
}

func (v *Verifier) State() VerifierState { return v.state }

// Message is the current user-facing error text, empty when none.
func (v *Verifier) Message() string { return v.message }

// PinInput exposes the pending PIN entry (cleared on mismatch).
func (v *Verifier) PinInput() string { return v.pinInput }

// Lookup returns the resolved table, valid from TokenResolved onward.
func (v *Verifier) Lookup() *TableLookup { return v.lookup }

// Session returns the verified table session, only in Verified.
func (v *Verifier) Session() *models.TableSession { return v.session }

// Scan accepts a raw scanned payload or manually typed code while in
// Scanning. An unknown code stays in Scanning with a message; a
// transport failure keeps the current state untouched.
func (v *Verifier) Scan(ctx context.Context, payload string) error {
	if v.state != StateScanning {
		return errors.New("not accepting scans in state " + v.state.String())
	}

	token := ExtractToken(payload)
	lookup, err := v.backend.LookupTableByCode(ctx, token)
	if err != nil {
		var terr *TransportError
		if errors.As(err, &terr) {
			v.message = "connection problem, please try again"
			return err
		}
		// unknown code: stay in Scanning, user corrects and rescans
		v.message = "code not found"
		return nil
	}

	v.lookup = lookup
	v.state = StateTokenResolved
	v.message = ""
	return v.advanceFromResolved(ctx)
}

// advanceFromResolved branches: an existing active session on an
// ungated table passes straight through to Verified; otherwise the
// table is claimed or the PIN prompt opens.
func (v *Verifier) advanceFromResolved(ctx context.Context) error {
	if v.lookup.PinRequired {
		v.state = StatePinRequired
		v.pinInput = ""
		return nil
	}

	existing, err := v.backend.GetActiveSessionForTable(ctx, v.lookup.TableID)
	if err != nil {
		return v.rollback(StateScanning, err)
	}
	if existing != nil && existing.Status == models.SessionActive {
		return v.complete(existing)
	}

	session, err := v.backend.ClaimTable(ctx, v.lookup.TableID)
	if err != nil {
		return v.rollback(StateScanning, err)
	}
	return v.complete(session)
}

// SubmitPin checks a 4-digit PIN while in PinRequired. A mismatch
// stays put with the input cleared; no lockout or backoff here.
func (v *Verifier) SubmitPin(ctx context.Context, pin string) error {
	if v.state != StatePinRequired {
		return errors.New("not accepting a PIN in state " + v.state.String())
	}

	v.pinInput = pin
	session, err := v.backend.VerifyPin(ctx, v.lookup.TableID, pin)
	if err != nil {
		if errors.Is(err, ErrWrongPin) {
			v.pinInput = ""
			v.message = "incorrect PIN"
			return nil
		}
		return v.rollback(StatePinRequired, err)
	}

	return v.complete(session)
}

// Expire moves Verified -> Expired when the feed reports the session
// ended (staff closed the table). The stored session is cleared so the
// next boot re-verifies instead of restoring a dead session. A no-op
// in any other state.
func (v *Verifier) Expire() error {
	if v.state != StateVerified {
		return nil
	}
	if err := v.sessions.Clear(); err != nil {
		return err
	}
	v.state = StateExpired
	v.session = nil
	v.message = "session has ended"
	return nil
}

// Abandon resets the machine with no side effects; nothing was
// persisted before Verified.
func (v *Verifier) Abandon() {
	v.state = StateIdle
	v.lookup = nil
	v.pinInput = ""
	v.message = ""
	v.session = nil
}

func (v *Verifier) complete(session *models.TableSession) error {
	if err := v.sessions.Persist(session); err != nil {
		return err
	}
	v.session = session
	v.state = StateVerified
	v.message = ""
	return nil
}

func (v *Verifier) rollback(to VerifierState, err error) error {
	v.state = to
	v.message = "connection problem, please try again"
	return err
}

// ExtractToken pulls the table token out of a scanned payload. URL
// payloads use the final path segment; anything else is the token
// itself.
func ExtractToken(payload string) string {
	payload = strings.TrimSpace(payload)
	u, err := url.Parse(payload)
	if err == nil && u.Scheme != "" && u.Host != "" {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		return segments[len(segments)-1]
	}
	return payload
}

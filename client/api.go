package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tabletap/tabletap/models"
)

// Typed boundary failures. Transport problems come back as
// *TransportError instead.
var (
	ErrCodeNotFound = errors.New("code not found")
	ErrWrongPin     = errors.New("incorrect PIN")
)

// TableLookup is the result of resolving a scanned QR token.
type TableLookup struct {
	TableID        uint   `json:"table_id"`
	RestaurantID   uint   `json:"restaurant_id"`
	Label          string `json:"label"`
	RestaurantName string `json:"restaurant_name"`
	Theme          string `json:"theme"`
	PinRequired    bool   `json:"pin_required"`
}

// RowOutcome is the server's per-record verdict for one batch row.
type RowOutcome struct {
	ClientRef string `json:"client_ref"`
	OrderID   uint   `json:"order_id,omitempty"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// InsertResult is a successful batch submission.
type InsertResult struct {
	Results []RowOutcome         `json:"results"`
	Orders  []models.OrderRecord `json:"orders"`
}

// Backend is what the verifier needs from the server; *API satisfies
// it, tests swap in fakes.
type Backend interface {
	LookupTableByCode(ctx context.Context, code string) (*TableLookup, error)
	GetActiveSessionForTable(ctx context.Context, tableID uint) (*models.TableSession, error)
	ClaimTable(ctx context.Context, tableID uint) (*models.TableSession, error)
	VerifyPin(ctx context.Context, tableID uint, pin string) (*models.TableSession, error)
}

// StatusProbe reports active/ended for a stored session ID.
type StatusProbe interface {
	GetSessionStatus(ctx context.Context, sessionID string) (string, error)
}

// OrderStore persists compiled batches; the only component that talks
// to durable storage for orders.
type OrderStore interface {
	InsertOrders(ctx context.Context, records []models.OrderRecord) (*InsertResult, error)
}

// API talks to the tabletap server. All calls have bounded timeouts and
// fail closed rather than hang.
type API struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *API) do(ctx context.Context, method, path string, body interface{}) (int, *envelope, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, nil, &TransportError{Op: method + " " + path, Err: err}
	}
	return resp.StatusCode, &env, nil
}

func (a *API) LookupTableByCode(ctx context.Context, code string) (*TableLookup, error) {
	status, env, err := a.do(ctx, http.MethodGet, "/scan/"+code, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrCodeNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("lookup failed: %s", env.Message)
	}

	var lookup TableLookup
	if err := json.Unmarshal(env.Data, &lookup); err != nil {
		return nil, err
	}
	return &lookup, nil
}

func (a *API) GetActiveSessionForTable(ctx context.Context, tableID uint) (*models.TableSession, error) {
	status, env, err := a.do(ctx, http.MethodGet, fmt.Sprintf("/tables/%d/session", tableID), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("session lookup failed: %s", env.Message)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}

	var session models.TableSession
	if err := json.Unmarshal(env.Data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (a *API) ClaimTable(ctx context.Context, tableID uint) (*models.TableSession, error) {
	status, env, err := a.do(ctx, http.MethodPost, fmt.Sprintf("/tables/%d/claim", tableID), struct{}{})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("claim failed: %s", env.Message)
	}

	var session models.TableSession
	if err := json.Unmarshal(env.Data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (a *API) VerifyPin(ctx context.Context, tableID uint, pin string) (*models.TableSession, error) {
	status, env, err := a.do(ctx, http.MethodPost, fmt.Sprintf("/tables/%d/verify-pin", tableID),
		map[string]string{"pin": pin})
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, ErrWrongPin
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("pin verification failed: %s", env.Message)
	}

	var session models.TableSession
	if err := json.Unmarshal(env.Data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateWalkIn registers a tableless session on the backend so the
// device can restore it later like any scanned session.
func (a *API) CreateWalkIn(ctx context.Context, restaurantID uint, label string) (*models.TableSession, error) {
	status, env, err := a.do(ctx, http.MethodPost, fmt.Sprintf("/restaurants/%d/walk-in", restaurantID),
		map[string]string{"label": label})
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, fmt.Errorf("walk-in failed: %s", env.Message)
	}

	var session models.TableSession
	if err := json.Unmarshal(env.Data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSessionStatus fails closed: any error reads as ended.
func (a *API) GetSessionStatus(ctx context.Context, sessionID string) (string, error) {
	status, env, err := a.do(ctx, http.MethodGet, "/sessions/"+sessionID+"/status", nil)
	if err != nil {
		return models.SessionEnded, err
	}
	if status != http.StatusOK {
		return models.SessionEnded, fmt.Errorf("status probe failed: %s", env.Message)
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return models.SessionEnded, err
	}
	return out.Status, nil
}

func (a *API) ResolveRestaurantBySlug(ctx context.Context, slug string) (*models.Restaurant, error) {
	status, env, err := a.do(ctx, http.MethodGet, "/slug/"+slug, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("slug resolution failed: %s", env.Message)
	}

	var restaurant models.Restaurant
	if err := json.Unmarshal(env.Data, &restaurant); err != nil {
		return nil, err
	}
	return &restaurant, nil
}

// FetchOrders pulls the full activity feed for a session's table scope,
// used on boot and whenever the listener demands a resync.
func (a *API) FetchOrders(ctx context.Context, restaurantID uint, qrToken string) ([]models.OrderRecord, error) {
	path := fmt.Sprintf("/restaurants/%d/orders", restaurantID)
	if qrToken != "" {
		path += "?qr_token=" + qrToken
	}
	status, env, err := a.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch orders failed: %s", env.Message)
	}

	var orders []models.OrderRecord
	if err := json.Unmarshal(env.Data, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// InsertOrders submits a compiled batch. Partial failure comes back as
// a *DispatchError naming the rows that persisted.
func (a *API) InsertOrders(ctx context.Context, records []models.OrderRecord) (*InsertResult, error) {
	status, env, err := a.do(ctx, http.MethodPost, "/orders/batch",
		map[string]interface{}{"records": records})
	if err != nil {
		return nil, err
	}

	var result InsertResult
	if env.Data != nil {
		if err := json.Unmarshal(env.Data, &result); err != nil {
			return nil, &TransportError{Op: "decode batch result", Err: err}
		}
	}

	if status != http.StatusCreated {
		derr := &DispatchError{Message: env.Message}
		for _, r := range result.Results {
			if r.OK {
				derr.PersistedRefs = append(derr.PersistedRefs, r.ClientRef)
			}
		}
		return nil, derr
	}
	return &result, nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tabletap/tabletap/client"
	"github.com/tabletap/tabletap/codes"
	"github.com/tabletap/tabletap/models"
	"github.com/tabletap/tabletap/router"
	"github.com/tabletap/tabletap/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

func setupIntegrationDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open in-memory sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&models.Restaurant{},
		&models.Table{},
		&models.TableSession{},
		&models.OrderRecord{},
		&models.StaffUser{},
		&models.DBChange{},
	)
	if err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedIntegration(db *gorm.DB) (models.Restaurant, models.Table, models.Table) {
	restaurant := models.Restaurant{Name: "Kape Tayo", Slug: "kape-tayo"}
	db.Create(&restaurant)

	open := models.Table{
		RestaurantID: restaurant.ID,
		Label:        "Table 4",
		QRToken:      "OPENTBL444",
		Status:       "available",
	}
	db.Create(&open)

	gated := models.Table{
		RestaurantID: restaurant.ID,
		Label:        "VIP 1",
		QRToken:      "GATEDTBL11",
		PIN:          "4321",
		PinRequired:  true,
		Status:       "available",
	}
	db.Create(&gated)

	return restaurant, open, gated
}

// TestGuestOrderingFlow walks the whole guest path over real HTTP:
// scan a table, verify, build a cart with a pay-first and a pay-later
// line, dispatch the batch, read the feed back split into mine/group,
// settle the code as staff, end the session and watch the device notice.
func TestGuestOrderingFlow(t *testing.T) {
	db := setupIntegrationDB()
	restaurant, openTable, _ := seedIntegration(db)

	server := httptest.NewServer(router.SetupRouter(db))
	defer server.Close()

	api := client.NewAPI(server.URL)
	store := client.NewMemStore()
	sessions := client.NewSessionManager(store, api, api)

	// scan the open table's printed code
	verifier := client.NewVerifier(api, sessions)
	require.NoError(t, verifier.Begin(context.Background(), ""))
	require.NoError(t, verifier.Scan(context.Background(), server.URL+"/scan/"+openTable.QRToken))
	require.Equal(t, client.StateVerified, verifier.State())
	session := verifier.Session()
	require.NotNil(t, session)
	assert.Equal(t, openTable.QRToken, session.QRToken)

	// a second device scanning the same table joins the same session
	verifier2 := client.NewVerifier(api, client.NewSessionManager(client.NewMemStore(), api, api))
	require.NoError(t, verifier2.Begin(context.Background(), openTable.QRToken))
	require.Equal(t, client.StateVerified, verifier2.State())
	assert.Equal(t, session.ID, verifier2.Session().ID)

	// compile a mixed cart and dispatch it
	cart := client.NewCart()
	cart.Add(client.CartLine{ItemID: 10, ItemName: "Ramen", Quantity: 2, UnitPrice: 250, PayAsYouOrder: true})
	cart.Add(client.CartLine{ItemID: 11, ItemName: "Gyoza", Quantity: 1, UnitPrice: 120})

	compiler := client.Compiler{Codes: codes.NewGenerator()}
	records, err := compiler.Compile(session, cart.Lines())
	require.NoError(t, err)
	require.Len(t, records, 2)

	ledger := client.NewLedger(store)
	gateway := client.NewGateway(api, ledger)
	orders, err := gateway.Submit(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	cart.Clear()

	// the pay-first line carries a code, the pay-later line does not
	groups := client.GroupByVerificationCode(orders)
	require.Len(t, groups, 2)
	var sharedCode string
	for key := range groups {
		if key != client.UnpaidGroupKey {
			sharedCode = key
		}
	}
	require.NotEmpty(t, sharedCode)
	assert.Len(t, sharedCode, codes.VerificationCodeLength)

	// resync path: fetch the feed and partition it against the ledger
	feed, err := api.FetchOrders(context.Background(), restaurant.ID, session.Token())
	require.NoError(t, err)
	require.Len(t, feed, 2)

	owned, err := ledger.Snapshot()
	require.NoError(t, err)
	mine, group := client.PartitionOrders(feed, owned)
	assert.Len(t, mine, 2)
	assert.Empty(t, group)

	// staff settles the verification code
	staffToken, err := utils.GenerateToken(1, restaurant.ID, "staff")
	require.NoError(t, err)

	settleBody, _ := json.Marshal(map[string]string{"verification_code": sharedCode})
	req, _ := http.NewRequest("POST", server.URL+"/staff/orders/settle-by-code", bytes.NewBuffer(settleBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+staffToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var paid int64
	db.Model(&models.OrderRecord{}).Where("payment_status = ?", models.PaymentPaid).Count(&paid)
	assert.Equal(t, int64(1), paid)

	// staff ends the session; the stored device session no longer restores
	req2, _ := http.NewRequest("POST", server.URL+"/staff/sessions/"+session.ID+"/end", nil)
	req2.Header.Set("Authorization", "Bearer "+staffToken)
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	restored, err := sessions.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, restored, "an ended session must not restore on the device")
}

// TestGatedTableFlow covers the PIN leg end to end.
func TestGatedTableFlow(t *testing.T) {
	db := setupIntegrationDB()
	_, _, gated := seedIntegration(db)

	server := httptest.NewServer(router.SetupRouter(db))
	defer server.Close()

	api := client.NewAPI(server.URL)
	sessions := client.NewSessionManager(client.NewMemStore(), api, api)
	verifier := client.NewVerifier(api, sessions)

	require.NoError(t, verifier.Begin(context.Background(), gated.QRToken))
	require.Equal(t, client.StatePinRequired, verifier.State())

	// wrong PIN keeps the prompt open
	require.NoError(t, verifier.SubmitPin(context.Background(), "0000"))
	assert.Equal(t, client.StatePinRequired, verifier.State())
	assert.Equal(t, "incorrect PIN", verifier.Message())

	require.NoError(t, verifier.SubmitPin(context.Background(), "4321"))
	require.Equal(t, client.StateVerified, verifier.State())
	assert.Equal(t, gated.QRToken, verifier.Session().QRToken)
}

// TestWalkInBootFlow drives the slug bootstrap against the live server.
func TestWalkInBootFlow(t *testing.T) {
	db := setupIntegrationDB()
	restaurant, _, _ := seedIntegration(db)

	server := httptest.NewServer(router.SetupRouter(db))
	defer server.Close()

	api := client.NewAPI(server.URL)
	store := client.NewMemStore()
	sessions := client.NewSessionManager(store, api, api)

	result, err := client.Boot(context.Background(), client.BootInput{Slug: restaurant.Slug}, sessions, api)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "slug", result.Source)
	require.NotNil(t, result.Session)
	assert.Equal(t, restaurant.ID, result.Session.RestaurantID)
	assert.Nil(t, result.Session.TableID)

	// the walk-in was registered server-side, so a fresh manager over
	// the same store restores it after a page reload
	reloaded := client.NewSessionManager(store, api, api)
	rebooted, err := client.Boot(context.Background(), client.BootInput{Slug: restaurant.Slug}, reloaded, api)
	require.NoError(t, err)
	require.NotNil(t, rebooted)
	assert.Equal(t, "stored-guest-session", rebooted.Source)
	assert.Equal(t, result.Session.ID, rebooted.Session.ID)

	// walk-in sessions can still order; the token falls back sanely
	compiler := client.Compiler{Codes: codes.NewGenerator()}
	records, err := compiler.Compile(result.Session, []client.CartLine{
		{ItemID: 12, ItemName: "Iced Tea", Quantity: 1, UnitPrice: 60},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, result.Session.Token(), records[0].QRCodeToken)

	payload, _ := json.Marshal(map[string]interface{}{"records": records})
	resp, err := http.Post(server.URL+"/orders/batch", "application/json", bytes.NewBuffer(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

// TestStatusMonotonicityOverHTTP checks the kitchen lifecycle cannot
// move backwards through the staff endpoint.
func TestStatusMonotonicityOverHTTP(t *testing.T) {
	db := setupIntegrationDB()
	restaurant, _, _ := seedIntegration(db)

	server := httptest.NewServer(router.SetupRouter(db))
	defer server.Close()

	order := models.OrderRecord{
		ClientRef: "ref-x", RestaurantID: restaurant.ID, TableLabel: "Table 4",
		ItemName: "Ramen", Quantity: 1, OrderStatus: models.OrderPending,
		PaymentStatus: models.PaymentUnpaid, CustomerName: "Guest",
	}
	db.Create(&order)

	staffToken, err := utils.GenerateToken(1, restaurant.ID, "kitchen")
	require.NoError(t, err)

	patch := func(status string) int {
		raw, _ := json.Marshal(map[string]string{"status": status})
		req, _ := http.NewRequest("PATCH",
			fmt.Sprintf("%s/staff/orders/%d/status", server.URL, order.ID), bytes.NewBuffer(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+staffToken)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, patch(models.OrderCooking))
	assert.Equal(t, http.StatusOK, patch(models.OrderServed))
	assert.Equal(t, http.StatusBadRequest, patch(models.OrderPreparing))

	var final models.OrderRecord
	db.First(&final, order.ID)
	assert.Equal(t, models.OrderServed, final.OrderStatus)
}

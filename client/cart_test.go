package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletap/tabletap/models"
)

// fixedGenerator always yields the same symbols, so tests can assert
// exact code values.
type fixedGenerator struct{ code string }

func (f fixedGenerator) Generate(length int) string {
	if len(f.code) >= length {
		return f.code[:length]
	}
	return f.code
}

func testSession() *models.TableSession {
	return &models.TableSession{
		ID:           "sess-1",
		RestaurantID: 7,
		Label:        "Table 4",
		Status:       models.SessionActive,
		SessionToken: "tok-abc",
	}
}

func TestCompileRejectsMissingSession(t *testing.T) {
	cp := NewCompiler()
	_, err := cp.Compile(nil, []CartLine{{ItemName: "Adobo", Quantity: 1, UnitPrice: 120}})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCompileRejectsEmptyCart(t *testing.T) {
	cp := NewCompiler()
	_, err := cp.Compile(testSession(), nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

// Mixed batch: pay-first lines share one code, pay-later lines in the
// same batch stay nil-coded.
func TestCompileMixedBatch(t *testing.T) {
	cp := &Compiler{Codes: fixedGenerator{code: "K3M9QZ"}}

	records, err := cp.Compile(testSession(), []CartLine{
		{ItemID: 1, ItemName: "Sisig", Quantity: 2, UnitPrice: 250, PayAsYouOrder: true},
		{ItemID: 2, ItemName: "Iced Tea", Quantity: 1, UnitPrice: 120},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NotNil(t, records[0].VerificationCode)
	assert.Equal(t, "K3M9QZ", *records[0].VerificationCode)
	assert.Nil(t, records[1].VerificationCode)

	assert.Equal(t, 500.0, records[0].Amount)
	assert.Equal(t, 120.0, records[1].Amount)
	assert.Equal(t, "Table 4", records[0].TableLabel)
	assert.Equal(t, "tok-abc", records[0].QRCodeToken)
}

func TestCompileSharedCodeAcrossPayFirstLines(t *testing.T) {
	cp := NewCompiler()

	records, err := cp.Compile(testSession(), []CartLine{
		{ItemID: 1, ItemName: "Lechon", Quantity: 1, UnitPrice: 420, PayAsYouOrder: true},
		{ItemID: 2, ItemName: "Halo-halo", Quantity: 2, UnitPrice: 95, PayAsYouOrder: true},
		{ItemID: 3, ItemName: "Rice", Quantity: 3, UnitPrice: 25},
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.NotNil(t, records[0].VerificationCode)
	require.NotNil(t, records[1].VerificationCode)
	assert.Equal(t, *records[0].VerificationCode, *records[1].VerificationCode)
	assert.Nil(t, records[2].VerificationCode)
}

func TestCompileNoPayFirstMeansNoCodes(t *testing.T) {
	cp := NewCompiler()

	records, err := cp.Compile(testSession(), []CartLine{
		{ItemID: 1, ItemName: "Pancit", Quantity: 1, UnitPrice: 150},
		{ItemID: 2, ItemName: "Lumpia", Quantity: 4, UnitPrice: 30},
	})
	require.NoError(t, err)
	for _, r := range records {
		assert.Nil(t, r.VerificationCode)
	}
}

func TestCompileDefaultsCustomerName(t *testing.T) {
	cp := NewCompiler()

	records, err := cp.Compile(testSession(), []CartLine{
		{ItemID: 1, ItemName: "Kare-kare", Quantity: 1, UnitPrice: 280},
		{ItemID: 2, ItemName: "Mango Shake", Quantity: 1, UnitPrice: 90, OrderTo: "Ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Guest", records[0].CustomerName)
	assert.Equal(t, "Ana", records[1].CustomerName)
}

func TestCompileAssignsUniqueClientRefs(t *testing.T) {
	cp := NewCompiler()

	records, err := cp.Compile(testSession(), []CartLine{
		{ItemID: 1, ItemName: "A", Quantity: 1, UnitPrice: 10},
		{ItemID: 2, ItemName: "B", Quantity: 1, UnitPrice: 10},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, records[0].ClientRef)
	assert.NotEqual(t, records[0].ClientRef, records[1].ClientRef)
}

func TestCartClearOnlyOnExplicitCall(t *testing.T) {
	cart := NewCart()
	cart.Add(CartLine{ItemName: "Tocino", Quantity: 1, UnitPrice: 99})

	cp := NewCompiler()
	_, err := cp.Compile(testSession(), cart.Lines())
	require.NoError(t, err)

	// compiling must not touch the cart; only dispatch success clears it
	assert.Len(t, cart.Lines(), 1)
	cart.Clear()
	assert.Empty(t, cart.Lines())
}

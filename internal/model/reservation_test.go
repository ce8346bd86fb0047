package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewStockReservation_Defaults(t *testing.T) {
	cart := NewStockReservation("item-1", 2, "", "cart-1", testNow, DefaultCartReservationTTL, DefaultOrderReservationTTL)
	assert.Equal(t, ReservationCart, cart.Type)
	assert.Equal(t, ReservationReserved, cart.Status)
	assert.Equal(t, testNow.Add(30*time.Minute), cart.ExpiresAt)
	require.NotNil(t, cart.CartID)
	assert.Nil(t, cart.OrderID)

	order := NewStockReservation("item-1", 2, "order-1", "", testNow, DefaultCartReservationTTL, DefaultOrderReservationTTL)
	assert.Equal(t, ReservationOrder, order.Type)
	assert.Equal(t, testNow.Add(7*24*time.Hour), order.ExpiresAt)
}

func TestStockReservation_TerminalStatesAreOneWay(t *testing.T) {
	transitions := map[string]func(*StockReservation) error{
		"fulfill": func(r *StockReservation) error { return r.Fulfill(testNow) },
		"release": func(r *StockReservation) error { return r.Release(testNow) },
		"expire":  func(r *StockReservation) error { return r.Expire(testNow) },
	}
	for _, terminal := range []ReservationStatus{ReservationFulfilled, ReservationReleased, ReservationExpired} {
		for name, fn := range transitions {
			t.Run(string(terminal)+"/"+name, func(t *testing.T) {
				r := &StockReservation{ID: "r-1", Status: terminal}
				err := fn(r)
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidState))
				assert.Equal(t, terminal, r.Status)
			})
		}
	}
}

func TestStockReservation_ConvertToOrder(t *testing.T) {
	r := NewStockReservation("item-1", 6, "", "cart-1", testNow, DefaultCartReservationTTL, DefaultOrderReservationTTL)
	id := r.ID
	later := testNow.Add(5 * time.Minute)

	require.NoError(t, r.ConvertToOrder("order-1", later, DefaultOrderReservationTTL))
	assert.Equal(t, id, r.ID)
	assert.Equal(t, 6, r.Quantity)
	assert.Equal(t, ReservationOrder, r.Type)
	assert.Equal(t, later.Add(7*24*time.Hour), r.ExpiresAt)
	require.NotNil(t, r.OrderID)
	assert.Equal(t, "order-1", *r.OrderID)

	err := r.ConvertToOrder("order-2", later, DefaultOrderReservationTTL)
	assert.True(t, errors.Is(err, ErrInvalidState), "an ORDER reservation cannot be converted again")

	released := NewStockReservation("item-1", 1, "", "cart-1", testNow, DefaultCartReservationTTL, DefaultOrderReservationTTL)
	require.NoError(t, released.Release(testNow))
	assert.True(t, errors.Is(released.ConvertToOrder("order-3", later, DefaultOrderReservationTTL), ErrInvalidState))
}

func TestStockReservation_IsExpired(t *testing.T) {
	r := NewStockReservation("item-1", 1, "", "cart-1", testNow, DefaultCartReservationTTL, DefaultOrderReservationTTL)
	assert.False(t, r.IsExpired(testNow.Add(29*time.Minute)))
	assert.True(t, r.IsExpired(testNow.Add(31*time.Minute)))
	assert.Equal(t, ReservationReserved, r.Status, "expiry is not self-enforcing")
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var warehouseTypes = []string{"PROFILE", "HARDWARE"}

func TestNewWarehouseRequest(t *testing.T) {
	r, err := NewWarehouseRequest(NewWarehouseRequestParams{Type: "profile", ItemCode: "AL-45", Quantity: 12, Requester: "line 2"}, warehouseTypes, t0)
	require.NoError(t, err)
	assert.Regexp(t, `^WR-[0-9a-f]{8}$`, r.RequestID)
	assert.Equal(t, "PROFILE", r.Type)
	assert.Equal(t, RequestStatusPending, r.Status)
	require.Len(t, r.GetDomainEvents(), 1)

	for _, params := range []NewWarehouseRequestParams{
		{Type: "PAINT", ItemCode: "AL-45", Quantity: 1, Requester: "x"},
		{Type: "PROFILE", Quantity: 1, Requester: "x"},
		{Type: "PROFILE", ItemCode: "AL-45", Quantity: 1},
		{Type: "PROFILE", ItemCode: "AL-45", Requester: "x"},
	} {
		_, err := NewWarehouseRequest(params, warehouseTypes, t0)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestCompleteWarehouseRequestTwice(t *testing.T) {
	r, err := NewWarehouseRequest(NewWarehouseRequestParams{Type: "HARDWARE", ItemCode: "SCR-8", Quantity: 100, Requester: "line 1"}, warehouseTypes, t0)
	require.NoError(t, err)

	_, err = r.Complete("", t0)
	assert.ErrorIs(t, err, ErrValidation)

	done, err := r.Complete("stock keeper", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, RequestStatusCompleted, done.Status)
	assert.Equal(t, RequestStatusPending, r.Status)

	_, err = done.Complete("stock keeper", t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestRequestUrgency(t *testing.T) {
	p := MustDefaultPipeline()
	r, err := NewWarehouseRequest(NewWarehouseRequestParams{Type: "PROFILE", ItemCode: "AL-45", Quantity: 1, Requester: "x"}, warehouseTypes, t0)
	require.NoError(t, err)

	assert.Equal(t, UrgencyWarning, RequestUrgency(r, p.Warehouse.Allowance, p.Urgency, t0.Add(41*time.Minute)).Level)
	assert.Equal(t, UrgencyLate, RequestUrgency(r, p.Warehouse.Allowance, p.Urgency, t0.Add(61*time.Minute)).Level)

	done, err := r.Complete("x", t0.Add(62*time.Minute))
	require.NoError(t, err)
	assert.False(t, RequestUrgency(done, p.Warehouse.Allowance, p.Urgency, t0.Add(2*time.Hour)).HasDeadline)
}

func TestSortWarehouseRequests(t *testing.T) {
	a := &WarehouseRequest{RequestID: "WR-a", CreatedAt: t0}
	b := &WarehouseRequest{RequestID: "WR-b", CreatedAt: t0.Add(time.Minute)}
	c := &WarehouseRequest{RequestID: "WR-c", CreatedAt: t0.Add(2 * time.Minute)}

	list := []*WarehouseRequest{b, a, c}
	SortNewestFirst(list)
	assert.Equal(t, []*WarehouseRequest{c, b, a}, list)

	SortOldestFirst(list)
	assert.Equal(t, []*WarehouseRequest{a, b, c}, list)
}

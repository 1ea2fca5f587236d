package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateScan(t *testing.T) {
	var d Date

	require.NoError(t, d.Scan(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-06-01", d.String())

	require.NoError(t, d.Scan([]byte("2025-06-02T00:00:00Z")))
	assert.Equal(t, "2025-06-02", d.String())

	require.NoError(t, d.Scan("2025-06-03"))
	assert.Equal(t, "2025-06-03", d.String())

	assert.Error(t, d.Scan(42))
}

func TestDateJSON(t *testing.T) {
	d, err := ParseDate("2025-06-01")
	require.NoError(t, err)

	b, err := json.Marshal(struct {
		Date Date `json:"date"`
	}{d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-06-01"}`, string(b))

	var out struct {
		Date Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.True(t, d.Equal(out.Date))
}

func TestDateBefore(t *testing.T) {
	earlier, _ := ParseDate("2025-05-31")
	later, _ := ParseDate("2025-06-01")

	assert.True(t, earlier.Before(later))
	assert.False(t, later.Before(earlier))
	assert.False(t, later.Before(later))
}

func TestNewDateUsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	d := NewDate(time.Date(2025, 6, 1, 1, 30, 0, 0, loc))
	assert.Equal(t, "2025-06-01", d.String())
}

func TestParseClock(t *testing.T) {
	canonical, _, err := ParseClock("09:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00:00", canonical)

	canonical, _, err = ParseClock("17:30:15")
	require.NoError(t, err)
	assert.Equal(t, "17:30:15", canonical)

	_, _, err = ParseClock("25:00")
	assert.Error(t, err)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleCustomer, r)

	r, err = ParseRole("provider")
	require.NoError(t, err)
	assert.Equal(t, RoleProvider, r)

	_, err = ParseRole("admin")
	assert.Error(t, err)
}

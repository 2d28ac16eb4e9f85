package library

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10", d.String())

	_, err = ParseDate("10-01-2025")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDateOfIgnoresZone(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	late := time.Date(2025, time.January, 10, 23, 30, 0, 0, jakarta)
	assert.Equal(t, "2025-01-10", DateOf(late).String())
}

func TestDateScan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want string
	}{
		{"text", "2025-01-13", "2025-01-13"},
		{"bytes", []byte("2025-01-13"), "2025-01-13"},
		{"timestamp text", "2025-01-13 00:00:00+00:00", "2025-01-13"},
		{"time", time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC), "2025-01-13"},
		{"null", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(tt.src))
			assert.Equal(t, tt.want, d.String())
		})
	}

	var d Date
	assert.Error(t, d.Scan(42))
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		LoanDate   Date  `json:"loan_date"`
		ReturnDate *Date `json:"return_date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"loan_date":"2025-01-10","return_date":null}`), &payload))
	assert.Equal(t, "2025-01-10", payload.LoanDate.String())
	assert.Nil(t, payload.ReturnDate)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"loan_date":"2025-01-10","return_date":null}`, string(out))
}

func TestParseLoanStatus(t *testing.T) {
	for in, want := range map[string]LoanStatus{
		"":         StatusAll,
		"ALL":      StatusAll,
		"borrowed": StatusBorrowed,
		"returned": StatusReturned,
	} {
		got, err := ParseLoanStatus(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLoanStatus("overdue")
	assert.ErrorIs(t, err, ErrValidation)
}

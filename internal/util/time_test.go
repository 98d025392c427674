package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain 8 digits", "20240102", "20240102"},
		{"dashed", "2024-01-02", "20240102"},
		{"date plus time", "2024-01-02 14:30", "20240102"},
		{"dotted korean style", "2024. 1. 2.", "202412"},
		{"empty", "", ""},
		{"no digits", "미정", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.in))
		})
	}
}

func TestDateNum(t *testing.T) {
	assert.Equal(t, 20240102, DateNum("2024-01-02"))
	assert.Equal(t, 0, DateNum(""))
	assert.Equal(t, 0, DateNum("none"))
}

func TestISOFromDate(t *testing.T) {
	assert.Equal(t, "2023-06-01T00:00:00Z", ISOFromDate("20230601", "fb"))
	assert.Equal(t, "2023-06-01T00:00:00Z", ISOFromDate("2023-06-01", "fb"))
	assert.Equal(t, "fb", ISOFromDate("202306", "fb"), "short dates fall back")
	assert.Equal(t, "fb", ISOFromDate("", "fb"))
}

func TestDateFromISO(t *testing.T) {
	assert.Equal(t, "20230601", DateFromISO("2023-06-01T00:00:00Z"))
	assert.Equal(t, "", DateFromISO(""))
}

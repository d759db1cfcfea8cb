package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{"12,345", "12.35", true},
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"1e3", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestSignedAmount(t *testing.T) {
	ten := decimal.NewFromInt(10)
	if got := SignedAmount(ten, TypeExpense); !got.Equal(ten.Neg()) {
		t.Fatalf("expense=%s", got)
	}
	if got := SignedAmount(ten.Neg(), TypeRecipe); !got.Equal(ten) {
		t.Fatalf("recipe=%s", got)
	}
}

func TestFormatReais(t *testing.T) {
	cases := map[string]string{
		"0":       "R$ 0,00",
		"1234.5":  "R$ 1234,50",
		"-10":     "-R$ 10,00",
		"33.3333": "R$ 33,33",
		"-0.004":  "R$ 0,00",
		"700.5":   "R$ 700,50",
	}
	for in, want := range cases {
		if got := FormatReais(decimal.RequireFromString(in)); got != want {
			t.Fatalf("FormatReais(%s)=%q, want %q", in, got, want)
		}
	}
}

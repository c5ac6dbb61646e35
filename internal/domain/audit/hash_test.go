package audit

import (
	"regexp"
	"testing"
)

var hexHash = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestHashParams_Stability(t *testing.T) {
	t.Parallel()

	a := HashParams(map[string]interface{}{
		"amount":   500.0,
		"currency": "USD",
		"nested":   map[string]interface{}{"b": 2, "a": 1},
	})
	b := HashParams(map[string]interface{}{
		"nested":   map[string]interface{}{"a": 1, "b": 2},
		"currency": "USD",
		"amount":   500.0,
	})

	if a != b {
		t.Errorf("hash differs under key reordering: %s vs %s", a, b)
	}
	if !hexHash.MatchString(a) {
		t.Errorf("hash %q is not 64 hex chars", a)
	}
}

func TestHashParams_DistinguishesValues(t *testing.T) {
	t.Parallel()

	a := HashParams(map[string]interface{}{"amount": 500.0})
	b := HashParams(map[string]interface{}{"amount": 501.0})
	if a == b {
		t.Error("different params produced identical hashes")
	}
}

func TestHashParams_NilAndEmptyAgree(t *testing.T) {
	t.Parallel()

	if HashParams(nil) != HashParams(map[string]interface{}{}) {
		t.Error("nil and empty params hash differently")
	}
}

func TestHashParams_Unencodable(t *testing.T) {
	t.Parallel()

	if got := HashParams(map[string]interface{}{"ch": make(chan int)}); got != "error" {
		t.Errorf("HashParams(unencodable) = %q, want %q", got, "error")
	}
}

func TestRoundLatency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want float64
	}{
		{1.234567, 1.23},
		{1.235, 1.24},
		{0, 0},
		{12.0, 12.0},
	}
	for _, tt := range tests {
		if got := RoundLatency(tt.in); got != tt.want {
			t.Errorf("RoundLatency(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRedactSensitiveParams(t *testing.T) {
	t.Parallel()

	in := map[string]interface{}{
		"amount":     500.0,
		"api_key":    "sk-12345",
		"AuthHeader": "Bearer xyz",
		"vendor_id":  "v1",
	}
	out := RedactSensitiveParams(in)

	if out["amount"] != 500.0 || out["vendor_id"] != "v1" {
		t.Error("non-sensitive values were altered")
	}
	if out["api_key"] != "***REDACTED***" || out["AuthHeader"] != "***REDACTED***" {
		t.Errorf("sensitive values not redacted: %v", out)
	}
	if in["api_key"] != "sk-12345" {
		t.Error("input map was mutated")
	}
}

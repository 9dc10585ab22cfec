package listing

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantSet bool
		want    float64 // NaNはwantNaNで指定
		wantNaN bool
	}{
		{"number", `1500.5`, true, 1500.5, false},
		{"integer", `3`, true, 3, false},
		{"zero", `0`, true, 0, false},
		{"negative", `-2`, true, -2, false},
		{"numeric string", `"2400"`, true, 2400, false},
		{"numeric string with spaces", `" 1.5 "`, true, 1.5, false},
		{"exponent string", `"1e3"`, true, 1000, false},
		{"null", `null`, false, 0, false},
		{"trailing garbage", `"12abc"`, true, 0, true},
		{"hex string", `"0x10"`, true, 0, true},
		{"empty string", `""`, true, 0, true},
		{"infinity string", `"Infinity"`, true, 0, true},
		{"boolean", `true`, true, 0, true},
		{"object", `{"v":1}`, true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				N Number `json:"n"`
			}
			if err := json.Unmarshal([]byte(`{"n":`+tt.raw+`}`), &body); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if body.N.Set != tt.wantSet {
				t.Errorf("Set = %v, want %v", body.N.Set, tt.wantSet)
			}
			if tt.wantNaN {
				if !math.IsNaN(body.N.Value) {
					t.Errorf("Value = %v, want NaN", body.N.Value)
				}
				return
			}
			if body.N.Value != tt.want {
				t.Errorf("Value = %v, want %v", body.N.Value, tt.want)
			}
		})
	}
}

func TestNumber_AbsentKey(t *testing.T) {
	var body struct {
		N Number `json:"n"`
	}
	if err := json.Unmarshal([]byte(`{}`), &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if body.N.Set {
		t.Error("absent key should not be Set")
	}
}

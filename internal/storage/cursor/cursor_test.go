package cursor

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := New("order_summary", 42)

	token, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != original {
		t.Fatalf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not base64", "!!not-base64!!"},
		{"not json", "bm90LWpzb24"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.token); err == nil {
				t.Fatal("Decode accepted a malformed token")
			}
		})
	}
}

func TestValidateProjectionHash(t *testing.T) {
	c := New("order_summary", 7)

	if err := ValidateProjectionHash(c, "order_summary"); err != nil {
		t.Fatalf("ValidateProjectionHash: %v", err)
	}
	if err := ValidateProjectionHash(c, "sla_dashboard"); err == nil {
		t.Fatal("cursor accepted by a different projection")
	}
}

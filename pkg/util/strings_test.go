package util

import "testing"

func TestFoldEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "ether1", "ether1", true},
		{"case only", "Ether1", "ether1", true},
		{"surrounding space", "  ether1 ", "ether1", true},
		{"accented", "conexión", "CONEXION", true},
		{"fullwidth digits", "ｅｔｈｅｒ１", "ether1", true},
		{"different names", "WAN-UPLINK", "ether2", false},
		{"prefix is not equality", "ether1", "ether10", false},
		{"empty vs empty", "", "", true},
		{"empty vs name", "", "ether1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FoldEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("FoldEqual(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName(" Señal-Öst "); got != "Senal-Ost" {
		t.Errorf("NormalizeName = %q, want %q", got, "Senal-Ost")
	}
}

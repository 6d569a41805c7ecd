package parse

import "testing"

const routerboardOutput = `       routerboard: yes
             model: RB4011iGS+
     serial-number: B5AC09E2F1D0
     firmware-type: al2
  factory-firmware: 6.44.6
  current-firmware: 6.48.6
  upgrade-firmware: 7.14.2
`

const showVersionOutput = `Cisco IOS Software, C2960X Software (C2960X-UNIVERSALK9-M), Version 15.2(7)E5, RELEASE SOFTWARE (fc2)
System returned to ROM by power-on
System serial number   : FOC1932X0K1
Model number           : WS-C2960X-48TS-L
Configuration register is 0xF
`

func TestField(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		label string
		want  string
	}{
		{"router model", routerboardOutput, "model:", "RB4011iGS+"},
		{"router serial", routerboardOutput, "serial-number:", "B5AC09E2F1D0"},
		{"router upgrade firmware", routerboardOutput, "upgrade-firmware:", "7.14.2"},
		{"case-insensitive label", routerboardOutput, "MODEL:", "RB4011iGS+"},
		{"switch serial", showVersionOutput, "System serial number", "FOC1932X0K1"},
		{"switch model", showVersionOutput, "Model number", "WS-C2960X-48TS-L"},
		{"absent label", routerboardOutput, "board-name:", ""},
		{"empty input", "", "model:", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Field(tt.raw, tt.label); got != tt.want {
				t.Errorf("Field(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

// The substring match is a documented weak heuristic: the label can hit a
// free-text line before the real key line. This pins the current behavior.
func TestFieldMatchesFirstContainingLine(t *testing.T) {
	raw := "description: spare model for lab\nmodel: RB750Gr3\n"
	if got := Field(raw, "model"); got != "spare model for lab" {
		t.Errorf("Field = %q, expected first containing line to win", got)
	}
}

func TestVersionToken(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"comma-terminated", showVersionOutput, "15.2(7)E5"},
		{"whitespace-terminated", "Software Version 16.9.4 built", "16.9.4"},
		{"lowercase keyword", "software version 12.2(55)SE", "12.2(55)SE"},
		{"absent", "IOS Software, RELEASE SOFTWARE (fc2)", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VersionToken(tt.raw); got != tt.want {
				t.Errorf("VersionToken = %q, want %q", got, tt.want)
			}
		})
	}
}

package bytesize

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"0", 0, false},
		{"4096", 4096, false},
		{"512B", 512, false},
		{"4KiB", 4 * KiB, false},
		{"4ki", 4 * KiB, false},
		{"1 MiB", MiB, false},
		{"2Gi", 2 * GiB, false},
		{"1K", 1000, false},
		{"10MB", 10 * MB, false},
		{"1.5Ki", 1536, false},
		{"  64KiB  ", 64 * KiB, false},

		{"", 0, true},
		{"KiB", 0, true},
		{"-1", 0, true},
		{"10XB", 0, true},
		{"1.2.3Ki", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) = %d, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestStringRoundTrips(t *testing.T) {
	for _, b := range []ByteSize{0, 1, 1000, 4 * KiB, 1536, 3 * MiB, GiB} {
		text, err := b.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var back ByteSize
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if back != b {
			t.Errorf("%d -> %q -> %d", b, text, back)
		}
	}

	if got := (4 * KiB).String(); got != "4KiB" {
		t.Errorf("String() = %q, want 4KiB", got)
	}
	if got := ByteSize(1500).String(); got != "1500B" {
		t.Errorf("String() = %q, want 1500B", got)
	}
}

package expiry

import (
	"testing"
	"time"
)

func TestNormalize_SlashDates(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"01/02/24", "2024-01-02"},
		{"1/2/24", "2024-01-02"},
		{"12/31/99", "2099-12-31"},
		{"01/02/2024", "2024-01-02"},
		{"06/15/2025", "2025-06-15"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_ExpiresPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Expires 01/02/24", "2024-01-02"},
		{"EXPIRES 01/02/24", "2024-01-02"},
		{"expires 12/31/25", "2025-12-31"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_NativeLayouts(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-06-30", "2024-06-30"},
		{"Expires 2024-06-30", "2024-06-30"},
		{"June 30, 2024", "2024-06-30"},
		{"Jun 30, 2024", "2024-06-30"},
		{"30 Jun 2024", "2024-06-30"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_ZonedInputUsesLocalCalendar(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	orig := time.Local
	time.Local = loc
	defer func() { time.Local = orig }()

	// Midnight UTC is still the previous evening in New York, so the
	// local calendar date is one day earlier.
	if got := Normalize("2024-01-02T00:00:00Z"); got != "2024-01-01" {
		t.Errorf("Normalize(%q) = %q, want %q", "2024-01-02T00:00:00Z", got, "2024-01-01")
	}

	// An offset matching local time formats unchanged.
	if got := Normalize("2024-01-02T10:00:00-05:00"); got != "2024-01-02" {
		t.Errorf("Normalize(%q) = %q, want %q", "2024-01-02T10:00:00-05:00", got, "2024-01-02")
	}
}

func TestNormalize_Unparseable(t *testing.T) {
	for _, in := range []string{"", "   ", "No expiration", "Expires soon", "13/45/abc"} {
		if got := Normalize(in); got != "" {
			t.Errorf("Normalize(%q) = %q, want empty", in, got)
		}
	}
}

func TestNormalize_RejectsImpossibleSlashDates(t *testing.T) {
	for _, in := range []string{"13/01/24", "00/10/24", "06/32/24"} {
		if got := Normalize(in); got != "" {
			t.Errorf("Normalize(%q) = %q, want empty", in, got)
		}
	}
}

func TestExpired(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.Local)

	tests := []struct {
		expires string
		want    bool
	}{
		{"", false},            // null expiry never expires
		{"2025-06-14", true},   // yesterday
		{"2025-06-15", false},  // today still counts
		{"2025-06-16", false},  // tomorrow
		{"2020-01-01", true},
	}

	for _, tt := range tests {
		if got := expired(tt.expires, now); got != tt.want {
			t.Errorf("expired(%q) = %v, want %v", tt.expires, got, tt.want)
		}
	}
}

func TestCutoff(t *testing.T) {
	now := time.Date(2025, 6, 15, 23, 59, 0, 0, time.Local)
	if got := Cutoff(now); got != "2025-06-15" {
		t.Errorf("Cutoff() = %q, want %q", got, "2025-06-15")
	}
}

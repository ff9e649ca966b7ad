package schedule

import (
	"testing"
	"time"

	"briefing_agent/internal/model"
)

// 09:02 local in America/New_York on 2026-08-31 (EDT, UTC-4) is 13:02 UTC.
func nyPrefs(sendTime string) model.UserPreferences {
	return model.UserPreferences{
		UserID:   "u1",
		Timezone: "America/New_York",
		SendTime: sendTime,
	}
}

func TestIsDue(t *testing.T) {
	gate := New(5 * time.Minute)

	tests := []struct {
		name    string
		prefs   model.UserPreferences
		nowUTC  time.Time
		want    bool
		wantErr bool
	}{
		{
			name:   "inside tolerance after target",
			prefs:  nyPrefs("09:00"),
			nowUTC: time.Date(2026, 8, 31, 13, 2, 0, 0, time.UTC), // 09:02 local
			want:   true,
		},
		{
			name:   "inside tolerance before target",
			prefs:  nyPrefs("09:00"),
			nowUTC: time.Date(2026, 8, 31, 12, 56, 0, 0, time.UTC), // 08:56 local
			want:   true,
		},
		{
			name:   "outside tolerance",
			prefs:  nyPrefs("09:00"),
			nowUTC: time.Date(2026, 8, 31, 13, 10, 0, 0, time.UTC), // 09:10 local
			want:   false,
		},
		{
			name:   "exactly at boundary",
			prefs:  nyPrefs("09:00"),
			nowUTC: time.Date(2026, 8, 31, 13, 5, 0, 0, time.UTC), // 09:05 local
			want:   true,
		},
		{
			name:   "utc subscriber",
			prefs:  model.UserPreferences{Timezone: "UTC", SendTime: "07:30"},
			nowUTC: time.Date(2026, 8, 31, 7, 33, 0, 0, time.UTC),
			want:   true,
		},
		{
			name:    "invalid timezone",
			prefs:   model.UserPreferences{Timezone: "Mars/Olympus", SendTime: "09:00"},
			nowUTC:  time.Date(2026, 8, 31, 13, 0, 0, 0, time.UTC),
			wantErr: true,
		},
		{
			name:    "invalid send time",
			prefs:   nyPrefs("9 o'clock"),
			nowUTC:  time.Date(2026, 8, 31, 13, 0, 0, 0, time.UTC),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.IsDue(tt.prefs, tt.nowUTC)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsDue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSendTime(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{in: "09:00", hour: 9, minute: 0},
		{in: "23:59", hour: 23, minute: 59},
		{in: " 7:05 ", hour: 7, minute: 5},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseSendTime(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h != tt.hour || m != tt.minute {
				t.Errorf("ParseSendTime(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.minute)
			}
		})
	}
}

package model

import (
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Period
		wantErr bool
	}{
		{
			name:  "valid period",
			input: "2025-07",
			want:  Period{Year: 2025, Month: time.July},
		},
		{
			name:  "single digit month zero padded",
			input: "2024-01",
			want:  Period{Year: 2024, Month: time.January},
		},
		{
			name:    "missing month",
			input:   "2025",
			wantErr: true,
		},
		{
			name:    "month out of range",
			input:   "2025-13",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "julio",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeriod(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePeriod(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParsePeriod(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPeriodKeys(t *testing.T) {
	p := Period{Year: 2025, Month: time.March}

	if got := p.String(); got != "2025-03" {
		t.Errorf("String() = %q, want %q", got, "2025-03")
	}
	if got := p.Label(); got != "Mar 2025" {
		t.Errorf("Label() = %q, want %q", got, "Mar 2025")
	}
}

func TestPeriodDaysInMonth(t *testing.T) {
	tests := []struct {
		name   string
		period Period
		want   int
	}{
		{"january", Period{2025, time.January}, 31},
		{"april", Period{2025, time.April}, 30},
		{"february", Period{2025, time.February}, 28},
		{"leap february", Period{2024, time.February}, 29},
		{"december", Period{2024, time.December}, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.period.DaysInMonth(); got != tt.want {
				t.Errorf("DaysInMonth() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPeriodBounds(t *testing.T) {
	p := Period{Year: 2025, Month: time.June}

	if got := p.Start(); !got.Equal(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start() = %v", got)
	}
	if !p.Contains(time.Date(2025, time.June, 30, 23, 0, 0, 0, time.UTC)) {
		t.Error("Contains() should include the last day")
	}
	if p.Contains(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("Contains() should exclude the next month")
	}
	if got := p.End(); !p.Contains(got) {
		t.Errorf("End() = %v falls outside the period", got)
	}
}

func TestPeriodOrdering(t *testing.T) {
	now := time.Date(2025, time.August, 21, 10, 0, 0, 0, time.UTC)

	current := PeriodOf(now)
	if !current.IsCurrent(now) {
		t.Error("PeriodOf(now) should be current")
	}

	past := Period{Year: 2025, Month: time.July}
	if past.IsCurrent(now) {
		t.Error("July should not be current in August")
	}
	if !past.Before(current) {
		t.Error("July should sort before August")
	}
	if current.Before(past) {
		t.Error("August should not sort before July")
	}

	if got := current.Prev(); got != past {
		t.Errorf("Prev() = %v, want %v", got, past)
	}

	yearEdge := Period{Year: 2025, Month: time.January}
	if got := yearEdge.Prev(); got != (Period{Year: 2024, Month: time.December}) {
		t.Errorf("Prev() across year = %v", got)
	}
}

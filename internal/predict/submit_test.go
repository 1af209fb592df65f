package predict

import (
	"errors"
	"testing"
	"time"
)

func TestCheckAdmission(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name        string
		status      string
		expiresAt   time.Time
		choice      int
		optionCount int
		wantErr     error
	}{
		{"open valid", StatusOpen, future, 1, 3, nil},
		{"first option", StatusOpen, future, 0, 3, nil},
		{"last option", StatusOpen, future, 2, 3, nil},
		{"resolved", StatusResolved, future, 1, 3, ErrPredictionClosed},
		{"deadline passed", StatusOpen, past, 1, 3, ErrPredictionClosed},
		{"exactly at deadline", StatusOpen, now, 1, 3, ErrPredictionClosed},
		{"negative choice", StatusOpen, future, -1, 3, ErrInvalidChoice},
		{"choice past options", StatusOpen, future, 3, 3, ErrInvalidChoice},
		{"closed wins over bad choice", StatusResolved, past, 9, 3, ErrPredictionClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkAdmission(tt.status, tt.expiresAt, now, tt.choice, tt.optionCount)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("checkAdmission() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("checkAdmission() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

package domain

import (
	"testing"
	"time"
)

func TestMarketEvent_IsActive(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		event MarketEvent
		want  bool
	}{
		{"active no end", MarketEvent{Active: true}, true},
		{"active future end", MarketEvent{Active: true, EndTime: now.Add(time.Hour)}, true},
		{"active past end", MarketEvent{Active: true, EndTime: now.Add(-time.Second)}, false},
		{"ended", MarketEvent{Active: false, EndTime: now.Add(time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.IsActive(now); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidEventType(t *testing.T) {
	for _, et := range []EventType{EventPositive, EventNegative, EventNeutral} {
		if !ValidEventType(et) {
			t.Errorf("ValidEventType(%q) = false", et)
		}
	}
	if ValidEventType("bullish") {
		t.Error("ValidEventType(bullish) = true")
	}
}

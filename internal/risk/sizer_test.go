package risk

import (
	"errors"
	"math"
	"testing"
)

func TestSize_GoldBaseline(t *testing.T) {
	settings := Settings{RiskPercentage: 1.0, StopLossDistance: 5.0}

	sizing, err := Size(50000, settings, 100)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	if sizing.RiskAmount != 500 {
		t.Errorf("expected riskAmount=500, got %f", sizing.RiskAmount)
	}
	if sizing.LotSize != 1.00 {
		t.Errorf("expected lotSize=1.00, got %f", sizing.LotSize)
	}
}

func TestSize_Deterministic(t *testing.T) {
	settings := Settings{RiskPercentage: 2.5, StopLossDistance: 500}

	first, err := Size(48000, settings, 1)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	for i := 0; i < 100; i++ {
		again, err := Size(48000, settings, 1)
		if err != nil {
			t.Fatalf("Size returned error on iteration %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("expected identical sizing, got %+v vs %+v", again, first)
		}
	}
}

func TestSize_RoundsToTwoDecimals(t *testing.T) {
	settings := Settings{RiskPercentage: 1.0, StopLossDistance: 3.0}

	sizing, err := Size(50000, settings, 100)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	// 500 / 300 = 1.6666... -> 1.67
	if sizing.LotSize != 1.67 {
		t.Errorf("expected lotSize=1.67, got %f", sizing.LotSize)
	}
}

func TestSize_TooSmall(t *testing.T) {
	settings := Settings{RiskPercentage: 0.01, StopLossDistance: 500}

	sizing, err := Size(100, settings, 10)
	if !errors.Is(err, ErrSizeTooSmall) {
		t.Fatalf("expected ErrSizeTooSmall, got %v", err)
	}
	if sizing.LotSize != 0 {
		t.Errorf("expected lotSize=0, got %f", sizing.LotSize)
	}
	if sizing.RiskAmount != 0.01 {
		t.Errorf("expected riskAmount=0.01, got %f", sizing.RiskAmount)
	}
}

func TestSize_ZeroBalance(t *testing.T) {
	settings := Settings{RiskPercentage: 1.0, StopLossDistance: 5.0}

	if _, err := Size(0, settings, 100); !errors.Is(err, ErrSizeTooSmall) {
		t.Fatalf("expected ErrSizeTooSmall for zero balance, got %v", err)
	}
}

func TestStopLossPrice(t *testing.T) {
	if got := StopLossPrice("LONG", 2750, 5); got != 2745 {
		t.Errorf("expected long stop 2745, got %f", got)
	}
	if got := StopLossPrice("SHORT", 2750, 5); got != 2755 {
		t.Errorf("expected short stop 2755, got %f", got)
	}
}

func TestSettings_Validate(t *testing.T) {
	cases := []struct {
		name     string
		settings Settings
		wantErr  bool
	}{
		{"valid", Settings{RiskPercentage: 1, StopLossDistance: 5}, false},
		{"max risk", Settings{RiskPercentage: 100, StopLossDistance: 5}, false},
		{"zero risk", Settings{RiskPercentage: 0, StopLossDistance: 5}, true},
		{"negative risk", Settings{RiskPercentage: -1, StopLossDistance: 5}, true},
		{"over 100", Settings{RiskPercentage: 101, StopLossDistance: 5}, true},
		{"zero stop", Settings{RiskPercentage: 1, StopLossDistance: 0}, true},
		{"negative stop", Settings{RiskPercentage: 1, StopLossDistance: -5}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.settings.Validate()
			if tc.wantErr && err == nil {
				t.Errorf("expected validation error for %+v", tc.settings)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error for %+v: %v", tc.settings, err)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	if got := round2(1.005); math.Abs(got-1.0) > 0.011 {
		t.Errorf("round2(1.005) out of expected range: %f", got)
	}
	if got := round2(1.674999); got != 1.67 {
		t.Errorf("expected 1.67, got %f", got)
	}
	if got := round2(1.675001); got != 1.68 {
		t.Errorf("expected 1.68, got %f", got)
	}
}

package types

import (
	"testing"
	"time"
)

func TestStatesFor(t *testing.T) {
	tests := []struct {
		flow string
		want int
	}{
		{FlowNone, 1},
		{FlowAirtime, 4},
		{FlowData, 4},
		{FlowGiftCardSale, 5},
		{FlowWalletFunding, 3},
		{"bogus", 0},
	}

	for _, tt := range tests {
		t.Run(tt.flow, func(t *testing.T) {
			if got := len(StatesFor(tt.flow)); got != tt.want {
				t.Errorf("len(StatesFor(%s)) = %d, want %d", tt.flow, got, tt.want)
			}
		})
	}
}

func TestStatesFor_ReturnsCopy(t *testing.T) {
	states := StatesFor(FlowAirtime)
	states[0] = "mutated"

	if StatesFor(FlowAirtime)[0] != StateAirtimeNetwork {
		t.Error("StatesFor() should not expose internal slice")
	}
}

func TestValidState(t *testing.T) {
	if !ValidState(FlowNone, StateMainMenu) {
		t.Error("main_menu should be valid with flow none")
	}
	if ValidState(FlowAirtime, StateMainMenu) {
		t.Error("main_menu should not be valid inside a flow")
	}
	if ValidState(FlowAirtime, StateDataPlan) {
		t.Error("data state should not be valid for airtime flow")
	}
}

func TestSession_AdvanceDoesNotMutate(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession("08012345678", now, 5*time.Minute)
	s.Data["network"] = "mtn"

	next := s.Advance(FlowAirtime, StateAirtimePhone, map[string]string{"phone": "08011111111"}, now.Add(time.Minute), 5*time.Minute)

	if len(s.Data) != 1 || len(s.History) != 0 {
		t.Errorf("original mutated: data=%v history=%d", s.Data, len(s.History))
	}
	if next.Get("network") != "mtn" || next.Get("phone") != "08011111111" {
		t.Errorf("merged data = %v", next.Data)
	}
	if len(next.History) != 1 || next.History[0].State != StateMainMenu {
		t.Errorf("history = %+v", next.History)
	}
	if !next.ExpiresAt.Equal(now.Add(6 * time.Minute)) {
		t.Errorf("ExpiresAt = %v", next.ExpiresAt)
	}

	next.Data["network"] = "glo"
	if next.History[0].Data["network"] != "mtn" {
		t.Error("history entry should hold a copy of prior data")
	}
}

func TestSession_AdvancePatchWins(t *testing.T) {
	now := time.Now()
	s := NewSession("08012345678", now, time.Minute)
	s = s.Advance(FlowAirtime, StateAirtimePhone, map[string]string{"network": "mtn"}, now, time.Minute)
	s = s.Advance(FlowAirtime, StateAirtimeAmount, map[string]string{"network": "glo"}, now, time.Minute)

	if s.Get("network") != "glo" {
		t.Errorf("network = %s, want glo", s.Get("network"))
	}
}

func TestSession_HistoryBounded(t *testing.T) {
	now := time.Now()
	s := NewSession("08012345678", now, time.Minute)
	for i := 0; i < MaxHistory+10; i++ {
		s = s.Advance(FlowAirtime, StateAirtimeNetwork, nil, now, time.Minute)
	}

	if len(s.History) != MaxHistory {
		t.Errorf("history len = %d, want %d", len(s.History), MaxHistory)
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := NewSession("08012345678", now, time.Minute)

	if s.Expired(now) {
		t.Error("fresh session should not be expired")
	}
	if !s.Expired(now.Add(time.Minute)) {
		t.Error("session should expire at ExpiresAt")
	}
}

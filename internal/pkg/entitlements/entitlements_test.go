package entitlements

import "testing"

func TestFromSubscriptionType(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
	}{
		{in: "vip", want: PlanVIP},
		{in: "top", want: PlanTop},
		{in: " TOP ", want: PlanTop},
		{in: "gold", want: PlanFree},
		{in: "", want: PlanFree},
	}

	for _, tt := range tests {
		if got := FromSubscriptionType(tt.in); got != tt.want {
			t.Fatalf("FromSubscriptionType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlanRank(t *testing.T) {
	if PlanFree.Rank() >= PlanVIP.Rank() {
		t.Fatalf("expected VIP to outrank FREE")
	}
	if PlanVIP.Rank() >= PlanTop.Rank() {
		t.Fatalf("expected TOP to outrank VIP")
	}
}

package billing

import "testing"

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{in: 19.90, want: 1990},
		{in: 14.90, want: 1490},
		{in: 29.9, want: 2990},
		{in: 8, want: 800},
		{in: 0.5, want: 50},
	}

	for _, tt := range tests {
		if got := toMinorUnits(tt.in); got != tt.want {
			t.Fatalf("toMinorUnits(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSubscriptionStatusFromProvider(t *testing.T) {
	if got := subscriptionStatusFromProvider("active"); got != "active" {
		t.Fatalf("expected active, got %q", got)
	}
	for _, status := range []string{"past_due", "trialing", "unpaid", "canceled", "incomplete", ""} {
		if got := subscriptionStatusFromProvider(status); got != "inactive" {
			t.Fatalf("expected status %q to map to inactive, got %q", status, got)
		}
	}
}

func TestIsSubscriptionType(t *testing.T) {
	for _, id := range []string{"vip", "top", "VIP"} {
		if !isSubscriptionType(id) {
			t.Fatalf("expected %q to be a subscription type", id)
		}
	}
	if isSubscriptionType("elytra") {
		t.Fatalf("items are not subscription types")
	}
}

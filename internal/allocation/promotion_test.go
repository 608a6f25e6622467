package allocation

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPlanPromotion_InPlace(t *testing.T) {
	p := PlanPromotion(intPtr(5), 3)
	require.Equal(t, Promotion{Moved: 3}, p)
	require.False(t, p.Split())
}

func TestPlanPromotion_Partial(t *testing.T) {
	p := PlanPromotion(intPtr(2), 5)
	require.Equal(t, Promotion{Moved: 2, Remaining: 3}, p)
	require.True(t, p.Split())
}

func TestPlanPromotion_NoSpots(t *testing.T) {
	p := PlanPromotion(intPtr(0), 4)
	require.Equal(t, 0, p.Moved)
	require.False(t, p.Split())
}

func TestPlanPromotion_Unlimited(t *testing.T) {
	p := PlanPromotion(nil, 7)
	require.Equal(t, Promotion{Moved: 7}, p)
}

func TestProperty_PromotionConservesParticipants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		spots := rapid.IntRange(1, 30).Draw(t, "spots")
		waitlisted := rapid.IntRange(1, 30).Draw(t, "waitlisted")

		p := PlanPromotion(&spots, waitlisted)
		if p.Moved+p.Remaining != waitlisted {
			t.Fatalf("moved+remaining = %d, want %d", p.Moved+p.Remaining, waitlisted)
		}
		if p.Moved <= 0 {
			t.Fatalf("moved = %d with %d free spots", p.Moved, spots)
		}
		if p.Split() && p.Remaining <= 0 {
			t.Fatalf("split with empty remainder: %+v", p)
		}
	})
}

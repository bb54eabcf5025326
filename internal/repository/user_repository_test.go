package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/campaignforge/broadcast-backend/internal/audience"
	appErrors "github.com/campaignforge/broadcast-backend/internal/errors"
)

func testWindows() audience.Windows {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return audience.WindowsAt(now)
}

func TestSegmentQueryRequiresChannelAddress(t *testing.T) {
	w := testWindows()
	segments := []string{
		audience.SegmentAll,
		audience.SegmentActive,
		audience.SegmentNewUsers,
		audience.SegmentAtRisk,
		audience.SegmentChurned,
		audience.SegmentPowerUsers,
	}

	for _, segment := range segments {
		query, args, err := segmentQuery(segment, w)
		if err != nil {
			t.Fatalf("%s: %v", segment, err)
		}
		if !strings.Contains(query, hasAddress) {
			t.Fatalf("%s: predicate must require a channel address:\n%s", segment, query)
		}
		// Every placeholder must be bound, in order.
		for i := range args {
			if !strings.Contains(query, fmt.Sprintf("$%d", i+1)) {
				t.Fatalf("%s: missing placeholder $%d:\n%s", segment, i+1, query)
			}
		}
	}
}

func TestSegmentQueryAtRiskIsStrictlyBetweenWindows(t *testing.T) {
	w := testWindows()
	query, args, err := segmentQuery(audience.SegmentAtRisk, w)
	if err != nil {
		t.Fatal(err)
	}

	// Strict on both ends: MAX(occurred_at) > stale AND < recent; a last
	// activity exactly on either cutoff is excluded.
	if !strings.Contains(query, "MAX(e.occurred_at)") {
		t.Fatalf("at_risk must bind the latest activity, not any activity:\n%s", query)
	}
	if !strings.Contains(query, "> $1") || !strings.Contains(query, "< $2") {
		t.Fatalf("at_risk must be strict on both window edges:\n%s", query)
	}
	if len(args) != 2 || args[0] != w.Stale || args[1] != w.Recent {
		t.Fatalf("expected args [stale recent], got %v", args)
	}
}

func TestSegmentQueryChurnedIncludesNeverActive(t *testing.T) {
	w := testWindows()
	query, args, err := segmentQuery(audience.SegmentChurned, w)
	if err != nil {
		t.Fatal(err)
	}

	// NOT EXISTS, not a MAX comparison: users with no activity rows at all
	// count as churned.
	if !strings.Contains(query, "NOT EXISTS") {
		t.Fatalf("churned must use NOT EXISTS:\n%s", query)
	}
	if len(args) != 1 || args[0] != w.Stale {
		t.Fatalf("expected churned bound to the stale cutoff, got %v", args)
	}
}

func TestSegmentQueryActiveAndNewUsersBindRecentCutoff(t *testing.T) {
	w := testWindows()

	query, args, err := segmentQuery(audience.SegmentActive, w)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(query, "occurred_at > $1") {
		t.Fatalf("active must look for activity after the recent cutoff:\n%s", query)
	}
	if len(args) != 1 || args[0] != w.Recent {
		t.Fatalf("expected active bound to the recent cutoff, got %v", args)
	}

	query, args, err = segmentQuery(audience.SegmentNewUsers, w)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(query, "created_at > $1") {
		t.Fatalf("new_users must compare account age, not activity:\n%s", query)
	}
	if len(args) != 1 || args[0] != w.Recent {
		t.Fatalf("expected new_users bound to the recent cutoff, got %v", args)
	}
}

func TestSegmentQueryPowerUsersBindsEventFloor(t *testing.T) {
	w := testWindows()
	query, args, err := segmentQuery(audience.SegmentPowerUsers, w)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(query, "COUNT(*)") || !strings.Contains(query, ">= $2") {
		t.Fatalf("power_users must count events against the floor:\n%s", query)
	}
	if len(args) != 2 || args[0] != w.Recent || args[1] != audience.PowerUserMinEvents {
		t.Fatalf("expected args [recent %d], got %v", audience.PowerUserMinEvents, args)
	}
}

func TestSegmentQueryUnknownSegment(t *testing.T) {
	_, _, err := segmentQuery("whales", testWindows())
	var unknown *appErrors.ErrUnknownSegment
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownSegment, got %v", err)
	}
}

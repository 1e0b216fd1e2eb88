package fixture

import (
	"testing"
	"time"
)

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return c
}

func TestCheckCoverageKnownPlan(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t)
	got := c.CheckCoverage("Delta Dental", "PPO", "D1110")
	want := Coverage{Covered: true, CopayEstimate: 25, Notes: "Cleaning covered twice per year"}
	if got != want {
		t.Fatalf("CheckCoverage() = %+v, want %+v", got, want)
	}

	got = c.CheckCoverage("  aetna ", "dmo", "D2740")
	if got.Covered || got.Notes != "Crowns not covered under DMO" {
		t.Fatalf("unexpected aetna crown coverage: %+v", got)
	}
}

func TestCheckCoverageUnknownPlanQuotesCashPrice(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t)
	got := c.CheckCoverage("Acme", "Gold", "D2740")
	if got.Covered || got.CopayEstimate != 0 {
		t.Fatalf("unexpected coverage: %+v", got)
	}
	if got.Notes != "No coverage found for Acme Gold. Cash-pay estimate: $1200" {
		t.Fatalf("unexpected notes: %q", got.Notes)
	}

	got = c.CheckCoverage("Acme", "Gold", "D9999")
	if got.Notes != "No coverage found for Acme Gold. Cash-pay estimate: $100" {
		t.Fatalf("unexpected default cash notes: %q", got.Notes)
	}
}

func TestCheckCoverageUnknownProcedure(t *testing.T) {
	t.Parallel()

	got := mustCatalog(t).CheckCoverage("Cigna", "DPPO", "D9999")
	if got.Covered || got.Notes != "Procedure D9999 not covered" {
		t.Fatalf("unexpected coverage: %+v", got)
	}
}

func TestProcedureCode(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t)
	cases := map[string]string{
		"cleaning":   "D1110",
		"Root Canal": "D3310",
		"root-canal": "D3310",
		"X-Ray":      "D9310",
		"xray":       "D0220",
		"whitening":  "D9310",
	}
	for in, want := range cases {
		if got := c.ProcedureCode(in); got != want {
			t.Fatalf("ProcedureCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAvailabilitySlotsWeekdaysOnly(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t)
	// Friday 2025-01-17 through Monday 2025-01-20.
	start := time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	slots := c.AvailabilitySlots("loc-sj", "prov-001", start, end, "cleaning")
	if len(slots) != 12 {
		t.Fatalf("expected 12 slots, got %d", len(slots))
	}
	if slots[0].Start != "2025-01-17T09:00:00" || slots[0].End != "2025-01-17T10:00:00" {
		t.Fatalf("unexpected first slot: %+v", slots[0])
	}
	if slots[6].Start != "2025-01-20T09:00:00" {
		t.Fatalf("expected monday after weekend, got %+v", slots[6])
	}

	checkup := c.AvailabilitySlots("loc-sj", "prov-001", start, start, "checkup")
	if checkup[3].Start != "2025-01-17T14:00:00" || checkup[3].End != "2025-01-17T14:30:00" {
		t.Fatalf("unexpected checkup slot: %+v", checkup[3])
	}
}

func TestAvailabilitySlotsProviderMustServeLocation(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t)
	day := time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)
	if got := c.AvailabilitySlots("loc-oak", "prov-001", day, day, "cleaning"); len(got) != 0 {
		t.Fatalf("expected no slots, got %d", len(got))
	}
	if got := c.AvailabilitySlots("loc-sj", "prov-404", day, day, "cleaning"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slots, got %#v", got)
	}
}

func TestFindHelpers(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t)
	loc, ok := c.FindLocationByCity("sanfran")
	if !ok || loc.ID != "loc-sf" {
		t.Fatalf("FindLocationByCity() = %+v, %v", loc, ok)
	}
	if _, ok := c.FindLocationByCity(""); ok {
		t.Fatal("empty city must not match")
	}

	prov, ok := c.FindProviderForLocation("loc-oak")
	if !ok || prov.ID != "prov-003" {
		t.Fatalf("FindProviderForLocation() = %+v, %v", prov, ok)
	}
	if _, ok := c.FindProviderForLocation("loc-nyc"); ok {
		t.Fatal("unknown location must not match")
	}
}

func TestParseRejectsMissingSchedule(t *testing.T) {
	t.Parallel()

	if _, err := Parse(insuranceRaw, []byte("providers: []\n")); err == nil {
		t.Fatal("expected error for missing schedule")
	}
}

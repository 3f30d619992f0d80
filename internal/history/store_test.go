package history

import (
	"testing"
	"time"

	"github.com/ppiankov/policydeck/internal/policy"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck // test cleanup
	return s
}

func TestOpen_InMemory(t *testing.T) {
	s := openMemory(t)
	if s.db == nil {
		t.Fatal("expected non-nil db")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openMemory(t)
	// Running migrate again should not error
	if err := migrate(s.db); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestSaveAndList(t *testing.T) {
	s := openMemory(t)
	now := time.Now().UTC().Truncate(time.Second)

	snap := policy.Snapshot{
		At: now,
		Policies: []policy.Record{
			{ID: 1, AppName: "Google Chrome", Protocol: "TCP", Port: 443, Action: "ALLOW"},
			{ID: 2, AppName: "Unknown/System Process", Protocol: "UDP", Port: 53, Action: "ALLOW"},
			{ID: 3, AppName: "nc", Protocol: "TCP", Port: 20000, Action: "DENY"},
		},
	}

	if err := s.Save(snap); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	summaries, err := s.List(10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(summaries))
	}

	sm := summaries[0]
	if sm.PolicyCount != 3 {
		t.Errorf("policyCount = %d, want 3", sm.PolicyCount)
	}
	if sm.HighRiskCount != 1 {
		t.Errorf("highRiskCount = %d, want 1", sm.HighRiskCount)
	}
	if sm.UnidentifiedCount != 1 {
		t.Errorf("unidentifiedCount = %d, want 1", sm.UnidentifiedCount)
	}
	if !sm.FetchOK {
		t.Error("expected fetchOk for a clean snapshot")
	}
}

func TestSaveFailedFetch(t *testing.T) {
	s := openMemory(t)

	snap := policy.Snapshot{At: time.Now(), FetchErr: "connection refused"}
	if err := s.Save(snap); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	summaries, err := s.List(1)
	if err != nil {
		t.Fatal(err)
	}
	if summaries[0].FetchOK {
		t.Error("expected fetchOk=false")
	}
	if summaries[0].FetchErr != "connection refused" {
		t.Errorf("unexpected fetchErr: %q", summaries[0].FetchErr)
	}
	if summaries[0].PolicyCount != 0 {
		t.Errorf("a failed fetch must store an empty collection, got %d", summaries[0].PolicyCount)
	}
}

func TestList_Ordering(t *testing.T) {
	s := openMemory(t)
	now := time.Now().UTC().Truncate(time.Second)

	for i := range 3 {
		snap := policy.Snapshot{
			At:       now.Add(time.Duration(i) * time.Minute),
			Policies: []policy.Record{{ID: i, AppName: "app", Protocol: "TCP", Port: 80, Action: "ALLOW"}},
		}
		if err := s.Save(snap); err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}

	summaries, err := s.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(summaries))
	}
	for i := 1; i < len(summaries); i++ {
		if summaries[i].At.After(summaries[i-1].At) {
			t.Error("expected newest-first ordering")
		}
	}
}

func TestTrend(t *testing.T) {
	s := openMemory(t)
	now := time.Now().UTC().Truncate(time.Second)

	// Same app flips from ALLOW to a high-risk DENY across two snapshots
	first := policy.Snapshot{
		At:       now,
		Policies: []policy.Record{{ID: 1, AppName: "nc", Protocol: "TCP", Port: 20000, Action: "ALLOW"}},
	}
	second := policy.Snapshot{
		At:       now.Add(time.Minute),
		Policies: []policy.Record{{ID: 1, AppName: "nc", Protocol: "TCP", Port: 20000, Action: "DENY"}},
	}
	if err := s.Save(first); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(second); err != nil {
		t.Fatal(err)
	}

	points, err := s.Trend("nc", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Badge != string(policy.BadgeHighRisk) {
		t.Errorf("newest point badge = %q, want high risk", points[0].Badge)
	}
	if points[1].Badge != string(policy.BadgeActive) {
		t.Errorf("oldest point badge = %q, want active", points[1].Badge)
	}
}

func TestGetLatest(t *testing.T) {
	s := openMemory(t)

	latest, err := s.GetLatest()
	if err != nil {
		t.Fatal(err)
	}
	if latest != nil {
		t.Fatal("expected nil for empty store")
	}

	now := time.Now().UTC().Truncate(time.Second)
	snap := policy.Snapshot{
		At:       now,
		Policies: []policy.Record{{ID: 7, AppName: "sshd", Protocol: "TCP", Port: 22, Action: "ALLOW"}},
	}
	if err := s.Save(snap); err != nil {
		t.Fatal(err)
	}

	latest, err = s.GetLatest()
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil {
		t.Fatal("expected a snapshot")
	}
	if len(latest.Policies) != 1 || latest.Policies[0].ID != 7 {
		t.Errorf("unexpected policies: %+v", latest.Policies)
	}
}

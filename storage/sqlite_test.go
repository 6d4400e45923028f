package storage

import (
	"encoding/json"
	"testing"
	"time"

	"ktm_scrooper/models"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertPlan_FingerprintConflict(t *testing.T) {
	store := testStore(t)

	now := time.Now()
	plan := &models.Plan{
		ID:          "abc123",
		Fingerprint: "abc123",
		Site:        "ktmmobile",
		TabName:     "유심/eSIM 요금제",
		SubtabName:  "LTE",
		Title:       "모두다 맘껏 11GB+",
		Price:       33000,
		FirstSeenAt: now,
		LastSeenAt:  now,
		TimesSeen:   1,
	}
	if err := store.UpsertPlan(plan); err != nil {
		t.Fatalf("insert: %v", err)
	}

	plan.Price = 29700
	plan.TimesSeen = 2
	plan.LastSeenAt = now.Add(time.Hour)
	if err := store.UpsertPlan(plan); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.GetPlanByFingerprint("abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected plan, got nil")
	}
	if got.Price != 29700 {
		t.Fatalf("expected updated price 29700, got %d", got.Price)
	}
	if got.TimesSeen != 2 {
		t.Fatalf("expected times_seen 2, got %d", got.TimesSeen)
	}

	missing, err := store.GetPlanByFingerprint("nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown fingerprint, got %+v", missing)
	}
}

func TestRunLifecycle(t *testing.T) {
	store := testStore(t)

	run := &models.ScrapeRun{
		SiteID:    "ktmmobile",
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	run.ID = id

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.CardsFound = 42
	run.PlansFound = 40
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	last, err := store.GetLastRunTime("ktmmobile")
	if err != nil {
		t.Fatalf("last run time: %v", err)
	}
	if last.IsZero() {
		t.Fatal("expected non-zero last run time")
	}

	if err := store.UpdateSiteStats("ktmmobile"); err != nil {
		t.Fatalf("update site stats: %v", err)
	}
}

func TestCommandQueue(t *testing.T) {
	store := testStore(t)

	params, _ := json.Marshal(models.CommandParams{Site: "ktmmobile"})
	if err := store.EnqueueCommand(models.CmdScrapeSite, params); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	cmds, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("expected 1 pending command, got %d", len(cmds))
	}
	if cmds[0].Command != models.CmdScrapeSite {
		t.Fatalf("unexpected command %s", cmds[0].Command)
	}

	parsed, err := store.ParseCommandParams(&cmds[0])
	if err != nil {
		t.Fatalf("parse params: %v", err)
	}
	if parsed.Site != "ktmmobile" {
		t.Fatalf("unexpected site %q", parsed.Site)
	}

	if err := store.MarkCommandProcessed(cmds[0].ID); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	cmds, err = store.GetPendingCommands()
	if err != nil {
		t.Fatalf("pending after mark: %v", err)
	}
	if len(cmds) != 0 {
		t.Fatalf("expected empty queue, got %d", len(cmds))
	}
}

func TestArtifactQueue(t *testing.T) {
	store := testStore(t)

	runID := int64(7)
	if err := store.QueueArtifact(&runID, models.ArtifactKindHTML, "/tmp/a.html"); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if err := store.QueueArtifact(nil, models.ArtifactKindTrace, "/tmp/trace.zip"); err != nil {
		t.Fatalf("queue trace: %v", err)
	}

	arts, err := store.ClaimPendingArtifacts(10, 3)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(arts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(arts))
	}

	if err := store.MarkArtifactUploaded(arts[0].ID, "artifacts/html/a.html"); err != nil {
		t.Fatalf("mark uploaded: %v", err)
	}
	if err := store.MarkArtifactFailed(arts[1].ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	arts, err = store.ClaimPendingArtifacts(10, 3)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(arts) != 0 {
		t.Fatalf("expected no claimable artifacts, got %d", len(arts))
	}
}

func TestClaimPendingArtifacts_AttemptCap(t *testing.T) {
	store := testStore(t)

	if err := store.QueueArtifact(nil, models.ArtifactKindScreenshot, "/tmp/shot.png"); err != nil {
		t.Fatalf("queue: %v", err)
	}

	// each claim bumps attempts; the cap stops the third claim
	for i := 0; i < 2; i++ {
		arts, err := store.ClaimPendingArtifacts(10, 2)
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if len(arts) != 1 {
			t.Fatalf("claim %d: expected 1 artifact, got %d", i, len(arts))
		}
	}

	arts, err := store.ClaimPendingArtifacts(10, 2)
	if err != nil {
		t.Fatalf("final claim: %v", err)
	}
	if len(arts) != 0 {
		t.Fatalf("expected attempts cap to hold the artifact back, got %d", len(arts))
	}
}

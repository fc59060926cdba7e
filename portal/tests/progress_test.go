package tests

import (
	"errors"
	"testing"

	"access_portal/portal/schema"
	"access_portal/portal/services"
)

func requestProgress(t *testing.T, env *testEnv, user client, datasetId uint) schema.WorkflowProgress {
	t.Helper()

	if _, err := user.submitRequest(datasetId, "T", "P"); err != nil {
		t.Fatal(err)
	}
	progress, err := user.listProgress(user.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(progress) != 1 {
		t.Fatalf("expected one progress row, got %+v", progress)
	}
	return progress[0]
}

func TestUpdateWorkflowStep(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	progress := requestProgress(t, env, user, dataset.Id)
	if progress.CurrentStep != schema.MinWorkflowStep {
		t.Fatalf("new progress should start at the first step, got %v", progress.CurrentStep)
	}

	updated, err := user.updateProgressStep(progress.Id, 4)
	if err != nil {
		t.Fatal(err)
	}
	if updated.CurrentStep != 4 {
		t.Fatalf("unexpected step %v", updated.CurrentStep)
	}
	if !updated.LastUpdated.After(progress.LastUpdated) {
		t.Fatal("step update should bump the last updated timestamp")
	}

	for _, step := range []int{0, 8, -1} {
		if _, err := user.updateProgressStep(progress.Id, step); !errors.Is(err, ErrBadRequest) {
			t.Fatalf("step %v should be rejected, got %v", step, err)
		}
	}

	if _, err := user.updateProgressStep(999, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown progress row should 404, got %v", err)
	}
}

func TestUpdatePhaseStatus(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	progress := requestProgress(t, env, user, dataset.Id)

	updated, err := user.updateProgressPhase(progress.Id, "authentication", schema.PhaseCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if updated.AuthenticationStatus != schema.PhaseCompleted {
		t.Fatalf("unexpected progress %+v", updated)
	}

	updated, err = user.updateProgressPhase(progress.Id, "approval", schema.PhaseInProgress)
	if err != nil {
		t.Fatal(err)
	}
	if updated.ApprovalStatus != schema.PhaseInProgress {
		t.Fatalf("unexpected progress %+v", updated)
	}
	// Earlier phase updates are untouched.
	if updated.AuthenticationStatus != schema.PhaseCompleted {
		t.Fatalf("unrelated phase was modified: %+v", updated)
	}

	if _, err := user.updateProgressPhase(progress.Id, "teleportation", schema.PhaseCompleted); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("unknown phase should be rejected, got %v", err)
	}
	if _, err := user.updateProgressPhase(progress.Id, "approval", "done-ish"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("unknown status should be rejected, got %v", err)
	}
}

func TestListProgressRequiresAuth(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	anon := env.newClient()

	if _, err := anon.listProgress(1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous progress listing should be rejected, got %v", err)
	}
}

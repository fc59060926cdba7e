package tests

import (
	"errors"
	"testing"

	"access_portal/portal/schema"
	"access_portal/portal/services"
)

func TestSubmitRequestCreatesProgress(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}
	if request.Status != schema.RequestPending {
		t.Fatalf("new request should be pending, got '%v'", request.Status)
	}

	progress, err := user.listProgress(user.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(progress) != 1 {
		t.Fatalf("expected exactly one progress row, got %d", len(progress))
	}
	if progress[0].DataRequestId != request.Id {
		t.Fatal("progress row should reference the new request")
	}
	if progress[0].CurrentStep != 1 {
		t.Fatalf("new progress should start at step 1, got %d", progress[0].CurrentStep)
	}
	if progress[0].AuthenticationStatus != schema.PhaseNotStarted {
		t.Fatalf("new progress phases should be not_started, got '%v'", progress[0].AuthenticationStatus)
	}
}

func TestSubmitRequestValidation(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	if _, err := user.submitRequest(dataset.Id, "", "P"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing title should be rejected, got %v", err)
	}
	if _, err := user.submitRequest(dataset.Id, "T", ""); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing purpose should be rejected, got %v", err)
	}
	if _, err := user.submitRequest(999, "T", "P"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown dataset should be rejected, got %v", err)
	}

	// No orphan progress rows from the failed submissions.
	progress, err := user.listProgress(user.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(progress) != 0 {
		t.Fatalf("failed submissions must not leave progress rows, found %d", len(progress))
	}
}

func TestRequestStatusTransitions(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}

	updated, err := user.updateRequestStatus(request.Id, schema.RequestWithdrawn)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != schema.RequestWithdrawn {
		t.Fatalf("expected withdrawn, got '%v'", updated.Status)
	}

	// Withdrawn is terminal.
	if _, err := user.updateRequestStatus(request.Id, schema.RequestApproved); !errors.Is(err, ErrConflict) {
		t.Fatalf("withdrawn request must not be approvable, got %v", err)
	}

	if _, err := user.updateRequestStatus(999, schema.RequestApproved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown request should 404, got %v", err)
	}
}

func TestListRequestsByUser(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	other := env.newUser(t, "other")
	dataset := env.newDataset(t, admin, "dataset-a")

	for i := 0; i < 3; i++ {
		if _, err := user.submitRequest(dataset.Id, "T", "P"); err != nil {
			t.Fatal(err)
		}
	}

	requests, err := user.listRequests(user.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(requests) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(requests))
	}

	requests, err = other.listRequests(other.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(requests) != 0 {
		t.Fatalf("expected no requests for other user, got %d", len(requests))
	}
}

func TestWorkflowStepCatalog(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	anon := env.newClient()

	type stepsResponse struct {
		Steps []services.WorkflowStep `json:"steps"`
	}

	res, err := get[stepsResponse](&anon, "/workflow-steps")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Steps) != 7 {
		t.Fatalf("expected 7 workflow steps, got %d", len(res.Steps))
	}
	for i, step := range res.Steps {
		if step.Id != i+1 || step.Title == "" || step.Description == "" {
			t.Fatalf("malformed step %+v", step)
		}
	}
}

package tests

import (
	"errors"
	"testing"

	"access_portal/portal/schema"
	"access_portal/portal/services"
)

func TestTwoPhaseApproval(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.recordDecision(request.Id, schema.CommitteeDac, true, admin.userId)
	if err != nil {
		t.Fatal(err)
	}
	if res.Grant != nil {
		t.Fatal("a DAC approval alone must not issue a grant")
	}

	fetched, err := user.getRequest(request.Id)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != schema.RequestPending {
		t.Fatalf("request should stay pending awaiting NCP, got '%v'", fetched.Status)
	}

	res, err = admin.recordDecision(request.Id, schema.CommitteeNcp, true, admin.userId)
	if err != nil {
		t.Fatal(err)
	}
	if res.Grant == nil {
		t.Fatal("both approvals should issue a grant")
	}
	if res.Grant.Status != schema.GrantActive {
		t.Fatalf("issued grant should be active, got '%v'", res.Grant.Status)
	}
	if res.Grant.Reference == "" {
		t.Fatal("issued grant should carry a reference")
	}

	fetched, err = user.getRequest(request.Id)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != schema.RequestApproved {
		t.Fatalf("request should be approved, got '%v'", fetched.Status)
	}

	grants, err := user.listActiveGrants(user.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 || grants[0].Id != res.Grant.Id {
		t.Fatalf("expected the issued grant in active list, got %+v", grants)
	}

	decisions, err := admin.listDecisions(request.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 2 {
		t.Fatalf("expected 2 recorded decisions, got %d", len(decisions))
	}
}

func TestNcpRequiresDacFirst(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.recordDecision(request.Id, schema.CommitteeNcp, true, admin.userId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("NCP decision before DAC should be rejected, got %v", err)
	}
}

func TestDacRejectionShortCircuits(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.recordDecision(request.Id, schema.CommitteeDac, false, admin.userId); err != nil {
		t.Fatal(err)
	}

	fetched, err := user.getRequest(request.Id)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != schema.RequestRejected {
		t.Fatalf("DAC rejection should reject the request, got '%v'", fetched.Status)
	}

	// The review is over, NCP cannot weigh in.
	_, err = admin.recordDecision(request.Id, schema.CommitteeNcp, true, admin.userId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("NCP decision after DAC rejection should fail, got %v", err)
	}

	// And no grant path remains open.
	grants, err := user.listActiveGrants(user.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 0 {
		t.Fatalf("rejected request must not yield grants, got %+v", grants)
	}
}

func TestDuplicateCommitteeDecision(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.recordDecision(request.Id, schema.CommitteeDac, true, admin.userId); err != nil {
		t.Fatal(err)
	}

	_, err = admin.recordDecision(request.Id, schema.CommitteeDac, true, admin.userId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate DAC decision should fail, got %v", err)
	}
}

func TestRecordDecisionValidation(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.recordDecision(request.Id, "FDA", true, admin.userId); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("unknown committee should be rejected, got %v", err)
	}
	if _, err := admin.recordDecision(999, schema.CommitteeDac, true, admin.userId); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown request should 404, got %v", err)
	}
	if _, err := user.recordDecision(request.Id, schema.CommitteeDac, true, user.userId); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin decisions should be forbidden, got %v", err)
	}
}

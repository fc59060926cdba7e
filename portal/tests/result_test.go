package tests

import (
	"errors"
	"testing"

	"access_portal/portal/schema"
	"access_portal/portal/services"
)

func TestCreateResultRequiresActiveGrant(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}
	grant := env.approveRequest(t, admin, request.Id)

	res, err := user.createResult(grant.Id, "Survival model", "statistical_model")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != schema.ResultStored || res.GrantId != grant.Id {
		t.Fatalf("unexpected result %+v", res)
	}

	fetched, err := user.getResult(res.Id)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Title != "Survival model" || fetched.ResultType != "statistical_model" {
		t.Fatalf("unexpected result %+v", fetched)
	}

	if _, err := admin.revokeGrant(grant.Id, "audit finding"); err != nil {
		t.Fatal(err)
	}
	if _, err := user.createResult(grant.Id, "after revoke", "table"); !errors.Is(err, ErrConflict) {
		t.Fatalf("results on a revoked grant should be rejected, got %v", err)
	}

	if _, err := user.createResult(999, "x", "table"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown grant should 404, got %v", err)
	}
	if _, err := user.createResult(grant.Id, "", "table"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing title should be rejected, got %v", err)
	}
}

func TestResultStatusIsMonotonic(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}
	grant := env.approveRequest(t, admin, request.Id)

	res, err := user.createResult(grant.Id, "Cohort summary", "table")
	if err != nil {
		t.Fatal(err)
	}

	// Cannot skip straight to exported, and cannot move backwards.
	if _, err := user.updateResultStatus(res.Id, schema.ResultExported); !errors.Is(err, ErrConflict) {
		t.Fatalf("stored -> exported should be rejected, got %v", err)
	}

	res, err = user.updateResultStatus(res.Id, schema.ResultPendingExport)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != schema.ResultPendingExport {
		t.Fatalf("unexpected status %v", res.Status)
	}

	if _, err := user.updateResultStatus(res.Id, schema.ResultStored); !errors.Is(err, ErrConflict) {
		t.Fatalf("pending_export -> stored should be rejected, got %v", err)
	}

	res, err = user.updateResultStatus(res.Id, schema.ResultExported)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != schema.ResultExported {
		t.Fatalf("unexpected status %v", res.Status)
	}

	if _, err := user.updateResultStatus(res.Id, "garbage"); !errors.Is(err, ErrConflict) {
		t.Fatalf("unknown status should be rejected, got %v", err)
	}
}

func TestListResults(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	other := env.newUser(t, "bystander")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}
	grant := env.approveRequest(t, admin, request.Id)

	for _, title := range []string{"first", "second"} {
		if _, err := user.createResult(grant.Id, title, "figure"); err != nil {
			t.Fatal(err)
		}
	}

	byUser, err := user.listResults(user.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(byUser) != 2 {
		t.Fatalf("expected 2 results, got %+v", byUser)
	}

	byGrant, err := user.listResultsByGrant(grant.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(byGrant) != 2 {
		t.Fatalf("expected 2 results for grant, got %+v", byGrant)
	}

	none, err := other.listResults(other.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no results for other user, got %+v", none)
	}
}

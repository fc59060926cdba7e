package tests

import (
	"errors"
	"strings"
	"testing"
	"time"

	"access_portal/portal/schema"
	"access_portal/portal/services"
)

func TestCreateGrantRequiresApprovedRequest(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.createGrant(createGrantBody{RequestId: request.Id, UserId: user.userId, DatasetId: dataset.Id})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("grant on a pending request should fail, got %v", err)
	}

	if _, err := user.updateRequestStatus(request.Id, schema.RequestApproved); err != nil {
		t.Fatal(err)
	}

	grant, err := admin.createGrant(createGrantBody{RequestId: request.Id, UserId: user.userId, DatasetId: dataset.Id})
	if err != nil {
		t.Fatal(err)
	}
	if grant.Status != schema.GrantActive || grant.Reference == "" {
		t.Fatalf("unexpected grant %+v", grant)
	}
}

func TestCreateGrantValidatesDates(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := user.updateRequestStatus(request.Id, schema.RequestApproved); err != nil {
		t.Fatal(err)
	}

	start := time.Now().UTC()
	end := start.Add(-time.Hour)
	_, err = admin.createGrant(createGrantBody{
		RequestId: request.Id, UserId: user.userId, DatasetId: dataset.Id,
		StartDate: &start, EndDate: &end,
	})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("end date before start date should be rejected, got %v", err)
	}
}

func TestRevokeGrant(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}
	grant := env.approveRequest(t, admin, request.Id)

	revoked, err := admin.revokeGrant(grant.Id, "policy violation")
	if err != nil {
		t.Fatal(err)
	}
	if revoked.Status != schema.GrantRevoked || revoked.RevokedReason != "policy violation" || revoked.RevokedDate == nil {
		t.Fatalf("unexpected revoked grant %+v", revoked)
	}

	// A second revocation must not overwrite the recorded reason.
	_, err = admin.revokeGrant(grant.Id, "different reason")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("double revocation should fail, got %v", err)
	}

	grants, err := user.listGrants(user.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 || grants[0].RevokedReason != "policy violation" {
		t.Fatalf("first revocation reason must be retained, got %+v", grants)
	}

	active, err := user.listActiveGrants(user.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("revoked grant must not be listed active, got %+v", active)
	}

	if _, err := admin.revokeGrant(grant.Id, ""); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing reason should be rejected, got %v", err)
	}
	if _, err := admin.revokeGrant(999, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown grant should 404, got %v", err)
	}
}

func TestActiveListExpiresOverdueGrants(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := user.updateRequestStatus(request.Id, schema.RequestApproved); err != nil {
		t.Fatal(err)
	}

	// Grant whose window has already closed but whose status was never flipped.
	start := time.Now().UTC().Add(-48 * time.Hour)
	end := start.Add(24 * time.Hour)
	grant, err := admin.createGrant(createGrantBody{
		RequestId: request.Id, UserId: user.userId, DatasetId: dataset.Id,
		StartDate: &start, EndDate: &end,
	})
	if err != nil {
		t.Fatal(err)
	}

	active, err := user.listActiveGrants(user.userId)
	if err != nil {
		t.Fatal(err)
	}
	for _, g := range active {
		if g.EndDate != nil && g.EndDate.Before(time.Now().UTC()) {
			t.Fatalf("active list returned an overdue grant %+v", g)
		}
	}
	if len(active) != 0 {
		t.Fatalf("expected no active grants, got %+v", active)
	}

	// The flip is persisted, not just filtered.
	grants, err := user.listGrants(user.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 || grants[0].Status != schema.GrantExpired {
		t.Fatalf("overdue grant should be persisted as expired, got %+v", grants)
	}

	// Expired is terminal the same way revoked is.
	if _, err := admin.revokeGrant(grant.Id, "too late"); !errors.Is(err, ErrConflict) {
		t.Fatalf("revoking an expired grant should fail, got %v", err)
	}
}

func TestRevokeOverdueGrant(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	request, err := user.submitRequest(dataset.Id, "T", "P")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := user.updateRequestStatus(request.Id, schema.RequestApproved); err != nil {
		t.Fatal(err)
	}

	start := time.Now().UTC().Add(-48 * time.Hour)
	end := start.Add(24 * time.Hour)
	grant, err := admin.createGrant(createGrantBody{
		RequestId: request.Id, UserId: user.userId, DatasetId: dataset.Id,
		StartDate: &start, EndDate: &end,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Straight to revoke, no active listing in between: the grant must surface
	// as expired, not pick up a revocation record.
	if _, err := admin.revokeGrant(grant.Id, "late revocation"); !errors.Is(err, ErrConflict) {
		t.Fatalf("revoking an overdue grant should fail, got %v", err)
	}

	grants, err := user.listGrants(user.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 || grants[0].Status != schema.GrantExpired {
		t.Fatalf("overdue grant should be persisted as expired, got %+v", grants)
	}
	if grants[0].RevokedReason != "" || grants[0].RevokedDate != nil {
		t.Fatalf("expired grant must carry no revocation record, got %+v", grants[0])
	}
}

func TestGrantReferencesAreDistinct(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)
	user := env.newUser(t, "researcher")
	dataset := env.newDataset(t, admin, "dataset-a")

	refs := map[string]struct{}{}
	for i := 0; i < 3; i++ {
		request, err := user.submitRequest(dataset.Id, "T", "P")
		if err != nil {
			t.Fatal(err)
		}
		grant := env.approveRequest(t, admin, request.Id)
		if strings.TrimSpace(grant.Reference) == "" {
			t.Fatal("grant reference must not be empty")
		}
		refs[grant.Reference] = struct{}{}
	}
	if len(refs) != 3 {
		t.Fatalf("grant references must be distinct, got %v", refs)
	}
}

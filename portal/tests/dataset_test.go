package tests

import (
	"errors"
	"testing"

	"access_portal/portal/schema"
	"access_portal/portal/services"
)

func TestDatasetRoundTrip(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)

	created, err := admin.createDataset(createDatasetBody{
		Name:               "Diabetes Type 2 Genomic Dataset",
		Description:        "Genomic data from 1,500 patients with Type 2 Diabetes.",
		DataType:           "Genomic",
		Source:             "European Biobank",
		AccessRequirements: "Research purpose only, ethical approval required",
		Metadata: schema.DatasetMetadata{
			Quality:    "high",
			SampleSize: 1500,
			Location:   "Europe",
			TimeRange:  "2018-2022",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	fetched, err := admin.getDataset(created.Id)
	if err != nil {
		t.Fatal(err)
	}

	if fetched.Name != created.Name || fetched.Description != created.Description ||
		fetched.DataType != created.DataType || fetched.Source != created.Source ||
		fetched.AccessRequirements != created.AccessRequirements {
		t.Fatalf("dataset fields did not round trip: %+v vs %+v", fetched, created)
	}
	if fetched.Metadata != created.Metadata {
		t.Fatalf("dataset metadata did not round trip: %+v vs %+v", fetched.Metadata, created.Metadata)
	}
}

func TestDatasetCreateIsAdminOnly(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	user := env.newUser(t, "researcher")

	_, err := user.createDataset(createDatasetBody{Name: "Rogue Dataset"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestDatasetNotFound(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)

	if _, err := admin.getDataset(999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestDuplicateDatasetName(t *testing.T) {
	env := setupTestEnv(t, services.Options{})
	admin := env.adminClient(t)

	env.newDataset(t, admin, "dataset-a")

	if _, err := admin.createDataset(createDatasetBody{Name: "dataset-a"}); err == nil {
		t.Fatal("duplicate dataset name should fail")
	}
}

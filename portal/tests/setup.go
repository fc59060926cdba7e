package tests

import (
	"fmt"
	"testing"

	"access_portal/portal/auth"
	"access_portal/portal/schema"
	"access_portal/portal/services"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	api    chi.Router
	db     *gorm.DB
	portal *services.Portal
}

const (
	adminUsername = "admin123"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T, opts services.Options) *testEnv {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%v?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(schema.AllTables()...)
	if err != nil {
		t.Fatal(err)
	}

	jwtManager := auth.NewJwtManager([]byte("test-secret"))
	userAuth := auth.NewBasicIdentityProvider(db, jwtManager)

	portal := services.NewPortal(db, userAuth, opts)
	portal.InitAdmin(adminUsername, adminPassword)

	return &testEnv{api: portal.Routes(), db: db, portal: &portal}
}

func (e *testEnv) newClient() client {
	return client{api: e.api}
}

func (e *testEnv) newUser(t *testing.T, username string) client {
	c := e.newClient()
	user, err := c.signup(username, username+"_password")
	if err != nil {
		t.Fatal(err)
	}

	if err := c.login(username, username+"_password"); err != nil {
		t.Fatal(err)
	}
	if c.userId != user.Id {
		t.Fatalf("login user id %v does not match signup user id %v", c.userId, user.Id)
	}

	return c
}

func (e *testEnv) adminClient(t *testing.T) client {
	c := e.newClient()
	if err := c.login(adminUsername, adminPassword); err != nil {
		t.Fatal(err)
	}
	return c
}

// newDataset registers a dataset through the admin surface.
func (e *testEnv) newDataset(t *testing.T, admin client, name string) schema.Dataset {
	dataset, err := admin.createDataset(createDatasetBody{
		Name:        name,
		Description: "test dataset",
		DataType:    "Genomic",
		Source:      "Test Biobank",
		Metadata: schema.DatasetMetadata{
			Quality:    "high",
			SampleSize: 100,
			Location:   "Europe",
			TimeRange:  "2018-2022",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return dataset
}

// approveRequest drives a request through both committees.
func (e *testEnv) approveRequest(t *testing.T, admin client, requestId uint) *schema.AccessGrant {
	if _, err := admin.recordDecision(requestId, schema.CommitteeDac, true, admin.userId); err != nil {
		t.Fatal(err)
	}
	res, err := admin.recordDecision(requestId, schema.CommitteeNcp, true, admin.userId)
	if err != nil {
		t.Fatal(err)
	}
	if res.Grant == nil {
		t.Fatal("full approval should issue a grant")
	}
	return res.Grant
}

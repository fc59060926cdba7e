package services

import (
	"log/slog"
	"net/http"
	"time"

	"access_portal/portal/auth"
	"access_portal/portal/schema"
	"access_portal/portal/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type DatasetService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *DatasetService) Routes() chi.Router {
	r := chi.NewRouter()

	// Dataset discovery is open, only administrators register new datasets.
	r.Get("/", s.List)
	r.Get("/{dataset_id}", s.GetDataset)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly(s.db))

		r.Post("/", s.CreateDataset)
	})

	return r
}

type datasetListResponse struct {
	Datasets []schema.Dataset `json:"datasets"`
}

func (s *DatasetService) List(w http.ResponseWriter, r *http.Request) {
	var datasets []schema.Dataset
	result := s.db.Find(&datasets)
	if result.Error != nil {
		utils.WriteDomainError(w, schema.NewDbError("listing datasets", result.Error))
		return
	}

	utils.WriteJsonResponse(w, datasetListResponse{Datasets: datasets})
}

func (s *DatasetService) GetDataset(w http.ResponseWriter, r *http.Request) {
	datasetId, err := utils.IdUrlParam(r, "dataset_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	dataset, err := schema.GetDataset(datasetId, s.db)
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJsonResponse(w, dataset)
}

type createDatasetRequest struct {
	Name               string                 `json:"name"`
	Description        string                 `json:"description"`
	DataType           string                 `json:"dataType"`
	Source             string                 `json:"source"`
	AccessRequirements string                 `json:"accessRequirements"`
	Metadata           schema.DatasetMetadata `json:"metadata"`
}

func (s *DatasetService) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var params createDatasetRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		utils.WriteValidationError(w, map[string]string{"name": "name is required"})
		return
	}

	dataset := schema.Dataset{
		Name:               params.Name,
		Description:        params.Description,
		DataType:           params.DataType,
		Source:             params.Source,
		AccessRequirements: params.AccessRequirements,
		Metadata:           params.Metadata,
		DateAdded:          time.Now().UTC(),
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Dataset
		result := txn.Find(&existing, "name = ?", params.Name)
		if result.Error != nil {
			return schema.NewDbError("checking for existing dataset with name", result.Error)
		}
		if result.RowsAffected != 0 {
			return schema.NewDbError("creating dataset", gorm.ErrDuplicatedKey)
		}

		result = txn.Create(&dataset)
		if result.Error != nil {
			return schema.NewDbError("creating dataset entry", result.Error)
		}
		return nil
	})

	if err != nil {
		utils.WriteError(w, http.StatusConflict, err.Error())
		return
	}

	slog.Info("dataset registered", "dataset_id", dataset.Id, "name", dataset.Name)

	utils.WriteJsonCreated(w, dataset)
}

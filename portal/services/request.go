package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"access_portal/portal/auth"
	"access_portal/portal/schema"
	"access_portal/portal/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type RequestService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *RequestService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/", s.SubmitRequest)
	r.Get("/user/{user_id}", s.ListByUser)
	r.Get("/{request_id}", s.GetRequest)
	r.Patch("/{request_id}/status", s.UpdateStatus)

	return r
}

type submitRequestRequest struct {
	UserId                   uint       `json:"userId"`
	DatasetId                uint       `json:"datasetId"`
	Title                    string     `json:"title"`
	Purpose                  string     `json:"purpose"`
	ResearchQuestion         string     `json:"researchQuestion"`
	InstitutionalAffiliation string     `json:"institutionalAffiliation"`
	ExpectedCompletionDate   *time.Time `json:"expectedCompletionDate"`
}

// SubmitRequest creates the data request and its workflow progress row in one
// transaction so a failure cannot leave an orphan request behind.
func (s *RequestService) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var params submitRequestRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	details := map[string]string{}
	if params.Title == "" {
		details["title"] = "title is required"
	}
	if params.Purpose == "" {
		details["purpose"] = "purpose is required"
	}
	if len(details) > 0 {
		utils.WriteValidationError(w, details)
		return
	}

	request := schema.DataRequest{
		UserId:                   params.UserId,
		DatasetId:                params.DatasetId,
		Title:                    params.Title,
		Purpose:                  params.Purpose,
		ResearchQuestion:         params.ResearchQuestion,
		InstitutionalAffiliation: params.InstitutionalAffiliation,
		ExpectedCompletionDate:   params.ExpectedCompletionDate,
		RequestDate:              time.Now().UTC(),
		Status:                   schema.RequestPending,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		userExists, err := schema.UserExists(txn, params.UserId)
		if err != nil {
			return err
		}
		if !userExists {
			return fmt.Errorf("no user with id %v: %w", params.UserId, schema.ErrNotFound)
		}

		datasetExists, err := schema.DatasetExists(txn, params.DatasetId)
		if err != nil {
			return err
		}
		if !datasetExists {
			return fmt.Errorf("no dataset with id %v: %w", params.DatasetId, schema.ErrNotFound)
		}

		result := txn.Create(&request)
		if result.Error != nil {
			return schema.NewDbError("creating data request entry", result.Error)
		}

		progress := schema.WorkflowProgress{
			UserId:               params.UserId,
			DataRequestId:        request.Id,
			CurrentStep:          schema.MinWorkflowStep,
			AuthenticationStatus: schema.PhaseNotStarted,
			DataRequestStatus:    schema.PhaseNotStarted,
			ApprovalStatus:       schema.PhaseNotStarted,
			AnalysisStatus:       schema.PhaseNotStarted,
			ExportStatus:         schema.PhaseNotStarted,
			AccessRevokedStatus:  schema.PhaseNotStarted,
			LastUpdated:          time.Now().UTC(),
		}
		result = txn.Create(&progress)
		if result.Error != nil {
			return schema.NewDbError("creating workflow progress entry", result.Error)
		}

		return nil
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	slog.Info("data request submitted", "request_id", request.Id, "user_id", params.UserId, "dataset_id", params.DatasetId)

	utils.WriteJsonCreated(w, request)
}

type requestListResponse struct {
	Requests []schema.DataRequest `json:"requests"`
}

func (s *RequestService) ListByUser(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.IdUrlParam(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var requests []schema.DataRequest
	result := s.db.Find(&requests, "user_id = ?", userId)
	if result.Error != nil {
		utils.WriteDomainError(w, schema.NewDbError("listing data requests by user", result.Error))
		return
	}

	utils.WriteJsonResponse(w, requestListResponse{Requests: requests})
}

func (s *RequestService) GetRequest(w http.ResponseWriter, r *http.Request) {
	requestId, err := utils.IdUrlParam(r, "request_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	request, err := schema.GetDataRequest(requestId, s.db)
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJsonResponse(w, request)
}

type updateRequestStatusRequest struct {
	Status string `json:"status"`
}

func (s *RequestService) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	requestId, err := utils.IdUrlParam(r, "request_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var params updateRequestStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Status == "" {
		utils.WriteValidationError(w, map[string]string{"status": "status is required"})
		return
	}

	var request schema.DataRequest
	err = s.db.Transaction(func(txn *gorm.DB) error {
		request, err = schema.GetDataRequest(requestId, txn)
		if err != nil {
			return err
		}

		if err := schema.CheckRequestTransition(request.Status, params.Status); err != nil {
			return err
		}

		request.Status = params.Status
		result := txn.Save(&request)
		if result.Error != nil {
			return schema.NewDbError("updating data request status", result.Error)
		}
		return nil
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	slog.Info("data request status updated", "request_id", requestId, "status", params.Status)

	utils.WriteJsonResponse(w, request)
}

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

type ResultService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ResultService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/", s.CreateResult)
	r.Get("/user/{user_id}", s.ListByUser)
	r.Get("/grant/{grant_id}", s.ListByGrant)
	r.Get("/{result_id}", s.GetResult)
	r.Patch("/{result_id}/status", s.UpdateStatus)

	return r
}

type createResultRequest struct {
	GrantId     uint   `json:"grantId"`
	UserId      uint   `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ResultType  string `json:"resultType"`
}

// CreateResult records an analysis output. Results can only be stored inside
// an active grant window.
func (s *ResultService) CreateResult(w http.ResponseWriter, r *http.Request) {
	var params createResultRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Title == "" {
		utils.WriteValidationError(w, map[string]string{"title": "title is required"})
		return
	}

	analysisResult := schema.AnalysisResult{
		GrantId:     params.GrantId,
		UserId:      params.UserId,
		Title:       params.Title,
		Description: params.Description,
		ResultType:  params.ResultType,
		Status:      schema.ResultStored,
		CreatedAt:   time.Now().UTC(),
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if err := expireOverdueGrants(txn); err != nil {
			return err
		}

		grant, err := schema.GetAccessGrant(params.GrantId, txn)
		if err != nil {
			return err
		}
		if grant.Status != schema.GrantActive {
			return fmt.Errorf("cannot store result for grant %v with status '%v': %w",
				grant.Id, grant.Status, schema.ErrInvalidTransition)
		}

		result := txn.Create(&analysisResult)
		if result.Error != nil {
			return schema.NewDbError("creating analysis result entry", result.Error)
		}
		return nil
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	slog.Info("analysis result stored", "result_id", analysisResult.Id, "grant_id", params.GrantId)

	utils.WriteJsonCreated(w, analysisResult)
}

type resultListResponse struct {
	Results []schema.AnalysisResult `json:"results"`
}

func (s *ResultService) ListByUser(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.IdUrlParam(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var results []schema.AnalysisResult
	result := s.db.Find(&results, "user_id = ?", userId)
	if result.Error != nil {
		utils.WriteDomainError(w, schema.NewDbError("listing analysis results by user", result.Error))
		return
	}

	utils.WriteJsonResponse(w, resultListResponse{Results: results})
}

func (s *ResultService) ListByGrant(w http.ResponseWriter, r *http.Request) {
	grantId, err := utils.IdUrlParam(r, "grant_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var results []schema.AnalysisResult
	result := s.db.Find(&results, "grant_id = ?", grantId)
	if result.Error != nil {
		utils.WriteDomainError(w, schema.NewDbError("listing analysis results by grant", result.Error))
		return
	}

	utils.WriteJsonResponse(w, resultListResponse{Results: results})
}

func (s *ResultService) GetResult(w http.ResponseWriter, r *http.Request) {
	resultId, err := utils.IdUrlParam(r, "result_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	analysisResult, err := schema.GetAnalysisResult(resultId, s.db)
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJsonResponse(w, analysisResult)
}

type updateResultStatusRequest struct {
	Status string `json:"status"`
}

func (s *ResultService) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	resultId, err := utils.IdUrlParam(r, "result_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var params updateResultStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Status == "" {
		utils.WriteValidationError(w, map[string]string{"status": "status is required"})
		return
	}

	var analysisResult schema.AnalysisResult
	err = s.db.Transaction(func(txn *gorm.DB) error {
		analysisResult, err = schema.GetAnalysisResult(resultId, txn)
		if err != nil {
			return err
		}

		return advanceResultStatusTx(txn, &analysisResult, params.Status)
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	slog.Info("analysis result status updated", "result_id", resultId, "status", params.Status)

	utils.WriteJsonResponse(w, analysisResult)
}

func advanceResultStatusTx(txn *gorm.DB, analysisResult *schema.AnalysisResult, status string) error {
	if err := schema.CheckResultTransition(analysisResult.Status, status); err != nil {
		return err
	}

	analysisResult.Status = status
	result := txn.Save(analysisResult)
	if result.Error != nil {
		return schema.NewDbError("updating analysis result status", result.Error)
	}
	return nil
}

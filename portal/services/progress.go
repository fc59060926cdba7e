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

type ProgressService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ProgressService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/user/{user_id}", s.ListByUser)
	r.Patch("/{progress_id}/step", s.UpdateStep)
	r.Patch("/{progress_id}/status", s.UpdatePhaseStatus)

	return r
}

type progressListResponse struct {
	Progress []schema.WorkflowProgress `json:"progress"`
}

func (s *ProgressService) ListByUser(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.IdUrlParam(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var progress []schema.WorkflowProgress
	result := s.db.Find(&progress, "user_id = ?", userId)
	if result.Error != nil {
		utils.WriteDomainError(w, schema.NewDbError("listing workflow progress by user", result.Error))
		return
	}

	utils.WriteJsonResponse(w, progressListResponse{Progress: progress})
}

type updateStepRequest struct {
	Step int `json:"step"`
}

func (s *ProgressService) UpdateStep(w http.ResponseWriter, r *http.Request) {
	progressId, err := utils.IdUrlParam(r, "progress_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var params updateStepRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if err := schema.CheckValidStep(params.Step); err != nil {
		utils.WriteValidationError(w, map[string]string{"step": err.Error()})
		return
	}

	var progress schema.WorkflowProgress
	err = s.db.Transaction(func(txn *gorm.DB) error {
		progress, err = schema.GetWorkflowProgress(progressId, txn)
		if err != nil {
			return err
		}

		progress.CurrentStep = params.Step
		progress.LastUpdated = time.Now().UTC()

		result := txn.Save(&progress)
		if result.Error != nil {
			return schema.NewDbError("updating workflow step", result.Error)
		}
		return nil
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	slog.Info("workflow step updated", "progress_id", progressId, "step", params.Step)

	utils.WriteJsonResponse(w, progress)
}

type updatePhaseStatusRequest struct {
	Phase  string `json:"phase"`
	Status string `json:"status"`
}

func (s *ProgressService) UpdatePhaseStatus(w http.ResponseWriter, r *http.Request) {
	progressId, err := utils.IdUrlParam(r, "progress_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var params updatePhaseStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	details := map[string]string{}
	column, ok := schema.PhaseColumns[params.Phase]
	if !ok {
		details["phase"] = "unknown workflow phase"
	}
	if err := schema.CheckValidPhaseStatus(params.Status); err != nil {
		details["status"] = err.Error()
	}
	if len(details) > 0 {
		utils.WriteValidationError(w, details)
		return
	}

	var progress schema.WorkflowProgress
	err = s.db.Transaction(func(txn *gorm.DB) error {
		progress, err = schema.GetWorkflowProgress(progressId, txn)
		if err != nil {
			return err
		}

		result := txn.Model(&progress).Updates(map[string]interface{}{
			column:         params.Status,
			"last_updated": time.Now().UTC(),
		})
		if result.Error != nil {
			return schema.NewDbError("updating workflow phase status", result.Error)
		}

		progress, err = schema.GetWorkflowProgress(progressId, txn)
		return err
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	slog.Info("workflow phase status updated", "progress_id", progressId, "phase", params.Phase, "status", params.Status)

	utils.WriteJsonResponse(w, progress)
}

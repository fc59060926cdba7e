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

// ContentPolicyCheck screens an analysis result before its export may be
// approved. Returning an error records the review as a rejection carrying the
// policy's reason.
type ContentPolicyCheck interface {
	Check(result schema.AnalysisResult, export schema.ExportRequest) error
}

type allowAllPolicy struct{}

func (allowAllPolicy) Check(schema.AnalysisResult, schema.ExportRequest) error {
	return nil
}

type ExportService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	policy   ContentPolicyCheck
}

func (s *ExportService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/", s.SubmitExportRequest)
		r.Get("/user/{user_id}", s.ListByUser)
		r.Get("/result/{result_id}", s.ListByResult)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly(s.db))

		r.Patch("/{export_id}/status", s.Review)
	})

	return r
}

type submitExportRequest struct {
	ResultId        uint   `json:"resultId"`
	UserId          uint   `json:"userId"`
	ExportReason    string `json:"exportReason"`
	PublicationPlan string `json:"publicationPlan"`
}

func (s *ExportService) SubmitExportRequest(w http.ResponseWriter, r *http.Request) {
	var params submitExportRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.ExportReason == "" {
		utils.WriteValidationError(w, map[string]string{"exportReason": "export reason is required"})
		return
	}

	export := schema.ExportRequest{
		ResultId:        params.ResultId,
		UserId:          params.UserId,
		ExportReason:    params.ExportReason,
		PublicationPlan: params.PublicationPlan,
		RequestDate:     time.Now().UTC(),
		Status:          schema.ExportPending,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		analysisResult, err := schema.GetAnalysisResult(params.ResultId, txn)
		if err != nil {
			return err
		}

		if analysisResult.Status == schema.ResultExported {
			return fmt.Errorf("result %v has already been exported: %w", analysisResult.Id, schema.ErrInvalidTransition)
		}

		// The first export request moves the result out of plain storage.
		if analysisResult.Status == schema.ResultStored {
			if err := advanceResultStatusTx(txn, &analysisResult, schema.ResultPendingExport); err != nil {
				return err
			}
		}

		result := txn.Create(&export)
		if result.Error != nil {
			return schema.NewDbError("creating export request entry", result.Error)
		}
		return nil
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	slog.Info("export request submitted", "export_id", export.Id, "result_id", params.ResultId)

	utils.WriteJsonCreated(w, export)
}

type exportListResponse struct {
	Requests []schema.ExportRequest `json:"requests"`
}

func (s *ExportService) ListByUser(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.IdUrlParam(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var exports []schema.ExportRequest
	result := s.db.Find(&exports, "user_id = ?", userId)
	if result.Error != nil {
		utils.WriteDomainError(w, schema.NewDbError("listing export requests by user", result.Error))
		return
	}

	utils.WriteJsonResponse(w, exportListResponse{Requests: exports})
}

func (s *ExportService) ListByResult(w http.ResponseWriter, r *http.Request) {
	resultId, err := utils.IdUrlParam(r, "result_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var exports []schema.ExportRequest
	result := s.db.Find(&exports, "result_id = ?", resultId)
	if result.Error != nil {
		utils.WriteDomainError(w, schema.NewDbError("listing export requests by result", result.Error))
		return
	}

	utils.WriteJsonResponse(w, exportListResponse{Requests: exports})
}

type reviewExportRequest struct {
	Status     string `json:"status"`
	ReviewerId uint   `json:"reviewerId"`
	Comments   string `json:"comments"`
}

// Review records the outcome of output checking. Reviews are terminal: once an
// export request is approved or rejected it cannot be re-reviewed.
func (s *ExportService) Review(w http.ResponseWriter, r *http.Request) {
	exportId, err := utils.IdUrlParam(r, "export_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var params reviewExportRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	details := map[string]string{}
	if params.Status == "" {
		details["status"] = "status is required"
	} else if err := schema.CheckValidExportOutcome(params.Status); err != nil {
		details["status"] = err.Error()
	}
	if params.ReviewerId == 0 {
		details["reviewerId"] = "reviewerId is required"
	}
	if len(details) > 0 {
		utils.WriteValidationError(w, details)
		return
	}

	var export schema.ExportRequest
	err = s.db.Transaction(func(txn *gorm.DB) error {
		export, err = schema.GetExportRequest(exportId, txn)
		if err != nil {
			return err
		}

		if export.Status != schema.ExportPending {
			return fmt.Errorf("export request %v has already been reviewed with status '%v': %w",
				export.Id, export.Status, schema.ErrAlreadyDecided)
		}

		reviewerExists, err := schema.UserExists(txn, params.ReviewerId)
		if err != nil {
			return err
		}
		if !reviewerExists {
			return fmt.Errorf("no reviewer with id %v: %w", params.ReviewerId, schema.ErrNotFound)
		}

		analysisResult, err := schema.GetAnalysisResult(export.ResultId, txn)
		if err != nil {
			return err
		}

		outcome := params.Status
		comments := params.Comments

		if outcome == schema.ExportApproved {
			if policyErr := s.policy.Check(analysisResult, export); policyErr != nil {
				slog.Info("export blocked by content policy", "export_id", export.Id, "reason", policyErr)
				outcome = schema.ExportRejected
				comments = fmt.Sprintf("blocked by content policy: %v", policyErr)
			}
		}

		now := time.Now().UTC()
		export.Status = outcome
		export.ReviewerId = &params.ReviewerId
		export.ReviewComments = comments
		export.ReviewDate = &now

		result := txn.Save(&export)
		if result.Error != nil {
			return schema.NewDbError("updating export request review", result.Error)
		}

		if outcome == schema.ExportApproved {
			return advanceResultStatusTx(txn, &analysisResult, schema.ResultExported)
		}
		return nil
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	slog.Info("export request reviewed", "export_id", exportId, "status", export.Status)

	utils.WriteJsonResponse(w, export)
}

package services

import (
	"errors"
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

// ApprovalService runs the two-phase committee review. DAC reviews first; a
// DAC rejection closes the request without involving NCP, and only a pair of
// approvals approves the request. The final decision, the request status
// change, and the grant issue happen in one transaction.
type ApprovalService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider

	grantDuration time.Duration
}

func (s *ApprovalService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/request/{request_id}", s.ListByRequest)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly(s.db))

		r.Post("/", s.RecordDecision)
	})

	return r
}

type recordDecisionRequest struct {
	RequestId     uint   `json:"requestId"`
	CommitteeType string `json:"committeeType"`
	Approved      bool   `json:"approved"`
	Comments      string `json:"comments"`
	ReviewerId    uint   `json:"reviewerId"`
}

type recordDecisionResponse struct {
	Decision schema.ApprovalDecision `json:"decision"`
	Grant    *schema.AccessGrant     `json:"grant,omitempty"`
}

func (s *ApprovalService) RecordDecision(w http.ResponseWriter, r *http.Request) {
	var params recordDecisionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidCommittee(params.CommitteeType); err != nil {
		utils.WriteValidationError(w, map[string]string{"committeeType": err.Error()})
		return
	}

	decision := schema.ApprovalDecision{
		RequestId:     params.RequestId,
		CommitteeType: params.CommitteeType,
		Approved:      params.Approved,
		Comments:      params.Comments,
		ReviewerId:    params.ReviewerId,
		DecisionDate:  time.Now().UTC(),
	}

	var issuedGrant *schema.AccessGrant

	err := s.db.Transaction(func(txn *gorm.DB) error {
		request, err := schema.GetDataRequest(params.RequestId, txn)
		if err != nil {
			return err
		}

		if request.Status != schema.RequestPending {
			return fmt.Errorf("request %v has already been decided with status '%v': %w",
				request.Id, request.Status, schema.ErrAlreadyDecided)
		}

		reviewerExists, err := schema.UserExists(txn, params.ReviewerId)
		if err != nil {
			return err
		}
		if !reviewerExists {
			return fmt.Errorf("no reviewer with id %v: %w", params.ReviewerId, schema.ErrNotFound)
		}

		dacDecision, err := committeeDecision(txn, params.RequestId, schema.CommitteeDac)
		if err != nil {
			return err
		}

		switch params.CommitteeType {
		case schema.CommitteeDac:
			if dacDecision != nil {
				return fmt.Errorf("DAC has already reviewed request %v: %w", request.Id, schema.ErrAlreadyDecided)
			}
		case schema.CommitteeNcp:
			if dacDecision == nil {
				return fmt.Errorf("NCP review requires a completed DAC review for request %v: %w",
					request.Id, schema.ErrInvalidTransition)
			}
		}

		result := txn.Create(&decision)
		if result.Error != nil {
			return schema.NewDbError("creating approval decision entry", result.Error)
		}

		if !params.Approved {
			return setRequestStatusTx(txn, &request, schema.RequestRejected)
		}

		// A DAC approval alone leaves the request pending for NCP.
		if params.CommitteeType != schema.CommitteeNcp {
			return nil
		}

		if err := setRequestStatusTx(txn, &request, schema.RequestApproved); err != nil {
			return err
		}

		start := time.Now().UTC()
		end := start.Add(s.grantDuration)
		grant, err := createGrantTx(txn, request.Id, request.UserId, request.DatasetId, start, &end)
		if err != nil {
			return err
		}
		issuedGrant = &grant

		return nil
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	slog.Info("approval decision recorded",
		"request_id", params.RequestId, "committee", params.CommitteeType, "approved", params.Approved)
	if issuedGrant != nil {
		slog.Info("request fully approved, grant issued", "request_id", params.RequestId, "grant_id", issuedGrant.Id)
	}

	utils.WriteJsonCreated(w, recordDecisionResponse{Decision: decision, Grant: issuedGrant})
}

func committeeDecision(txn *gorm.DB, requestId uint, committee string) (*schema.ApprovalDecision, error) {
	var decision schema.ApprovalDecision
	result := txn.First(&decision, "request_id = ? AND committee_type = ?", requestId, committee)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, schema.NewDbError("retrieving committee decision", result.Error)
	}
	return &decision, nil
}

func setRequestStatusTx(txn *gorm.DB, request *schema.DataRequest, status string) error {
	if err := schema.CheckRequestTransition(request.Status, status); err != nil {
		return err
	}

	request.Status = status
	result := txn.Save(request)
	if result.Error != nil {
		return schema.NewDbError("updating data request status", result.Error)
	}
	return nil
}

type decisionListResponse struct {
	Decisions []schema.ApprovalDecision `json:"decisions"`
}

func (s *ApprovalService) ListByRequest(w http.ResponseWriter, r *http.Request) {
	requestId, err := utils.IdUrlParam(r, "request_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var decisions []schema.ApprovalDecision
	result := s.db.Find(&decisions, "request_id = ?", requestId)
	if result.Error != nil {
		utils.WriteDomainError(w, schema.NewDbError("listing approval decisions by request", result.Error))
		return
	}

	utils.WriteJsonResponse(w, decisionListResponse{Decisions: decisions})
}

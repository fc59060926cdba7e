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
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GrantService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *GrantService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/user/{user_id}", s.ListByUser)
		r.Get("/user/{user_id}/active", s.ListActive)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly(s.db))

		r.Post("/", s.CreateGrant)
		r.Patch("/{grant_id}/revoke", s.Revoke)
	})

	return r
}

// createGrantTx is shared with the approval service, which issues a grant as
// part of the same transaction that records the final committee decision.
func createGrantTx(txn *gorm.DB, requestId, userId, datasetId uint, startDate time.Time, endDate *time.Time) (schema.AccessGrant, error) {
	request, err := schema.GetDataRequest(requestId, txn)
	if err != nil {
		return schema.AccessGrant{}, err
	}
	if request.Status != schema.RequestApproved {
		return schema.AccessGrant{}, fmt.Errorf("cannot issue grant for request %v with status '%v': %w",
			requestId, request.Status, schema.ErrInvalidTransition)
	}

	if endDate != nil && !endDate.After(startDate) {
		return schema.AccessGrant{}, fmt.Errorf("grant end date must be after start date")
	}

	grant := schema.AccessGrant{
		RequestId: requestId,
		UserId:    userId,
		DatasetId: datasetId,
		Reference: uuid.New().String(),
		StartDate: startDate,
		EndDate:   endDate,
		Status:    schema.GrantActive,
	}

	result := txn.Create(&grant)
	if result.Error != nil {
		return schema.AccessGrant{}, schema.NewDbError("creating access grant entry", result.Error)
	}

	return grant, nil
}

type createGrantRequest struct {
	RequestId uint       `json:"requestId"`
	UserId    uint       `json:"userId"`
	DatasetId uint       `json:"datasetId"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

func (s *GrantService) CreateGrant(w http.ResponseWriter, r *http.Request) {
	var params createGrantRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	startDate := time.Now().UTC()
	if params.StartDate != nil {
		startDate = *params.StartDate
	}

	if params.EndDate != nil && !params.EndDate.After(startDate) {
		utils.WriteValidationError(w, map[string]string{"endDate": "end date must be after start date"})
		return
	}

	var grant schema.AccessGrant
	err := s.db.Transaction(func(txn *gorm.DB) error {
		var err error
		grant, err = createGrantTx(txn, params.RequestId, params.UserId, params.DatasetId, startDate, params.EndDate)
		return err
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	slog.Info("access grant issued", "grant_id", grant.Id, "request_id", grant.RequestId, "user_id", grant.UserId)

	utils.WriteJsonCreated(w, grant)
}

type grantListResponse struct {
	Grants []schema.AccessGrant `json:"grants"`
}

func (s *GrantService) ListByUser(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.IdUrlParam(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var grants []schema.AccessGrant
	result := s.db.Find(&grants, "user_id = ?", userId)
	if result.Error != nil {
		utils.WriteDomainError(w, schema.NewDbError("listing access grants by user", result.Error))
		return
	}

	utils.WriteJsonResponse(w, grantListResponse{Grants: grants})
}

// ListActive applies expiry on read: an active grant whose end date has passed
// is flipped to expired before the listing is returned, so callers never see a
// grant that has already run out.
func (s *GrantService) ListActive(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.IdUrlParam(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var grants []schema.AccessGrant
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := expireOverdueGrants(txn); err != nil {
			return err
		}

		result := txn.Find(&grants, "user_id = ? AND status = ?", userId, schema.GrantActive)
		if result.Error != nil {
			return schema.NewDbError("listing active access grants", result.Error)
		}
		return nil
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJsonResponse(w, grantListResponse{Grants: grants})
}

func expireOverdueGrants(txn *gorm.DB) error {
	result := txn.Model(&schema.AccessGrant{}).
		Where("status = ? AND end_date IS NOT NULL AND end_date < ?", schema.GrantActive, time.Now().UTC()).
		Update("status", schema.GrantExpired)
	if result.Error != nil {
		return schema.NewDbError("expiring overdue access grants", result.Error)
	}
	if result.RowsAffected > 0 {
		slog.Info("expired overdue access grants", "count", result.RowsAffected)
	}
	return nil
}

type revokeGrantRequest struct {
	Reason string `json:"reason"`
}

// Revoke is not idempotent by choice: revoking a grant that is already revoked
// or expired fails so the first recorded reason is never overwritten.
func (s *GrantService) Revoke(w http.ResponseWriter, r *http.Request) {
	grantId, err := utils.IdUrlParam(r, "grant_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var params revokeGrantRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Reason == "" {
		utils.WriteValidationError(w, map[string]string{"reason": "revocation reason is required"})
		return
	}

	var grant schema.AccessGrant
	err = s.db.Transaction(func(txn *gorm.DB) error {
		// A grant whose window has already closed must surface as expired, not
		// get a revocation recorded on top.
		if err := expireOverdueGrants(txn); err != nil {
			return err
		}

		grant, err = schema.GetAccessGrant(grantId, txn)
		if err != nil {
			return err
		}

		if grant.Status != schema.GrantActive {
			return fmt.Errorf("grant %v has status '%v': %w", grantId, grant.Status, schema.ErrAlreadyRevoked)
		}

		now := time.Now().UTC()
		grant.Status = schema.GrantRevoked
		grant.RevokedReason = params.Reason
		grant.RevokedDate = &now

		result := txn.Save(&grant)
		if result.Error != nil {
			return schema.NewDbError("revoking access grant", result.Error)
		}
		return nil
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	slog.Info("access grant revoked", "grant_id", grantId, "reason", params.Reason)

	utils.WriteJsonResponse(w, grant)
}

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

type CommentService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *CommentService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/step/{step_id}", s.ListByStep)
	r.Get("/user/{user_id}", s.ListByUser)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.OptionalAuthMiddleware()...)

		r.Post("/", s.Post)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Patch("/{comment_id}", s.Edit)
		r.Delete("/{comment_id}", s.Remove)
	})

	return r
}

type commentListResponse struct {
	Comments []schema.Comment `json:"comments"`
}

func (s *CommentService) ListByStep(w http.ResponseWriter, r *http.Request) {
	stepId, err := utils.IdUrlParam(r, "step_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var comments []schema.Comment
	result := s.db.Order("created_at asc, id asc").Find(&comments, "step_id = ?", stepId)
	if result.Error != nil {
		utils.WriteDomainError(w, schema.NewDbError("listing comments by step", result.Error))
		return
	}

	utils.WriteJsonResponse(w, commentListResponse{Comments: comments})
}

func (s *CommentService) ListByUser(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.IdUrlParam(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var comments []schema.Comment
	result := s.db.Order("created_at asc, id asc").Find(&comments, "user_id = ?", userId)
	if result.Error != nil {
		utils.WriteDomainError(w, schema.NewDbError("listing comments by user", result.Error))
		return
	}

	utils.WriteJsonResponse(w, commentListResponse{Comments: comments})
}

type postCommentRequest struct {
	StepId      int    `json:"stepId"`
	Content     string `json:"content"`
	UserName    string `json:"userName"`
	UserEmail   string `json:"userEmail"`
	IsAnonymous bool   `json:"isAnonymous"`
}

func (s *CommentService) Post(w http.ResponseWriter, r *http.Request) {
	var params postCommentRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	details := map[string]string{}
	if params.Content == "" {
		details["content"] = "content is required"
	}
	if err := schema.CheckValidStep(params.StepId); err != nil {
		details["stepId"] = err.Error()
	}

	userId := auth.OptionalUserIdFromContext(r)
	if userId == nil && !params.IsAnonymous {
		utils.WriteError(w, http.StatusUnauthorized, "posting without a login requires an anonymous comment")
		return
	}
	if params.IsAnonymous {
		// Anonymous comments carry no owner even when a token is presented.
		userId = nil
		if params.UserName == "" {
			details["userName"] = "a display name is required for anonymous comments"
		}
	}

	if len(details) > 0 {
		utils.WriteValidationError(w, details)
		return
	}

	comment := schema.Comment{
		StepId:      params.StepId,
		UserId:      userId,
		Content:     params.Content,
		UserName:    params.UserName,
		UserEmail:   params.UserEmail,
		IsAnonymous: params.IsAnonymous,
	}

	result := s.db.Create(&comment)
	if result.Error != nil {
		utils.WriteDomainError(w, schema.NewDbError("creating comment entry", result.Error))
		return
	}

	slog.Info("comment posted", "comment_id", comment.Id, "step_id", params.StepId, "anonymous", params.IsAnonymous)

	utils.WriteJsonCreated(w, comment)
}

// checkCommentOwnership is where edit and delete authorization lives. Anonymous
// comments have no owner to check against, so nobody may change them.
func checkCommentOwnership(comment schema.Comment, callerId uint) (ok bool, reason string) {
	if comment.IsAnonymous || comment.UserId == nil {
		return false, "anonymous comments cannot be modified"
	}
	if *comment.UserId != callerId {
		return false, "comments can only be modified by their author"
	}
	return true, ""
}

type editCommentRequest struct {
	Content string `json:"content"`
}

func (s *CommentService) Edit(w http.ResponseWriter, r *http.Request) {
	commentId, err := utils.IdUrlParam(r, "comment_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	callerId, err := auth.UserIdFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var params editCommentRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Content == "" {
		utils.WriteValidationError(w, map[string]string{"content": "content is required"})
		return
	}

	var comment schema.Comment
	var forbidden string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		comment, err = schema.GetComment(commentId, txn)
		if err != nil {
			return err
		}

		if ok, reason := checkCommentOwnership(comment, callerId); !ok {
			forbidden = reason
			return nil
		}

		comment.Content = params.Content
		comment.UpdatedAt = time.Now().UTC()

		result := txn.Save(&comment)
		if result.Error != nil {
			return schema.NewDbError("updating comment", result.Error)
		}
		return nil
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}
	if forbidden != "" {
		utils.WriteError(w, http.StatusForbidden, forbidden)
		return
	}

	slog.Info("comment edited", "comment_id", commentId)

	utils.WriteJsonResponse(w, comment)
}

func (s *CommentService) Remove(w http.ResponseWriter, r *http.Request) {
	commentId, err := utils.IdUrlParam(r, "comment_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	callerId, err := auth.UserIdFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var forbidden string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		comment, err := schema.GetComment(commentId, txn)
		if err != nil {
			return err
		}

		if ok, reason := checkCommentOwnership(comment, callerId); !ok {
			forbidden = reason
			return nil
		}

		result := txn.Delete(&schema.Comment{}, "id = ?", commentId)
		if result.Error != nil {
			return schema.NewDbError("deleting comment", result.Error)
		}
		return nil
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}
	if forbidden != "" {
		utils.WriteError(w, http.StatusForbidden, forbidden)
		return
	}

	slog.Info("comment deleted", "comment_id", commentId)

	w.WriteHeader(http.StatusNoContent)
}

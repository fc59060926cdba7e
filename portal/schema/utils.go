package schema

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

type DbError struct {
	action string
	err    error
}

func NewDbError(action string, err error) error {
	slog.Error("sql error", "action", action, "error", err)
	return DbError{action: action, err: err}
}

func (e DbError) Error() string {
	return fmt.Sprintf("sql error while %v: %v", e.action, e.err)
}

func (e DbError) Unwrap() error {
	return e.err
}

func GetUser(userId uint, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, fmt.Errorf("no user with id %v: %w", userId, ErrNotFound)
		}
		return user, NewDbError("retrieving user by id", result.Error)
	}

	return user, nil
}

func GetDataset(datasetId uint, db *gorm.DB) (Dataset, error) {
	var dataset Dataset

	result := db.First(&dataset, "id = ?", datasetId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return dataset, fmt.Errorf("no dataset with id %v: %w", datasetId, ErrNotFound)
		}
		return dataset, NewDbError("retrieving dataset by id", result.Error)
	}

	return dataset, nil
}

func GetDataRequest(requestId uint, db *gorm.DB) (DataRequest, error) {
	var request DataRequest

	result := db.First(&request, "id = ?", requestId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return request, fmt.Errorf("no data request with id %v: %w", requestId, ErrNotFound)
		}
		return request, NewDbError("retrieving data request by id", result.Error)
	}

	return request, nil
}

func GetAccessGrant(grantId uint, db *gorm.DB) (AccessGrant, error) {
	var grant AccessGrant

	result := db.First(&grant, "id = ?", grantId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return grant, fmt.Errorf("no access grant with id %v: %w", grantId, ErrNotFound)
		}
		return grant, NewDbError("retrieving access grant by id", result.Error)
	}

	return grant, nil
}

func GetAnalysisResult(resultId uint, db *gorm.DB) (AnalysisResult, error) {
	var analysisResult AnalysisResult

	result := db.First(&analysisResult, "id = ?", resultId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return analysisResult, fmt.Errorf("no analysis result with id %v: %w", resultId, ErrNotFound)
		}
		return analysisResult, NewDbError("retrieving analysis result by id", result.Error)
	}

	return analysisResult, nil
}

func GetExportRequest(exportId uint, db *gorm.DB) (ExportRequest, error) {
	var export ExportRequest

	result := db.First(&export, "id = ?", exportId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return export, fmt.Errorf("no export request with id %v: %w", exportId, ErrNotFound)
		}
		return export, NewDbError("retrieving export request by id", result.Error)
	}

	return export, nil
}

func GetWorkflowProgress(progressId uint, db *gorm.DB) (WorkflowProgress, error) {
	var progress WorkflowProgress

	result := db.First(&progress, "id = ?", progressId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return progress, fmt.Errorf("no workflow progress with id %v: %w", progressId, ErrNotFound)
		}
		return progress, NewDbError("retrieving workflow progress by id", result.Error)
	}

	return progress, nil
}

func GetComment(commentId uint, db *gorm.DB) (Comment, error) {
	var comment Comment

	result := db.First(&comment, "id = ?", commentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return comment, fmt.Errorf("no comment with id %v: %w", commentId, ErrNotFound)
		}
		return comment, NewDbError("retrieving comment by id", result.Error)
	}

	return comment, nil
}

func UserExists(db *gorm.DB, userId uint) (bool, error) {
	var user User
	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, NewDbError("checking if user exists", result.Error)
	}
	return true, nil
}

func DatasetExists(db *gorm.DB, datasetId uint) (bool, error) {
	var dataset Dataset
	result := db.First(&dataset, "id = ?", datasetId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, NewDbError("checking if dataset exists", result.Error)
	}
	return true, nil
}

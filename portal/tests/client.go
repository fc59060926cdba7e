package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"access_portal/portal/schema"

	"github.com/go-chi/chi/v5"
)

type client struct {
	api    chi.Router
	token  string
	userId uint
}

var ErrBadRequest = errors.New("bad request")
var ErrUnauthorized = errors.New("unauthorized")
var ErrForbidden = errors.New("forbidden")
var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("conflict")

func statusError(status int, body string) error {
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %v", ErrBadRequest, body)
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return fmt.Errorf("%w: %v", ErrConflict, body)
	default:
		return fmt.Errorf("request failed with status %d and body '%v'", status, body)
	}
}

func call[T any](c *client, method, endpoint string, body interface{}) (T, error) {
	var data T

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return data, fmt.Errorf("json encode error: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, endpoint, reader)
	if c.token != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %v", c.token))
	}
	w := httptest.NewRecorder()
	c.api.ServeHTTP(w, req)

	res := w.Result()
	switch res.StatusCode {
	case http.StatusOK, http.StatusCreated:
		err := json.NewDecoder(res.Body).Decode(&data)
		if err != nil {
			return data, fmt.Errorf("json decode error: %w", err)
		}
		return data, nil
	case http.StatusNoContent:
		return data, nil
	default:
		return data, statusError(res.StatusCode, w.Body.String())
	}
}

type noBody struct{}

func get[T any](c *client, endpoint string) (T, error) {
	return call[T](c, "GET", endpoint, nil)
}

func post[T any](c *client, endpoint string, body interface{}) (T, error) {
	return call[T](c, "POST", endpoint, body)
}

func patch[T any](c *client, endpoint string, body interface{}) (T, error) {
	return call[T](c, "PATCH", endpoint, body)
}

func del(c *client, endpoint string) error {
	_, err := call[noBody](c, "DELETE", endpoint, nil)
	return err
}

type signupBody struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	Institution string `json:"institution"`
	Role        string `json:"role"`
}

func (c *client) signup(username, password string) (schema.User, error) {
	return post[schema.User](c, "/users", signupBody{
		Username:    username,
		Password:    password,
		Institution: "Research Institute",
		Role:        "Researcher",
	})
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResult struct {
	UserId      uint   `json:"userId"`
	AccessToken string `json:"accessToken"`
}

func (c *client) login(username, password string) error {
	res, err := post[loginResult](c, "/users/login", loginBody{Username: username, Password: password})
	if err != nil {
		return err
	}
	c.token = res.AccessToken
	c.userId = res.UserId
	return nil
}

type createDatasetBody struct {
	Name               string                 `json:"name"`
	Description        string                 `json:"description"`
	DataType           string                 `json:"dataType"`
	Source             string                 `json:"source"`
	AccessRequirements string                 `json:"accessRequirements"`
	Metadata           schema.DatasetMetadata `json:"metadata"`
}

func (c *client) createDataset(body createDatasetBody) (schema.Dataset, error) {
	return post[schema.Dataset](c, "/datasets", body)
}

func (c *client) getDataset(id uint) (schema.Dataset, error) {
	return get[schema.Dataset](c, fmt.Sprintf("/datasets/%v", id))
}

type submitRequestBody struct {
	UserId           uint   `json:"userId"`
	DatasetId        uint   `json:"datasetId"`
	Title            string `json:"title"`
	Purpose          string `json:"purpose"`
	ResearchQuestion string `json:"researchQuestion"`
}

func (c *client) submitRequest(datasetId uint, title, purpose string) (schema.DataRequest, error) {
	return post[schema.DataRequest](c, "/data-requests", submitRequestBody{
		UserId:    c.userId,
		DatasetId: datasetId,
		Title:     title,
		Purpose:   purpose,
	})
}

func (c *client) getRequest(id uint) (schema.DataRequest, error) {
	return get[schema.DataRequest](c, fmt.Sprintf("/data-requests/%v", id))
}

type requestList struct {
	Requests []schema.DataRequest `json:"requests"`
}

func (c *client) listRequests(userId uint) ([]schema.DataRequest, error) {
	res, err := get[requestList](c, fmt.Sprintf("/data-requests/user/%v", userId))
	return res.Requests, err
}

func (c *client) updateRequestStatus(id uint, status string) (schema.DataRequest, error) {
	return patch[schema.DataRequest](c, fmt.Sprintf("/data-requests/%v/status", id), map[string]string{"status": status})
}

type decisionBody struct {
	RequestId     uint   `json:"requestId"`
	CommitteeType string `json:"committeeType"`
	Approved      bool   `json:"approved"`
	Comments      string `json:"comments"`
	ReviewerId    uint   `json:"reviewerId"`
}

type decisionResult struct {
	Decision schema.ApprovalDecision `json:"decision"`
	Grant    *schema.AccessGrant     `json:"grant"`
}

func (c *client) recordDecision(requestId uint, committee string, approved bool, reviewerId uint) (decisionResult, error) {
	return post[decisionResult](c, "/approval-decisions", decisionBody{
		RequestId:     requestId,
		CommitteeType: committee,
		Approved:      approved,
		ReviewerId:    reviewerId,
	})
}

type decisionList struct {
	Decisions []schema.ApprovalDecision `json:"decisions"`
}

func (c *client) listDecisions(requestId uint) ([]schema.ApprovalDecision, error) {
	res, err := get[decisionList](c, fmt.Sprintf("/approval-decisions/request/%v", requestId))
	return res.Decisions, err
}

type createGrantBody struct {
	RequestId uint       `json:"requestId"`
	UserId    uint       `json:"userId"`
	DatasetId uint       `json:"datasetId"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

func (c *client) createGrant(body createGrantBody) (schema.AccessGrant, error) {
	return post[schema.AccessGrant](c, "/access-grants", body)
}

type grantList struct {
	Grants []schema.AccessGrant `json:"grants"`
}

func (c *client) listGrants(userId uint) ([]schema.AccessGrant, error) {
	res, err := get[grantList](c, fmt.Sprintf("/access-grants/user/%v", userId))
	return res.Grants, err
}

func (c *client) listActiveGrants(userId uint) ([]schema.AccessGrant, error) {
	res, err := get[grantList](c, fmt.Sprintf("/access-grants/user/%v/active", userId))
	return res.Grants, err
}

func (c *client) revokeGrant(id uint, reason string) (schema.AccessGrant, error) {
	return patch[schema.AccessGrant](c, fmt.Sprintf("/access-grants/%v/revoke", id), map[string]string{"reason": reason})
}

type createResultBody struct {
	GrantId     uint   `json:"grantId"`
	UserId      uint   `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ResultType  string `json:"resultType"`
}

func (c *client) createResult(grantId uint, title, resultType string) (schema.AnalysisResult, error) {
	return post[schema.AnalysisResult](c, "/analysis-results", createResultBody{
		GrantId:    grantId,
		UserId:     c.userId,
		Title:      title,
		ResultType: resultType,
	})
}

func (c *client) getResult(id uint) (schema.AnalysisResult, error) {
	return get[schema.AnalysisResult](c, fmt.Sprintf("/analysis-results/%v", id))
}

type resultList struct {
	Results []schema.AnalysisResult `json:"results"`
}

func (c *client) listResults(userId uint) ([]schema.AnalysisResult, error) {
	res, err := get[resultList](c, fmt.Sprintf("/analysis-results/user/%v", userId))
	return res.Results, err
}

func (c *client) listResultsByGrant(grantId uint) ([]schema.AnalysisResult, error) {
	res, err := get[resultList](c, fmt.Sprintf("/analysis-results/grant/%v", grantId))
	return res.Results, err
}

func (c *client) updateResultStatus(id uint, status string) (schema.AnalysisResult, error) {
	return patch[schema.AnalysisResult](c, fmt.Sprintf("/analysis-results/%v/status", id), map[string]string{"status": status})
}

type exportBody struct {
	ResultId        uint   `json:"resultId"`
	UserId          uint   `json:"userId"`
	ExportReason    string `json:"exportReason"`
	PublicationPlan string `json:"publicationPlan"`
}

func (c *client) submitExport(resultId uint, reason string) (schema.ExportRequest, error) {
	return post[schema.ExportRequest](c, "/export-requests", exportBody{
		ResultId:     resultId,
		UserId:       c.userId,
		ExportReason: reason,
	})
}

type exportList struct {
	Requests []schema.ExportRequest `json:"requests"`
}

func (c *client) listExports(userId uint) ([]schema.ExportRequest, error) {
	res, err := get[exportList](c, fmt.Sprintf("/export-requests/user/%v", userId))
	return res.Requests, err
}

type reviewBody struct {
	Status     string `json:"status"`
	ReviewerId uint   `json:"reviewerId"`
	Comments   string `json:"comments"`
}

func (c *client) reviewExport(id uint, status string, reviewerId uint) (schema.ExportRequest, error) {
	return patch[schema.ExportRequest](c, fmt.Sprintf("/export-requests/%v/status", id), reviewBody{
		Status:     status,
		ReviewerId: reviewerId,
	})
}

type progressList struct {
	Progress []schema.WorkflowProgress `json:"progress"`
}

func (c *client) listProgress(userId uint) ([]schema.WorkflowProgress, error) {
	res, err := get[progressList](c, fmt.Sprintf("/workflow-progress/user/%v", userId))
	return res.Progress, err
}

func (c *client) updateProgressStep(id uint, step int) (schema.WorkflowProgress, error) {
	return patch[schema.WorkflowProgress](c, fmt.Sprintf("/workflow-progress/%v/step", id), map[string]int{"step": step})
}

func (c *client) updateProgressPhase(id uint, phase, status string) (schema.WorkflowProgress, error) {
	return patch[schema.WorkflowProgress](c, fmt.Sprintf("/workflow-progress/%v/status", id), map[string]string{
		"phase":  phase,
		"status": status,
	})
}

type commentBody struct {
	StepId      int    `json:"stepId"`
	Content     string `json:"content"`
	UserName    string `json:"userName"`
	UserEmail   string `json:"userEmail"`
	IsAnonymous bool   `json:"isAnonymous"`
}

func (c *client) postComment(body commentBody) (schema.Comment, error) {
	return post[schema.Comment](c, "/comments", body)
}

type commentList struct {
	Comments []schema.Comment `json:"comments"`
}

func (c *client) listComments(stepId int) ([]schema.Comment, error) {
	res, err := get[commentList](c, fmt.Sprintf("/comments/step/%v", stepId))
	return res.Comments, err
}

func (c *client) editComment(id uint, content string) (schema.Comment, error) {
	return patch[schema.Comment](c, fmt.Sprintf("/comments/%v", id), map[string]string{"content": content})
}

func (c *client) deleteComment(id uint) error {
	return del(c, fmt.Sprintf("/comments/%v", id))
}

package services

import (
	"net/http"

	"access_portal/portal/utils"
)

type WorkflowStep struct {
	Id          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Details     string `json:"details"`
}

// The seven phases are a fixed enumeration, not stored records. Comments and
// workflow progress reference them by id.
var workflowSteps = []WorkflowStep{
	{
		Id:          1,
		Title:       "Data Discovery",
		Description: "Search and identify desired datasets using the portal catalog.",
		Details:     "Researchers identify relevant datasets by searching the catalog metadata by data type, source, and population criteria.",
	},
	{
		Id:          2,
		Title:       "Authentication",
		Description: "Verify identity before requesting datasets.",
		Details:     "Identity is validated before dataset requests can be submitted, preventing unauthorized access to the request pipeline.",
	},
	{
		Id:          3,
		Title:       "Data Request",
		Description: "Submit a dataset application with purpose and research question.",
		Details:     "Authenticated researchers submit applications stating the title, purpose, and research question for the requested dataset.",
	},
	{
		Id:          4,
		Title:       "Approval Committee",
		Description: "Review by DAC and NCP committees.",
		Details:     "Applications pass a two-stage review: the data access committee (DAC) evaluates scientific and ethical merit, then the national compliance panel (NCP) reviews regulatory fit. A DAC rejection ends the review.",
	},
	{
		Id:          5,
		Title:       "Data Analysis",
		Description: "Perform research within the trusted research environment.",
		Details:     "Approved researchers analyze data for the duration of their grant inside the trusted research environment; data never leaves it.",
	},
	{
		Id:          6,
		Title:       "Result Exports",
		Description: "Request export of analysis results under output review.",
		Details:     "Raw data cannot be downloaded. Analysis results are stored in trusted storage and may leave only through a reviewed export request.",
	},
	{
		Id:          7,
		Title:       "Access Revoked",
		Description: "Access termination due to violations, completion, or expiry.",
		Details:     "Access ends when a grant is revoked for cause, when the researcher finishes their work, or when the grant window runs out.",
	},
}

type workflowStepsResponse struct {
	Steps []WorkflowStep `json:"steps"`
}

func WorkflowStepsHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJsonResponse(w, workflowStepsResponse{Steps: workflowSteps})
}

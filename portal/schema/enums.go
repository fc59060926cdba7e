package schema

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("record not found")
var ErrInvalidTransition = errors.New("invalid status transition")
var ErrAlreadyRevoked = errors.New("grant is no longer active")
var ErrAlreadyDecided = errors.New("decision has already been recorded")

const (
	RequestPending   = "pending"
	RequestApproved  = "approved"
	RequestRejected  = "rejected"
	RequestWithdrawn = "withdrawn"
)

// Requests leave "pending" exactly once and never return.
var requestTransitions = map[string][]string{
	RequestPending: {RequestApproved, RequestRejected, RequestWithdrawn},
}

func CheckRequestTransition(from, to string) error {
	for _, allowed := range requestTransitions[from] {
		if to == allowed {
			return nil
		}
	}
	return fmt.Errorf("data request cannot move from '%v' to '%v': %w", from, to, ErrInvalidTransition)
}

const (
	CommitteeDac = "DAC"
	CommitteeNcp = "NCP"
)

func CheckValidCommittee(committee string) error {
	if committee == CommitteeDac || committee == CommitteeNcp {
		return nil
	}
	return fmt.Errorf("invalid committee type '%v', must be '%v' or '%v'", committee, CommitteeDac, CommitteeNcp)
}

const (
	GrantActive  = "active"
	GrantRevoked = "revoked"
	GrantExpired = "expired"
)

const (
	ResultStored        = "stored"
	ResultPendingExport = "pending_export"
	ResultExported      = "exported"
)

var resultStatusOrder = map[string]int{
	ResultStored:        0,
	ResultPendingExport: 1,
	ResultExported:      2,
}

// Result statuses advance one step at a time: stored -> pending_export ->
// exported. Skipping pending_export would sidestep the export review.
func CheckResultTransition(from, to string) error {
	toRank, ok := resultStatusOrder[to]
	if !ok {
		return fmt.Errorf("invalid analysis result status '%v': %w", to, ErrInvalidTransition)
	}
	if toRank != resultStatusOrder[from]+1 {
		return fmt.Errorf("analysis result cannot move from '%v' to '%v': %w", from, to, ErrInvalidTransition)
	}
	return nil
}

const (
	ExportPending  = "pending"
	ExportApproved = "approved"
	ExportRejected = "rejected"
)

func CheckValidExportOutcome(status string) error {
	if status == ExportApproved || status == ExportRejected {
		return nil
	}
	return fmt.Errorf("invalid export review outcome '%v', must be '%v' or '%v'", status, ExportApproved, ExportRejected)
}

const (
	PhaseNotStarted = "not_started"
	PhaseInProgress = "in_progress"
	PhaseCompleted  = "completed"
	PhaseRejected   = "rejected"
)

func CheckValidPhaseStatus(status string) error {
	if status == PhaseNotStarted || status == PhaseInProgress || status == PhaseCompleted || status == PhaseRejected {
		return nil
	}
	return fmt.Errorf("invalid phase status '%v'", status)
}

const (
	PhaseAuthentication = "authentication"
	PhaseDataRequest    = "data_request"
	PhaseApproval       = "approval"
	PhaseAnalysis       = "analysis"
	PhaseExport         = "export"
	PhaseAccessRevoked  = "access_revoked"
)

// Maps phase names from the API surface onto workflow progress columns.
var PhaseColumns = map[string]string{
	PhaseAuthentication: "authentication_status",
	PhaseDataRequest:    "data_request_status",
	PhaseApproval:       "approval_status",
	PhaseAnalysis:       "analysis_status",
	PhaseExport:         "export_status",
	PhaseAccessRevoked:  "access_revoked_status",
}

const (
	MinWorkflowStep = 1
	MaxWorkflowStep = 7
)

func CheckValidStep(step int) error {
	if step < MinWorkflowStep || step > MaxWorkflowStep {
		return fmt.Errorf("invalid workflow step %v, must be between %v and %v", step, MinWorkflowStep, MaxWorkflowStep)
	}
	return nil
}

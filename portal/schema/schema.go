package schema

import "time"

type User struct {
	Id uint `gorm:"primaryKey" json:"id"`

	Username string `gorm:"uniqueIndex" json:"username"`
	Password []byte `json:"-"`

	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Institution string `json:"institution"`
	Role        string `json:"role"`

	IsAdmin bool `json:"isAdmin"`

	CreatedAt time.Time `json:"createdAt"`
}

type DatasetMetadata struct {
	Quality    string `json:"quality" yaml:"quality"`
	SampleSize int    `json:"sampleSize" yaml:"sample_size"`
	Location   string `json:"location" yaml:"location"`
	TimeRange  string `json:"timeRange" yaml:"time_range"`
}

type Dataset struct {
	Id uint `gorm:"primaryKey" json:"id"`

	Name               string `gorm:"uniqueIndex" json:"name"`
	Description        string `json:"description"`
	DataType           string `json:"dataType"`
	Source             string `json:"source"`
	AccessRequirements string `json:"accessRequirements"`

	Metadata DatasetMetadata `gorm:"serializer:json" json:"metadata"`

	DateAdded time.Time `json:"dateAdded"`
}

type DataRequest struct {
	Id uint `gorm:"primaryKey" json:"id"`

	UserId uint  `json:"userId"`
	User   *User `json:"-"`

	DatasetId uint     `json:"datasetId"`
	Dataset   *Dataset `json:"-"`

	Title                    string     `json:"title"`
	Purpose                  string     `json:"purpose"`
	ResearchQuestion         string     `json:"researchQuestion"`
	InstitutionalAffiliation string     `json:"institutionalAffiliation"`
	ExpectedCompletionDate   *time.Time `json:"expectedCompletionDate"`

	RequestDate time.Time `json:"requestDate"`
	Status      string    `json:"status"`
}

type ApprovalDecision struct {
	Id uint `gorm:"primaryKey" json:"id"`

	RequestId uint         `json:"requestId"`
	Request   *DataRequest `json:"-"`

	CommitteeType string `json:"committeeType"`
	Approved      bool   `json:"approved"`
	Comments      string `json:"comments"`

	ReviewerId uint  `json:"reviewerId"`
	Reviewer   *User `json:"-"`

	DecisionDate time.Time `json:"decisionDate"`
}

type AccessGrant struct {
	Id uint `gorm:"primaryKey" json:"id"`

	RequestId uint         `json:"requestId"`
	Request   *DataRequest `json:"-"`

	UserId uint  `json:"userId"`
	User   *User `json:"-"`

	DatasetId uint     `json:"datasetId"`
	Dataset   *Dataset `json:"-"`

	// Opaque handle the analysis environment is keyed by.
	Reference string `gorm:"uniqueIndex" json:"reference"`

	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`

	Status        string     `json:"status"`
	RevokedReason string     `json:"revokedReason"`
	RevokedDate   *time.Time `json:"revokedDate"`
}

type AnalysisResult struct {
	Id uint `gorm:"primaryKey" json:"id"`

	GrantId uint         `json:"grantId"`
	Grant   *AccessGrant `json:"-"`

	UserId uint  `json:"userId"`
	User   *User `json:"-"`

	Title       string `json:"title"`
	Description string `json:"description"`
	ResultType  string `json:"resultType"`
	Status      string `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
}

type ExportRequest struct {
	Id uint `gorm:"primaryKey" json:"id"`

	ResultId uint            `json:"resultId"`
	Result   *AnalysisResult `json:"-"`

	UserId uint  `json:"userId"`
	User   *User `json:"-"`

	ExportReason    string `json:"exportReason"`
	PublicationPlan string `json:"publicationPlan"`

	RequestDate time.Time `json:"requestDate"`
	Status      string    `json:"status"`

	ReviewerId     *uint      `json:"reviewerId"`
	Reviewer       *User      `json:"-"`
	ReviewComments string     `json:"reviewComments"`
	ReviewDate     *time.Time `json:"reviewDate"`
}

type WorkflowProgress struct {
	Id uint `gorm:"primaryKey" json:"id"`

	UserId uint  `json:"userId"`
	User   *User `json:"-"`

	DataRequestId uint         `json:"dataRequestId"`
	DataRequest   *DataRequest `json:"-"`

	CurrentStep int `json:"currentStep"`

	AuthenticationStatus string `json:"authenticationStatus"`
	DataRequestStatus    string `json:"dataRequestStatus"`
	ApprovalStatus       string `json:"approvalStatus"`
	AnalysisStatus       string `json:"analysisStatus"`
	ExportStatus         string `json:"exportStatus"`
	AccessRevokedStatus  string `json:"accessRevokedStatus"`

	LastUpdated time.Time `json:"lastUpdated"`
}

type Comment struct {
	Id uint `gorm:"primaryKey" json:"id"`

	StepId int `json:"stepId"`

	UserId *uint `json:"userId"`
	User   *User `gorm:"constraint:OnDelete:CASCADE;" json:"-"`

	Content string `json:"content"`

	UserName    string `json:"userName"`
	UserEmail   string `json:"userEmail"`
	IsAnonymous bool   `json:"isAnonymous"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func AllTables() []interface{} {
	return []interface{}{
		&User{}, &Dataset{}, &DataRequest{}, &ApprovalDecision{}, &AccessGrant{},
		&AnalysisResult{}, &ExportRequest{}, &WorkflowProgress{}, &Comment{},
	}
}

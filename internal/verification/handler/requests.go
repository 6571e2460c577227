package handler

import (
	"net/mail"
	"strings"
	"time"

	"carecheck/internal/verification/models"
	"carecheck/internal/verification/service"
	dErrors "carecheck/pkg/domain-errors"
)

const maxDocuments = 5

type DocumentRequest struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type,omitempty"`
}

func documentRefs(docs []DocumentRequest) ([]models.DocumentRef, error) {
	if len(docs) > maxDocuments {
		return nil, dErrors.New(dErrors.CodeValidation, "too many documents")
	}
	refs := make([]models.DocumentRef, 0, len(docs))
	for _, d := range docs {
		key := strings.TrimSpace(d.Key)
		if key == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "document key is required")
		}
		refs = append(refs, models.DocumentRef{Key: key, ContentType: strings.TrimSpace(d.ContentType)})
	}
	return refs, nil
}

type SubmitIdentityRequest struct {
	Surname         string            `json:"surname"`
	GivenNames      string            `json:"given_names"`
	DateOfBirth     string            `json:"date_of_birth"`
	PassportCountry string            `json:"passport_country"`
	ContactEmail    string            `json:"contact_email"`
	Documents       []DocumentRequest `json:"documents"`

	refs []models.DocumentRef
}

// Validate trims input and checks shape. Business rules live in the service.
func (r *SubmitIdentityRequest) Validate() error {
	r.Surname = strings.TrimSpace(r.Surname)
	r.GivenNames = strings.TrimSpace(r.GivenNames)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.PassportCountry = strings.ToUpper(strings.TrimSpace(r.PassportCountry))
	r.ContactEmail = strings.TrimSpace(r.ContactEmail)
	if r.ContactEmail != "" {
		if _, err := mail.ParseAddress(r.ContactEmail); err != nil {
			return dErrors.New(dErrors.CodeValidation, "contact_email is not a valid address")
		}
	}
	refs, err := documentRefs(r.Documents)
	if err != nil {
		return err
	}
	r.refs = refs
	return nil
}

func (r *SubmitIdentityRequest) submission() service.IdentitySubmission {
	return service.IdentitySubmission{
		ContactEmail: r.ContactEmail,
		Declared: models.IdentityDeclared{
			Surname:         r.Surname,
			GivenNames:      r.GivenNames,
			DateOfBirth:     r.DateOfBirth,
			PassportCountry: r.PassportCountry,
		},
		Documents: r.refs,
	}
}

type SubmitWWCCRequest struct {
	Method      string            `json:"method"`
	Number      string            `json:"number"`
	Expiry      string            `json:"expiry"`
	FamilyName  string            `json:"family_name"`
	GivenNames  string            `json:"given_names"`
	DateOfBirth string            `json:"date_of_birth"`
	Documents   []DocumentRequest `json:"documents"`

	method models.WWCCMethod
	refs   []models.DocumentRef
}

func (r *SubmitWWCCRequest) Validate() error {
	method, err := models.ParseWWCCMethod(strings.TrimSpace(r.Method))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "method must be one of: grant_email, screenshot, manual_entry")
	}
	r.method = method
	r.Number = strings.TrimSpace(r.Number)
	r.Expiry = strings.TrimSpace(r.Expiry)
	r.FamilyName = strings.TrimSpace(r.FamilyName)
	r.GivenNames = strings.TrimSpace(r.GivenNames)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	refs, err := documentRefs(r.Documents)
	if err != nil {
		return err
	}
	r.refs = refs
	return nil
}

func (r *SubmitWWCCRequest) submission() service.WWCCSubmission {
	return service.WWCCSubmission{
		Declared: models.WWCCDeclared{
			Method:      r.method,
			Number:      r.Number,
			Expiry:      r.Expiry,
			FamilyName:  r.FamilyName,
			GivenNames:  r.GivenNames,
			DateOfBirth: r.DateOfBirth,
		},
		Documents: r.refs,
	}
}

// ReasonRequest carries the justification an admin rejection must give.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

func (r *ReasonRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if len(r.Reason) > 1000 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 1000 characters")
	}
	return nil
}

type SectionResponse struct {
	Status          string     `json:"status"`
	StatusAt        *time.Time `json:"status_at,omitempty"`
	Issues          []string   `json:"issues,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

type OCGResponse struct {
	ResultStatus string `json:"result_status"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
	VerifiedAt   string `json:"verified_at,omitempty"`
}

type StatusResponse struct {
	VerificationID     string           `json:"verification_id,omitempty"`
	VerificationStatus int              `json:"verification_status"`
	StatusName         string           `json:"status_name"`
	Identity           *SectionResponse `json:"identity,omitempty"`
	WWCC               *SectionResponse `json:"wwcc,omitempty"`
	CrossCheck         *SectionResponse `json:"cross_check,omitempty"`
	OCG                *OCGResponse     `json:"ocg,omitempty"`
	UpdatedAt          *time.Time       `json:"updated_at,omitempty"`
}

func toStatusResponse(rec *models.Record) StatusResponse {
	if rec == nil {
		return StatusResponse{
			VerificationStatus: models.OverallNotStarted.Code(),
			StatusName:         models.OverallNotStarted.Name(),
		}
	}
	overall := rec.OverallStatus()
	resp := StatusResponse{
		VerificationID:     rec.ID.String(),
		VerificationStatus: overall.Code(),
		StatusName:         overall.Name(),
		Identity:           section(string(rec.Identity.Status), rec.Identity.StatusAt, rec.Identity.Issues, rec.Identity.RejectionReason),
		WWCC:               section(string(rec.WWCC.Status), rec.WWCC.StatusAt, rec.WWCC.Issues, rec.WWCC.RejectionReason),
		CrossCheck:         section(string(rec.CrossCheck.Status), rec.CrossCheck.StatusAt, rec.CrossCheck.Issues, ""),
		UpdatedAt:          timePtr(rec.UpdatedAt),
	}
	if ocg := rec.WWCC.OCG; ocg != nil {
		resp.OCG = &OCGResponse{
			ResultStatus: ocg.ResultStatus,
			ExpiryDate:   ocg.ExpiryDate,
			VerifiedAt:   ocg.VerifiedAt,
		}
	}
	return resp
}

func section(status string, at time.Time, issues []string, reason string) *SectionResponse {
	return &SectionResponse{Status: status, StatusAt: timePtr(at), Issues: issues, RejectionReason: reason}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type IngestResponse struct {
	EmployerID string          `json:"employer_id"`
	Applied    []AppliedResult `json:"applied"`
	Unmatched  []string        `json:"unmatched"`
	Ignored    []string        `json:"ignored"`
}

type AppliedResult struct {
	VerificationID  string `json:"verification_id"`
	ReferenceNumber string `json:"reference_number"`
	ResultStatus    string `json:"result_status"`
	WWCCStatus      string `json:"wwcc_status"`
}

func toIngestResponse(s *service.IngestSummary) IngestResponse {
	resp := IngestResponse{
		EmployerID: s.EmployerID,
		Applied:    make([]AppliedResult, 0, len(s.Applied)),
		Unmatched:  make([]string, 0, len(s.Unmatched)),
		Ignored:    make([]string, 0, len(s.Ignored)),
	}
	for _, a := range s.Applied {
		resp.Applied = append(resp.Applied, AppliedResult{
			VerificationID:  a.VerificationID.String(),
			ReferenceNumber: a.ReferenceNumber,
			ResultStatus:    a.ResultStatus,
			WWCCStatus:      string(a.Status),
		})
	}
	for _, r := range s.Unmatched {
		resp.Unmatched = append(resp.Unmatched, r.ReferenceNumber)
	}
	for _, r := range s.Ignored {
		resp.Ignored = append(resp.Ignored, r.ReferenceNumber)
	}
	return resp
}

package models

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/applysync/internal/status"
)

// Field limits shared by payload validation and the schema boundary.
const (
	MaxCompanyLen     = 200
	MaxJobTitleLen    = 200
	MaxDescriptionLen = 10000
	MaxNoteLen        = 5000
)

// Application is a cached copy of a server-owned application record.
type Application struct {
	ID             string      `json:"application_id"`
	Company        string      `json:"company"`
	JobTitle       string      `json:"job_title,omitempty"`
	JobDescription string      `json:"job_description,omitempty"`
	Status         status.Wire `json:"status,omitempty"`
	AppliedDate    *Date       `json:"applied_date,omitempty"`
	ResumeID       string      `json:"resume_id,omitempty"`
	CVID           string      `json:"cv_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Validate checks a decoded record before it enters the store.
func (a Application) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.ID, validation.Required),
		validation.Field(&a.Company, validation.Required, validation.RuneLength(0, MaxCompanyLen)),
		validation.Field(&a.JobDescription, validation.RuneLength(0, MaxDescriptionLen)),
		validation.Field(&a.Status, validation.In(wireValues()...)),
	)
}

// Clone returns a deep copy of a.
func (a Application) Clone() Application {
	if a.AppliedDate != nil {
		d := *a.AppliedDate
		a.AppliedDate = &d
	}
	return a
}

// CreateApplication is the payload for creating an application.
type CreateApplication struct {
	Company        string      `json:"company"`
	JobTitle       string      `json:"job_title,omitempty"`
	JobDescription string      `json:"job_description,omitempty"`
	Status         status.Wire `json:"status,omitempty"`
	AppliedDate    *Date       `json:"applied_date,omitempty"`
	ResumeID       string      `json:"resume_id,omitempty"`
	CVID           string      `json:"cv_id,omitempty"`
}

// Normalize trims free-text fields.
func (c CreateApplication) Normalize() CreateApplication {
	c.Company = strings.TrimSpace(c.Company)
	c.JobTitle = strings.TrimSpace(c.JobTitle)
	c.JobDescription = strings.TrimSpace(c.JobDescription)
	return c
}

// Validate checks the payload. Call Normalize first so whitespace-only
// companies are rejected.
func (c CreateApplication) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Company, validation.Required.Error("company is required"), validation.RuneLength(0, MaxCompanyLen)),
		validation.Field(&c.JobTitle, validation.RuneLength(0, MaxJobTitleLen)),
		validation.Field(&c.JobDescription, validation.RuneLength(0, MaxDescriptionLen)),
		validation.Field(&c.Status, validation.In(wireValues()...)),
	)
}

// Placeholder builds the optimistic record shown while the create is in flight.
func (c CreateApplication) Placeholder(id string, now time.Time) Application {
	return Application{
		ID:             id,
		Company:        c.Company,
		JobTitle:       c.JobTitle,
		JobDescription: c.JobDescription,
		Status:         c.Status,
		AppliedDate:    c.AppliedDate,
		ResumeID:       c.ResumeID,
		CVID:           c.CVID,
		CreatedAt:      now,
	}
}

// ApplicationPatch is a partial update. Nil fields are left untouched and
// omitted from the request body.
type ApplicationPatch struct {
	Company        *string      `json:"company,omitempty"`
	JobTitle       *string      `json:"job_title,omitempty"`
	JobDescription *string      `json:"job_description,omitempty"`
	Status         *status.Wire `json:"status,omitempty"`
	AppliedDate    *Date        `json:"applied_date,omitempty"`
	ResumeID       *string      `json:"resume_id,omitempty"`
	CVID           *string      `json:"cv_id,omitempty"`
}

// Validate checks the set fields of the patch.
func (p ApplicationPatch) Validate() error {
	if p.Company != nil && strings.TrimSpace(*p.Company) == "" {
		return validation.Errors{"company": validation.NewError("validation_required", "company is required")}
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Company, validation.RuneLength(0, MaxCompanyLen)),
		validation.Field(&p.JobTitle, validation.RuneLength(0, MaxJobTitleLen)),
		validation.Field(&p.JobDescription, validation.RuneLength(0, MaxDescriptionLen)),
		validation.Field(&p.Status, validation.In(wireValues()...)),
	)
}

// IsEmpty reports whether no field is set.
func (p ApplicationPatch) IsEmpty() bool {
	return p == ApplicationPatch{}
}

// Diff returns the subset of p whose values differ from cur.
func (p ApplicationPatch) Diff(cur Application) ApplicationPatch {
	var out ApplicationPatch
	if p.Company != nil && *p.Company != cur.Company {
		out.Company = p.Company
	}
	if p.JobTitle != nil && *p.JobTitle != cur.JobTitle {
		out.JobTitle = p.JobTitle
	}
	if p.JobDescription != nil && *p.JobDescription != cur.JobDescription {
		out.JobDescription = p.JobDescription
	}
	if p.Status != nil && *p.Status != cur.Status {
		out.Status = p.Status
	}
	if p.AppliedDate != nil && (cur.AppliedDate == nil || *p.AppliedDate != *cur.AppliedDate) {
		out.AppliedDate = p.AppliedDate
	}
	if p.ResumeID != nil && *p.ResumeID != cur.ResumeID {
		out.ResumeID = p.ResumeID
	}
	if p.CVID != nil && *p.CVID != cur.CVID {
		out.CVID = p.CVID
	}
	return out
}

// Apply returns a copy of a with the set fields of p written over it.
func (p ApplicationPatch) Apply(a Application) Application {
	a = a.Clone()
	if p.Company != nil {
		a.Company = *p.Company
	}
	if p.JobTitle != nil {
		a.JobTitle = *p.JobTitle
	}
	if p.JobDescription != nil {
		a.JobDescription = *p.JobDescription
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.AppliedDate != nil {
		d := *p.AppliedDate
		a.AppliedDate = &d
	}
	if p.ResumeID != nil {
		a.ResumeID = *p.ResumeID
	}
	if p.CVID != nil {
		a.CVID = *p.CVID
	}
	return a
}

// BulkMoveRequest is the body of POST /applications/bulk-move.
type BulkMoveRequest struct {
	IDs    []string    `json:"ids"`
	Status status.Wire `json:"status"`
}

// BulkDeleteRequest is the body of POST /applications/bulk-delete.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkResult is the server response to a bulk endpoint.
type BulkResult struct {
	Requested int `json:"requested_count"`
	Updated   int `json:"updated_count,omitempty"`
	Deleted   int `json:"deleted_count,omitempty"`
}

func wireValues() []interface{} {
	all := status.AllWire()
	out := make([]interface{}, len(all))
	for i, w := range all {
		out[i] = w
	}
	return out
}

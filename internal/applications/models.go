// Package applications handles membership applications: public submission
// by individuals and firms, and review by LACPA staff.
package applications

import (
	"time"

	"github.com/lib/pq"
)

type Kind string

const (
	KindIndividual Kind = "individual"
	KindFirm       Kind = "firm"
)

func (k Kind) Valid() bool { return k == KindIndividual || k == KindFirm }

type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
)

// transitions lists where each status may move next. Approved and rejected
// are final.
var transitions = map[Status][]Status{
	StatusPending:     {StatusUnderReview, StatusApproved, StatusRejected},
	StatusUnderReview: {StatusPending, StatusApproved, StatusRejected},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (s Status) CanMoveTo(next Status) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Open reports whether the application still awaits a decision.
func (s Status) Open() bool { return s == StatusPending || s == StatusUnderReview }

// Review is the workflow state shared by both application kinds.
type Review struct {
	Status      Status     `gorm:"type:text;not null;default:'pending';index" json:"status"`
	SubmittedAt time.Time  `gorm:"not null" json:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  *string    `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewNotes string     `json:"review_notes,omitempty"`
}

type Address struct {
	Street     string `gorm:"not null" json:"street" validate:"required,max=200"`
	City       string `gorm:"not null" json:"city" validate:"required,max=100"`
	District   string `json:"district" validate:"max=100"`
	Country    string `gorm:"not null" json:"country" validate:"required,max=100"`
	PostalCode string `json:"postal_code,omitempty" validate:"max=20"`
}

type IndividualApplication struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName   string `gorm:"not null" json:"first_name" validate:"required,max=100"`
	MiddleName  string `json:"middle_name,omitempty" validate:"max=100"`
	LastName    string `gorm:"not null" json:"last_name" validate:"required,max=100"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Nationality string `json:"nationality" validate:"required,max=100"`

	Email       string `gorm:"not null" json:"email" validate:"required,email,max=254"`
	Phone       string `gorm:"not null" json:"phone" validate:"required,max=32"`
	MobilePhone string `json:"mobile_phone,omitempty" validate:"max=32"`

	Address `gorm:"embedded"`

	ProfessionalTitle string         `json:"professional_title" validate:"required,max=100"`
	Qualifications    pq.StringArray `gorm:"type:text[]" json:"qualifications" validate:"max=20,dive,required,max=200"`
	YearsOfExperience int            `json:"years_of_experience" validate:"gte=0,lte=70"`
	CurrentEmployer   string         `json:"current_employer,omitempty" validate:"max=200"`

	CVDocument   string         `json:"cv_document,omitempty" validate:"omitempty,url"`
	Certificates pq.StringArray `gorm:"type:text[]" json:"certificates_documents,omitempty" validate:"max=20,dive,url"`
	IDDocument   string         `json:"id_document,omitempty" validate:"omitempty,url"`

	Review `gorm:"embedded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FirmApplication struct {
	ID                 string `gorm:"type:uuid;primaryKey" json:"id"`
	FirmName           string `gorm:"not null" json:"firm_name" validate:"required,max=200"`
	TradeName          string `json:"trade_name,omitempty" validate:"max=200"`
	RegistrationNumber string `gorm:"not null" json:"registration_number" validate:"required,max=64"`
	YearEstablished    int    `json:"year_established" validate:"gte=1900,lte=2100"`

	Email   string `gorm:"not null" json:"email" validate:"required,email,max=254"`
	Phone   string `gorm:"not null" json:"phone" validate:"required,max=32"`
	Website string `json:"website,omitempty" validate:"omitempty,url"`

	Address `gorm:"embedded"`

	NumberOfPartners  int            `json:"number_of_partners" validate:"gte=1,lte=10000"`
	NumberOfEmployees int            `json:"number_of_employees" validate:"gte=0,lte=100000"`
	ServicesOffered   pq.StringArray `gorm:"type:text[]" json:"services_offered" validate:"max=30,dive,required,max=200"`

	RepresentativeName  string `gorm:"not null" json:"representative_name" validate:"required,max=200"`
	RepresentativeTitle string `json:"representative_title" validate:"max=100"`
	RepresentativeEmail string `json:"representative_email" validate:"omitempty,email,max=254"`
	RepresentativePhone string `json:"representative_phone" validate:"max=32"`

	RegistrationDocument string         `json:"registration_document,omitempty" validate:"omitempty,url"`
	LicenseDocuments     pq.StringArray `gorm:"type:text[]" json:"license_documents,omitempty" validate:"max=20,dive,url"`
	TaxCertificate       string         `json:"tax_certificate,omitempty" validate:"omitempty,url"`

	Review `gorm:"embedded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (IndividualApplication) TableName() string { return "lacpa_membership.individual_applications" }
func (FirmApplication) TableName() string       { return "lacpa_membership.firm_applications" }

// ListQuery filters and pages an application listing.
type ListQuery struct {
	Page     int
	PageSize int
	Status   Status
	// Search matches the applicant name or email, case-insensitively.
	Search string
}

func (q ListQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Service string

const (
	ServiceWorkVisa            Service = "work_visa"
	ServiceStudyVisa           Service = "study_visa"
	ServiceTouristVisa         Service = "tourist_visa"
	ServiceBusinessVisa        Service = "business_visa"
	ServiceFamilyReunification Service = "family_reunification"
	ServicePermanentResidency  Service = "permanent_residency"
)

func IsValidService(s string) bool {
	switch Service(s) {
	case ServiceWorkVisa, ServiceStudyVisa, ServiceTouristVisa,
		ServiceBusinessVisa, ServiceFamilyReunification, ServicePermanentResidency:
		return true
	}
	return false
}

type SubmissionStatus string

const (
	SubmissionStatusNew       SubmissionStatus = "NEW"
	SubmissionStatusInReview  SubmissionStatus = "IN_REVIEW"
	SubmissionStatusCompleted SubmissionStatus = "COMPLETED"
	SubmissionStatusRejected  SubmissionStatus = "REJECTED"
)

// WorkflowStatus is the fine-grained processing stage. It only moves
// forward along the sequence below; see the workflow package.
type WorkflowStatus string

const (
	WorkflowPendingValidation WorkflowStatus = "PENDING_VALIDATION"
	WorkflowValidated         WorkflowStatus = "VALIDATED"
	WorkflowCallConfirmed     WorkflowStatus = "CALL_CONFIRMED"
	WorkflowDocsRequested     WorkflowStatus = "DOCUMENTS_REQUESTED"
	WorkflowDocsUploaded      WorkflowStatus = "DOCUMENTS_UPLOADED"
	WorkflowDocsVerified      WorkflowStatus = "DOCUMENTS_VERIFIED"
	WorkflowConverted         WorkflowStatus = "CONVERTED_TO_CLIENT"
)

type SubmissionSource string

const (
	SourceWebsite SubmissionSource = "website"
	SourceManual  SubmissionSource = "manual"
)

type SubmissionAdminNote struct {
	ID          bson.ObjectID `bson:"id" json:"id"`
	AuthorID    bson.ObjectID `bson:"authorId" json:"authorId"`
	AuthorEmail string        `bson:"authorEmail" json:"authorEmail"`
	Content     string        `bson:"content" json:"content"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
}

type Submission struct {
	ID bson.ObjectID `bson:"_id,omitempty" json:"id"`

	FullName string `bson:"fullName" json:"fullName"`
	Phone    string `bson:"phone" json:"phone"`
	Email    string `bson:"email,omitempty" json:"email,omitempty"`

	Service Service          `bson:"service" json:"service"`
	Message string           `bson:"message,omitempty" json:"message,omitempty"`
	Source  SubmissionSource `bson:"source" json:"source"`

	Status         SubmissionStatus `bson:"status" json:"status"`
	WorkflowStatus WorkflowStatus   `bson:"workflowStatus" json:"workflowStatus"`

	AssignedTo *bson.ObjectID        `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	CallNotes  string                `bson:"callNotes,omitempty" json:"callNotes,omitempty"`
	Notes      []SubmissionAdminNote `bson:"notes,omitempty" json:"notes,omitempty"`

	ValidatedAt     *time.Time `bson:"validatedAt,omitempty" json:"validatedAt,omitempty"`
	CallConfirmedAt *time.Time `bson:"callConfirmedAt,omitempty" json:"callConfirmedAt,omitempty"`
	ConvertedAt     *time.Time `bson:"convertedAt,omitempty" json:"convertedAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

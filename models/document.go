package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type DocumentStatus string

const (
	DocumentStatusUnverified       DocumentStatus = "UNVERIFIED"
	DocumentStatusVerified         DocumentStatus = "VERIFIED"
	DocumentStatusRejected         DocumentStatus = "REJECTED"
	DocumentStatusNeedsReplacement DocumentStatus = "NEEDS_REPLACEMENT"
)

func IsValidDocumentReviewStatus(s string) bool {
	switch DocumentStatus(s) {
	case DocumentStatusVerified, DocumentStatusRejected, DocumentStatusNeedsReplacement:
		return true
	}
	return false
}

type StoredFile struct {
	FileName   string    `bson:"fileName" json:"fileName"`
	MimeType   string    `bson:"mimeType" json:"mimeType"`
	SizeBytes  int64     `bson:"sizeBytes" json:"sizeBytes"`
	ObjectName string    `bson:"objectName" json:"objectName"`
	PublicURL  string    `bson:"publicUrl" json:"publicUrl"`
	UploadedAt time.Time `bson:"uploadedAt" json:"uploadedAt"`
}

type Document struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	SubmissionID bson.ObjectID `bson:"submissionId" json:"submissionId"`
	LinkID       bson.ObjectID `bson:"linkId" json:"linkId"`

	DocumentType string     `bson:"documentType" json:"documentType"`
	File         StoredFile `bson:"file" json:"file"`

	Status          DocumentStatus `bson:"status" json:"status"`
	RejectionReason string         `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	AdminNotes      string         `bson:"adminNotes,omitempty" json:"adminNotes,omitempty"`

	ReviewedBy *bson.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time     `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	CreatedAt  time.Time      `bson:"createdAt" json:"createdAt"`
}

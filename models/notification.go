package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type NotificationKind string

const (
	NotificationNewSubmission     NotificationKind = "NEW_SUBMISSION"
	NotificationValidated         NotificationKind = "SUBMISSION_VALIDATED"
	NotificationDocumentsUploaded NotificationKind = "DOCUMENTS_UPLOADED"
	NotificationReceiptUploaded   NotificationKind = "RECEIPT_UPLOADED"
	NotificationConverted         NotificationKind = "CONVERTED_TO_CLIENT"
)

// Notification is addressed to the admin pool as a whole, not fanned
// out per user.
type Notification struct {
	ID           bson.ObjectID    `bson:"_id,omitempty" json:"id"`
	Kind         NotificationKind `bson:"kind" json:"kind"`
	SubmissionID *bson.ObjectID   `bson:"submissionId,omitempty" json:"submissionId,omitempty"`
	Message      string           `bson:"message" json:"message"`
	IsRead       bool             `bson:"isRead" json:"isRead"`
	CreatedAt    time.Time        `bson:"createdAt" json:"createdAt"`
}

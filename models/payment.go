package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type ReceiptStatus string

const (
	ReceiptStatusPending   ReceiptStatus = "PENDING"
	ReceiptStatusConfirmed ReceiptStatus = "CONFIRMED"
	ReceiptStatusRejected  ReceiptStatus = "REJECTED"
)

func IsValidReceiptReviewStatus(s string) bool {
	switch ReceiptStatus(s) {
	case ReceiptStatusConfirmed, ReceiptStatusRejected:
		return true
	}
	return false
}

// PaymentReceipt is the proof-of-payment file a client uploads through
// a payment link. Amount and currency are copied from the link.
type PaymentReceipt struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	SubmissionID bson.ObjectID `bson:"submissionId" json:"submissionId"`
	LinkID       bson.ObjectID `bson:"linkId" json:"linkId"`

	Amount   float64    `bson:"amount" json:"amount"`
	Currency string     `bson:"currency" json:"currency"`
	File     StoredFile `bson:"file" json:"file"`

	Status          ReceiptStatus `bson:"status" json:"status"`
	RejectionReason string        `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	AdminNotes      string        `bson:"adminNotes,omitempty" json:"adminNotes,omitempty"`

	ReviewedBy *bson.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time     `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	CreatedAt  time.Time      `bson:"createdAt" json:"createdAt"`
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type LinkKind string

const (
	LinkKindDocument LinkKind = "DOCUMENT"
	LinkKindPayment  LinkKind = "PAYMENT"
)

// BankDetails is snapshotted onto a payment link at issuance so later
// edits to the business account never change a link already handed out.
type BankDetails struct {
	BankName      string `bson:"bankName" json:"bankName"`
	AccountHolder string `bson:"accountHolder" json:"accountHolder"`
	IBAN          string `bson:"iban" json:"iban"`
	SwiftCode     string `bson:"swiftCode,omitempty" json:"swiftCode,omitempty"`
}

// AccessLink grants an anonymous, time-limited capability (document
// upload or payment-receipt upload) scoped to one submission.
type AccessLink struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	SubmissionID bson.ObjectID `bson:"submissionId" json:"submissionId"`

	Kind  LinkKind `bson:"kind" json:"kind"`
	Token string   `bson:"token" json:"-"` // opaque, unique index

	ExpiresAt     time.Time `bson:"expiresAt" json:"expiresAt"`
	MaxUses       int       `bson:"maxUses" json:"maxUses"`
	UsesRemaining int       `bson:"usesRemaining" json:"usesRemaining"`
	IsActive      bool      `bson:"isActive" json:"isActive"`

	Notes string `bson:"notes,omitempty" json:"notes,omitempty"`

	// Document links only.
	RequiredDocumentTypes []string `bson:"requiredDocumentTypes,omitempty" json:"requiredDocumentTypes,omitempty"`

	// Payment links only.
	Amount      float64      `bson:"amount,omitempty" json:"amount,omitempty"`
	Currency    string       `bson:"currency,omitempty" json:"currency,omitempty"`
	BankDetails *BankDetails `bson:"bankDetails,omitempty" json:"bankDetails,omitempty"`

	CreatedBy     bson.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt     time.Time     `bson:"createdAt" json:"createdAt"`
	DeactivatedAt *time.Time    `bson:"deactivatedAt,omitempty" json:"deactivatedAt,omitempty"`
}

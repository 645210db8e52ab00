package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Client is created when a submission reaches the end of the workflow.
type Client struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	SubmissionID bson.ObjectID `bson:"submissionId" json:"submissionId"`

	FullName string  `bson:"fullName" json:"fullName"`
	Phone    string  `bson:"phone" json:"phone"`
	Email    string  `bson:"email,omitempty" json:"email,omitempty"`
	Service  Service `bson:"service" json:"service"`

	ConvertedBy bson.ObjectID `bson:"convertedBy" json:"convertedBy"`
	ConvertedAt time.Time     `bson:"convertedAt" json:"convertedAt"`
}

// Package workflow owns the submission stage state machine. Every
// stage change in the backend goes through Advance so the allowed
// transitions live in exactly one table.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/miravisas/mirabackend/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	ErrNotFound          = errors.New("submission not found")
	ErrInvalidTransition = errors.New("invalid workflow transition")
)

type Action string

const (
	ActionValidate          Action = "validate"
	ActionConfirmCall       Action = "confirm_call"
	ActionRequestDocuments  Action = "request_documents"
	ActionDocumentsUploaded Action = "documents_uploaded"
	ActionVerifyDocuments   Action = "verify_documents"
	ActionConvert           Action = "convert_to_client"
)

type transition struct {
	from []models.WorkflowStatus
	to   models.WorkflowStatus
}

// The empty stage is accepted for validate so records created before
// workflowStatus existed can still enter the pipeline.
//
// request_documents also re-enters from DOCUMENTS_REQUESTED and
// DOCUMENTS_UPLOADED: a lead whose link expired, was deactivated or ran
// out of uses with replacements outstanding needs a fresh link, and the
// stage returns to DOCUMENTS_REQUESTED until something is uploaded again.
var transitions = map[Action]transition{
	ActionValidate: {
		from: []models.WorkflowStatus{models.WorkflowPendingValidation, ""},
		to:   models.WorkflowValidated,
	},
	ActionConfirmCall: {
		from: []models.WorkflowStatus{models.WorkflowValidated},
		to:   models.WorkflowCallConfirmed,
	},
	ActionRequestDocuments: {
		from: []models.WorkflowStatus{
			models.WorkflowCallConfirmed,
			models.WorkflowDocsRequested,
			models.WorkflowDocsUploaded,
		},
		to: models.WorkflowDocsRequested,
	},
	ActionDocumentsUploaded: {
		from: []models.WorkflowStatus{models.WorkflowDocsRequested},
		to:   models.WorkflowDocsUploaded,
	},
	ActionVerifyDocuments: {
		from: []models.WorkflowStatus{models.WorkflowDocsUploaded},
		to:   models.WorkflowDocsVerified,
	},
	ActionConvert: {
		from: []models.WorkflowStatus{models.WorkflowDocsVerified},
		to:   models.WorkflowConverted,
	},
}

// Next returns the stage a submission at current would move to under
// action, or ErrInvalidTransition if the table has no such edge.
func Next(current models.WorkflowStatus, action Action) (models.WorkflowStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	for _, from := range t.from {
		if current == from {
			return t.to, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s from stage %q", ErrInvalidTransition, action, current)
}

// AllowedFrom lists the stages action may be applied to.
func AllowedFrom(action Action) []models.WorkflowStatus {
	return transitions[action].from
}

// Advance applies action to the submission with a single conditional
// update, so a concurrent competing transition cannot slip through:
// the filter matches only when the stored stage is still one the
// action accepts. extra is merged into the $set document (timestamps,
// notes) and is only written when the transition succeeds.
func Advance(ctx context.Context, col *mongo.Collection, id bson.ObjectID, action Action, extra bson.M) (models.WorkflowStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}

	set := bson.M{
		"workflowStatus": t.to,
		"updatedAt":      time.Now().UTC(),
	}
	for k, v := range extra {
		set[k] = v
	}

	res, err := col.UpdateOne(ctx,
		bson.M{"_id": id, "workflowStatus": bson.M{"$in": t.from}},
		bson.M{"$set": set},
	)
	if err != nil {
		return "", err
	}
	if res.MatchedCount == 0 {
		// Distinguish a missing submission from a stage mismatch.
		var sub models.Submission
		err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&sub)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrNotFound
		}
		if err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: cannot %s from stage %q", ErrInvalidTransition, action, sub.WorkflowStatus)
	}
	return t.to, nil
}

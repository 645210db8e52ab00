package workflow

import (
	"testing"

	"github.com/miravisas/mirabackend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFollowsTheFullSequence(t *testing.T) {
	steps := []struct {
		action Action
		want   models.WorkflowStatus
	}{
		{ActionValidate, models.WorkflowValidated},
		{ActionConfirmCall, models.WorkflowCallConfirmed},
		{ActionRequestDocuments, models.WorkflowDocsRequested},
		{ActionDocumentsUploaded, models.WorkflowDocsUploaded},
		{ActionVerifyDocuments, models.WorkflowDocsVerified},
		{ActionConvert, models.WorkflowConverted},
	}

	current := models.WorkflowPendingValidation
	for _, step := range steps {
		next, err := Next(current, step.action)
		require.NoError(t, err, "action %s from %s", step.action, current)
		assert.Equal(t, step.want, next)
		current = next
	}
}

func TestNextRejectsOutOfOrderActions(t *testing.T) {
	cases := []struct {
		name    string
		current models.WorkflowStatus
		action  Action
	}{
		{"confirm call before validate", models.WorkflowPendingValidation, ActionConfirmCall},
		{"request documents before call", models.WorkflowValidated, ActionRequestDocuments},
		{"skip straight to convert", models.WorkflowValidated, ActionConvert},
		{"validate twice", models.WorkflowValidated, ActionValidate},
		{"convert twice", models.WorkflowConverted, ActionConvert},
		{"upload before request", models.WorkflowCallConfirmed, ActionDocumentsUploaded},
		{"backward: re-request after verified", models.WorkflowDocsVerified, ActionRequestDocuments},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Next(tc.current, tc.action)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Empty(t, next)
		})
	}
}

func TestNextAllowsReissuingDocumentRequests(t *testing.T) {
	// A replacement link must stay available after the first request,
	// e.g. when the original link expired or documents need re-upload.
	next, err := Next(models.WorkflowDocsRequested, ActionRequestDocuments)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowDocsRequested, next)

	next, err = Next(models.WorkflowDocsUploaded, ActionRequestDocuments)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowDocsRequested, next)

	// once documents are verified the request path is closed
	_, err = Next(models.WorkflowDocsVerified, ActionRequestDocuments)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestNextAcceptsLegacyEmptyStageForValidate(t *testing.T) {
	next, err := Next("", ActionValidate)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowValidated, next)

	// only validate accepts the empty stage
	_, err = Next("", ActionConfirmCall)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestNextRejectsUnknownAction(t *testing.T) {
	_, err := Next(models.WorkflowValidated, Action("reopen"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAllowedFrom(t *testing.T) {
	assert.Equal(t, []models.WorkflowStatus{
		models.WorkflowCallConfirmed,
		models.WorkflowDocsRequested,
		models.WorkflowDocsUploaded,
	}, AllowedFrom(ActionRequestDocuments))
	assert.Contains(t, AllowedFrom(ActionValidate), models.WorkflowPendingValidation)
	assert.Empty(t, AllowedFrom(Action("reopen")))
}

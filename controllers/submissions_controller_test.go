package controllers

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miravisas/mirabackend/models"
	"github.com/miravisas/mirabackend/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestTrackedViewRedactsInternals(t *testing.T) {
	now := time.Now().UTC()
	sub := &models.Submission{
		ID:             bson.NewObjectID(),
		FullName:       "Nadia Benali",
		Phone:          "0612345678",
		Email:          "nadia@example.com",
		Service:        models.ServiceWorkVisa,
		Message:        "internal free text",
		CallNotes:      "called on Tuesday",
		Status:         models.SubmissionStatusInReview,
		WorkflowStatus: models.WorkflowDocsRequested,
		Notes: []models.SubmissionAdminNote{
			{Content: "flagged for follow-up"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	view := trackedView(sub, 4, 2)

	assert.Equal(t, "Nadia Benali", view["fullName"])
	assert.Equal(t, "0612345678", view["phone"])
	assert.Equal(t, "n***@example.com", view["email"])
	assert.Equal(t, models.ServiceWorkVisa, view["service"])
	assert.Equal(t, models.WorkflowDocsRequested, view["workflowStatus"])

	stats, ok := view["documentStats"].(gin.H)
	require.True(t, ok)
	assert.Equal(t, int64(4), stats["total"])
	assert.Equal(t, int64(2), stats["verified"])

	// nothing internal leaks through the public view
	assert.NotContains(t, view, "message")
	assert.NotContains(t, view, "notes")
	assert.NotContains(t, view, "callNotes")
	assert.NotContains(t, view, "assignedTo")
	assert.NotContains(t, view, "id")
}

func formContext(t *testing.T, values url.Values) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest("POST", "/documents/upload/test-token", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req
	return c
}

func TestParseDocumentTypesRepeatedFields(t *testing.T) {
	c := formContext(t, url.Values{
		"documentTypes": []string{"passport", "bank_statement"},
	})

	assert.Equal(t, []string{"passport", "bank_statement"}, parseDocumentTypes(c))
}

func TestParseDocumentTypesJSONArray(t *testing.T) {
	c := formContext(t, url.Values{
		"documentTypes": []string{`["passport","employment_contract"]`},
	})

	assert.Equal(t, []string{"passport", "employment_contract"}, parseDocumentTypes(c))
}

func TestParseDocumentTypesMissing(t *testing.T) {
	c := formContext(t, url.Values{})
	assert.Empty(t, parseDocumentTypes(c))
}

func TestWriteWorkflowErrorNamesAllowedStages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	_, err := workflow.Next(models.WorkflowPendingValidation, workflow.ActionConvert)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	writeWorkflowError(c, workflow.ActionConvert, err)

	assert.Equal(t, 409, w.Code)
	assert.Contains(t, w.Body.String(), "allowedStages")
	assert.Contains(t, w.Body.String(), string(models.WorkflowDocsVerified))
}

func TestWriteWorkflowErrorNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	writeWorkflowError(c, workflow.ActionValidate, workflow.ErrNotFound)

	assert.Equal(t, 404, w.Code)
}

func TestUploadPath(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://miravisas.com/")

	assert.Equal(t,
		"https://miravisas.com/documents/upload/abc123",
		uploadPath(models.LinkKindDocument, "abc123"))
	assert.Equal(t,
		"https://miravisas.com/payments/upload-receipt/abc123",
		uploadPath(models.LinkKindPayment, "abc123"))
}

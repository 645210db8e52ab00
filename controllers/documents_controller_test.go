package controllers

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miravisas/mirabackend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func storedDoc(docType, fileName string) models.Document {
	return models.Document{
		ID:           bson.NewObjectID(),
		SubmissionID: bson.NewObjectID(),
		DocumentType: docType,
		File: models.StoredFile{
			FileName:   fileName,
			UploadedAt: time.Now().UTC(),
		},
		Status: models.DocumentStatusUnverified,
	}
}

func TestUploadReportAllStored(t *testing.T) {
	docs := []models.Document{
		storedDoc("passport", "passport.pdf"),
		storedDoc("bank_statement", "statement.pdf"),
	}

	report := uploadReport(docs, nil, 1)

	uploaded, ok := report["uploaded"].([]gin.H)
	require.True(t, ok)
	require.Len(t, uploaded, 2)
	assert.Equal(t, "passport", uploaded[0]["documentType"])
	assert.Equal(t, "statement.pdf", uploaded[1]["fileName"])
	assert.Equal(t, 1, report["usesRemaining"])

	// no failures, no failed key
	assert.NotContains(t, report, "failed")
}

func TestUploadReportNamesFailedFiles(t *testing.T) {
	docs := []models.Document{storedDoc("passport", "passport.pdf")}

	report := uploadReport(docs, []string{"statement.pdf"}, 2)

	uploaded, ok := report["uploaded"].([]gin.H)
	require.True(t, ok)
	assert.Len(t, uploaded, 1)
	assert.Equal(t, []string{"statement.pdf"}, report["failed"])
	assert.Equal(t, 2, report["usesRemaining"])
}

package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miravisas/mirabackend/database"
	"github.com/miravisas/mirabackend/dto"
	"github.com/miravisas/mirabackend/links"
	"github.com/miravisas/mirabackend/models"
	"github.com/miravisas/mirabackend/utils"
	"github.com/miravisas/mirabackend/workflow"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// writeLinkError maps link errors onto HTTP responses. Expired,
// deactivated and exhausted links all answer 410: the token was real
// but the capability is gone.
func writeLinkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, links.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
	case errors.Is(err, links.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"error": "link expired"})
	case errors.Is(err, links.ErrDeactivated):
		c.JSON(http.StatusGone, gin.H{"error": "link deactivated"})
	case errors.Is(err, links.ErrExhausted):
		c.JSON(http.StatusGone, gin.H{"error": "link has no uses remaining"})
	case errors.Is(err, links.ErrInvalidParameter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}

// uploadPath returns the public URL a client opens for a token.
func uploadPath(kind models.LinkKind, token string) string {
	base := utils.PublicBaseURL()
	if kind == models.LinkKindPayment {
		return fmt.Sprintf("%s/payments/upload-receipt/%s", base, token)
	}
	return fmt.Sprintf("%s/documents/upload/%s", base, token)
}

// ====== GenerateDocumentLink (admin) ============================================================
// POST /admin/documents/generate-link
// Issues the upload link, then moves the submission to
// DOCUMENTS_REQUESTED. If the stage transition is refused the link is
// removed again so no orphan capability stays behind. A new link
// supersedes the submission's earlier document links: only the latest
// one stays active.
func GenerateDocumentLink() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		linksCol := database.OpenCollection("access_links")
		subsCol := database.OpenCollection("submissions")

		var body dto.GenerateDocumentLinkDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		subID, err := bson.ObjectIDFromHex(body.SubmissionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
			return
		}

		userIDStr, _ := c.Get("userID")
		userID, err := bson.ObjectIDFromHex(userIDStr.(string))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid auth user"})
			return
		}

		link, err := links.Issue(ctx, linksCol, links.IssueParams{
			SubmissionID:          subID,
			Kind:                  models.LinkKindDocument,
			ExpiresInDays:         body.ExpiresInDays,
			MaxUses:               body.MaxUploads,
			Notes:                 strings.TrimSpace(body.Notes),
			RequiredDocumentTypes: body.RequiredDocumentTypes,
			CreatedBy:             userID,
		})
		if err != nil {
			writeLinkError(c, err)
			return
		}

		if _, err := workflow.Advance(ctx, subsCol, subID, workflow.ActionRequestDocuments, nil); err != nil {
			_, _ = linksCol.DeleteOne(ctx, bson.M{"_id": link.ID})
			writeWorkflowError(c, workflow.ActionRequestDocuments, err)
			return
		}

		// retire whatever document links were active before this one
		if _, err := linksCol.UpdateMany(ctx,
			bson.M{
				"submissionId": subID,
				"kind":         models.LinkKindDocument,
				"isActive":     true,
				"_id":          bson.M{"$ne": link.ID},
			},
			bson.M{"$set": bson.M{"isActive": false, "deactivatedAt": time.Now().UTC()}},
		); err != nil {
			log.Printf("retire previous document links for %s: %v", subID.Hex(), err)
		}

		c.JSON(http.StatusCreated, gin.H{
			"linkId":    link.ID,
			"token":     link.Token,
			"uploadUrl": uploadPath(link.Kind, link.Token),
			"expiresAt": link.ExpiresAt,
			"maxUploads": link.MaxUses,
		})
	}
}

// ====== ValidateDocumentLink (public — no auth) =================================================
// GET /documents/validate-link/:token
// Returns just enough context for the upload page: who the link is
// for and what to upload. Never other submissions' data.
func ValidateDocumentLink() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		linksCol := database.OpenCollection("access_links")
		subsCol := database.OpenCollection("submissions")

		link, err := links.Validate(ctx, linksCol, c.Param("token"), time.Now().UTC())
		if err != nil {
			writeLinkError(c, err)
			return
		}
		if link.Kind != models.LinkKindDocument {
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
			return
		}

		var sub models.Submission
		if err := subsCol.FindOne(ctx, bson.M{"_id": link.SubmissionID}).Decode(&sub); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"fullName":              sub.FullName,
			"service":               sub.Service,
			"requiredDocumentTypes": link.RequiredDocumentTypes,
			"expiresAt":             link.ExpiresAt,
			"usesRemaining":         link.UsesRemaining,
			"notes":                 link.Notes,
		})
	}
}

// parseDocumentTypes reads the ordered documentTypes field, either as
// repeated form values or as one JSON array string.
func parseDocumentTypes(c *gin.Context) []string {
	values := c.PostFormArray("documentTypes")
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var parsed []string
		if err := json.Unmarshal([]byte(values[0]), &parsed); err == nil {
			return parsed
		}
	}
	return values
}

// ====== UploadDocuments (public — no auth) ======================================================
// POST /documents/upload/:token
// multipart/form-data:
//   - files: one or more files
//   - documentTypes: ordered, one entry per file
//
// One link use is consumed per file, claimed in a single conditional
// decrement before anything is stored.
func UploadDocuments(store utils.FileStore, validator *utils.FileValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		linksCol := database.OpenCollection("access_links")
		subsCol := database.OpenCollection("submissions")
		docsCol := database.OpenCollection("documents")

		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
			return
		}

		files := form.File["files"]
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
			return
		}

		docTypes := parseDocumentTypes(c)
		if len(docTypes) != len(files) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "documentTypes must match the uploaded files in order"})
			return
		}
		for i, t := range docTypes {
			docTypes[i] = strings.TrimSpace(t)
			if docTypes[i] == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "documentTypes entries must not be empty"})
				return
			}
		}

		// Reject bad files before spending any link uses.
		mimes := make([]string, len(files))
		for i, fh := range files {
			detected, err := validator.ValidateFile(fh)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %s", fh.Filename, err.Error())})
				return
			}
			mimes[i] = detected
		}

		now := time.Now().UTC()
		link, err := links.ConsumeN(ctx, linksCol, c.Param("token"), len(files), now)
		if err != nil {
			writeLinkError(c, err)
			return
		}
		if link.Kind != models.LinkKindDocument {
			_ = links.Release(ctx, linksCol, link.ID, len(files))
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
			return
		}

		docs := make([]models.Document, 0, len(files))
		failed := make([]string, 0)
		for i, fh := range files {
			f, err := fh.Open()
			if err != nil {
				log.Printf("open upload %s: %v", fh.Filename, err)
				failed = append(failed, fh.Filename)
				continue
			}

			objectName := utils.BuildObjectName("documents", link.SubmissionID.Hex(), docTypes[i], fh.Filename)
			publicURL, err := store.Upload(ctx, objectName, mimes[i], f, fh.Size)
			_ = f.Close()
			if err != nil {
				log.Printf("store upload %s: %v", fh.Filename, err)
				failed = append(failed, fh.Filename)
				continue
			}

			docs = append(docs, models.Document{
				ID:           bson.NewObjectID(),
				SubmissionID: link.SubmissionID,
				LinkID:       link.ID,
				DocumentType: docTypes[i],
				File: models.StoredFile{
					FileName:   fh.Filename,
					MimeType:   mimes[i],
					SizeBytes:  fh.Size,
					ObjectName: objectName,
					PublicURL:  publicURL,
					UploadedAt: now,
				},
				Status:    models.DocumentStatusUnverified,
				CreatedAt: now,
			})
		}
		stored := len(docs)

		if stored > 0 {
			insertDocs := make([]interface{}, 0, stored)
			for _, d := range docs {
				insertDocs = append(insertDocs, d)
			}
			if _, err := docsCol.InsertMany(ctx, insertDocs); err != nil {
				// nothing was recorded, so the stored objects are orphans
				for _, d := range docs {
					if derr := store.Delete(ctx, d.File.ObjectName); derr != nil {
						log.Printf("delete orphaned object %s: %v", d.File.ObjectName, derr)
					}
				}
				_ = links.Release(ctx, linksCol, link.ID, len(files))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record uploaded documents"})
				return
			}
		}
		if len(failed) > 0 {
			// give back the uses we claimed but never stored
			_ = links.Release(ctx, linksCol, link.ID, len(failed))
			if stored == 0 {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "file upload failed"})
				return
			}
		}

		// First successful upload moves the stage forward. Later
		// uploads on a multi-use link find the stage already advanced,
		// which is not an error here.
		_, err = workflow.Advance(ctx, subsCol, link.SubmissionID, workflow.ActionDocumentsUploaded, nil)
		if err != nil && !errors.Is(err, workflow.ErrInvalidTransition) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
			return
		}

		notify(ctx, models.NotificationDocumentsUploaded, &link.SubmissionID,
			fmt.Sprintf("%d document(s) uploaded", stored))

		c.JSON(http.StatusCreated, uploadReport(docs, failed, link.UsesRemaining+len(failed)))
	}
}

// uploadReport builds the upload response. Files that could not be
// stored are named so the caller knows to retry exactly those.
func uploadReport(docs []models.Document, failed []string, usesRemaining int) gin.H {
	uploaded := make([]gin.H, 0, len(docs))
	for _, d := range docs {
		uploaded = append(uploaded, gin.H{
			"id":           d.ID,
			"documentType": d.DocumentType,
			"fileName":     d.File.FileName,
		})
	}
	out := gin.H{
		"uploaded":      uploaded,
		"usesRemaining": usesRemaining,
	}
	if len(failed) > 0 {
		out["failed"] = failed
	}
	return out
}

// ====== ListDocuments (admin) ===================================================================
// GET /admin/documents?submissionId=...
func ListDocuments() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("documents")

		subID, err := bson.ObjectIDFromHex(strings.TrimSpace(c.Query("submissionId")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing submissionId"})
			return
		}

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := col.Find(ctx, bson.M{"submissionId": subID}, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer cursor.Close(ctx)

		items := make([]models.Document, 0)
		if err := cursor.All(ctx, &items); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// ====== VerifyDocument (admin) ==================================================================
// PATCH /admin/documents/:id/verify
// Body: { "status": "VERIFIED" | "REJECTED" | "NEEDS_REPLACEMENT", "rejectionReason": "...", "adminNotes": "..." }
func VerifyDocument() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("documents")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
			return
		}

		var body dto.VerifyDocumentDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if !models.IsValidDocumentReviewStatus(body.Status) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid status value",
				"allowed": []string{"VERIFIED", "REJECTED", "NEEDS_REPLACEMENT"},
			})
			return
		}
		if body.Status != string(models.DocumentStatusVerified) && strings.TrimSpace(body.RejectionReason) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rejectionReason is required when rejecting"})
			return
		}

		userIDStr, _ := c.Get("userID")
		userID, err := bson.ObjectIDFromHex(userIDStr.(string))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid auth user"})
			return
		}

		now := time.Now().UTC()
		set := bson.M{
			"status":     body.Status,
			"reviewedBy": userID,
			"reviewedAt": now,
		}
		if reason := strings.TrimSpace(body.RejectionReason); reason != "" {
			set["rejectionReason"] = reason
		}
		if notes := strings.TrimSpace(body.AdminNotes); notes != "" {
			set["adminNotes"] = notes
		}

		res, err := col.UpdateByID(ctx, id, bson.M{"$set": set})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ====== DeleteDocument (admin) ==================================================================
// DELETE /admin/documents/:id
func DeleteDocument(store utils.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("documents")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
			return
		}

		var doc models.Document
		if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}

		if doc.File.ObjectName != "" {
			if err := store.Delete(ctx, doc.File.ObjectName); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete stored file"})
				return
			}
		}

		if _, err := col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ====== DeactivateDocumentLink (admin) ==========================================================
// PATCH /admin/documents/links/:id/deactivate
func DeactivateDocumentLink() gin.HandlerFunc {
	return deactivateLink(models.LinkKindDocument)
}

func deactivateLink(kind models.LinkKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("access_links")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid link id"})
			return
		}

		var link models.AccessLink
		if err := col.FindOne(ctx, bson.M{"_id": id, "kind": kind}).Decode(&link); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
			return
		}

		if err := links.Deactivate(ctx, col, id); err != nil {
			writeLinkError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

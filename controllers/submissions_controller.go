package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miravisas/mirabackend/database"
	"github.com/miravisas/mirabackend/dto"
	"github.com/miravisas/mirabackend/models"
	"github.com/miravisas/mirabackend/utils"
	"github.com/miravisas/mirabackend/workflow"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// writeWorkflowError maps workflow errors onto HTTP responses. A stage
// precondition violation is a conflict, not a bad request; the 409 body
// names the stages the action would have accepted.
func writeWorkflowError(c *gin.Context, action workflow.Action, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
	case errors.Is(err, workflow.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error":         err.Error(),
			"allowedStages": workflow.AllowedFrom(action),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}

// ====== CreateSubmission (public — no auth) =====================================================
// POST /submissions
func CreateSubmission() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var body dto.CreateSubmissionDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if !models.IsValidService(body.Service) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid service value",
				"allowed": []string{
					"work_visa", "study_visa", "tourist_visa",
					"business_visa", "family_reunification", "permanent_residency",
				},
			})
			return
		}

		source := models.SourceWebsite
		if body.Source == string(models.SourceManual) {
			source = models.SourceManual
		}

		now := time.Now().UTC()
		sub := models.Submission{
			ID:             bson.NewObjectID(),
			FullName:       strings.TrimSpace(body.FullName),
			Phone:          strings.TrimSpace(body.Phone),
			Email:          strings.ToLower(strings.TrimSpace(body.Email)),
			Service:        models.Service(body.Service),
			Message:        strings.TrimSpace(body.Message),
			Source:         source,
			Status:         models.SubmissionStatusNew,
			WorkflowStatus: models.WorkflowPendingValidation,
			Notes:          []models.SubmissionAdminNote{},
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		col := database.OpenCollection("submissions")
		if _, err := col.InsertOne(ctx, sub); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
			return
		}

		notify(ctx, models.NotificationNewSubmission, &sub.ID,
			fmt.Sprintf("New submission from %s (%s)", sub.FullName, sub.Service))

		c.JSON(http.StatusCreated, gin.H{
			"id":      sub.ID,
			"message": "Your request has been received. We will contact you shortly.",
		})
	}
}

// trackedView is the redacted payload the public tracking endpoint
// returns. No documents, no notes, no link data.
func trackedView(sub *models.Submission, totalDocs, verifiedDocs int64) gin.H {
	return gin.H{
		"fullName":       sub.FullName,
		"phone":          sub.Phone,
		"email":          utils.MaskEmail(sub.Email),
		"service":        sub.Service,
		"status":         sub.Status,
		"workflowStatus": sub.WorkflowStatus,
		"createdAt":      sub.CreatedAt,
		"updatedAt":      sub.UpdatedAt,
		"documentStats": gin.H{
			"total":    totalDocs,
			"verified": verifiedDocs,
		},
	}
}

// ====== TrackSubmission (public — no auth) ======================================================
// POST /submissions/track
// The not-found message is identical for every miss, so callers cannot
// probe which phone numbers or emails exist.
func TrackSubmission() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var body dto.TrackSubmissionDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		phone := strings.TrimSpace(body.Phone)
		email := strings.ToLower(strings.TrimSpace(body.Email))
		if phone == "" && email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "phone or email is required"})
			return
		}

		or := []bson.M{}
		if phone != "" {
			or = append(or, bson.M{"phone": phone})
		}
		if email != "" {
			or = append(or, bson.M{"email": email})
		}

		col := database.OpenCollection("submissions")
		opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

		var sub models.Submission
		if err := col.FindOne(ctx, bson.M{"$or": or}, opts).Decode(&sub); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no submission found for the provided details"})
			return
		}

		docsCol := database.OpenCollection("documents")
		total, err := docsCol.CountDocuments(ctx, bson.M{"submissionId": sub.ID})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
			return
		}
		verified, err := docsCol.CountDocuments(ctx, bson.M{
			"submissionId": sub.ID,
			"status":       models.DocumentStatusVerified,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
			return
		}

		c.JSON(http.StatusOK, trackedView(&sub, total, verified))
	}
}

// ====== GetSubmissions (admin) ==================================================================
// GET /admin/submissions?page=1&limit=20&status=NEW&workflowStatus=VALIDATED&service=work_visa&q=...
func GetSubmissions() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("submissions")

		maxLimit, defaultLimit := utils.GetDefaultQueryLimits()

		page := utils.ParseIntDefault(c.Query("page"), 1)
		limit := utils.ParseIntDefault(c.Query("limit"), defaultLimit)
		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > maxLimit {
			limit = defaultLimit
		}
		skip := int64((page - 1) * limit)

		filter := bson.M{}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			filter["status"] = status
		}
		if ws := strings.TrimSpace(c.Query("workflowStatus")); ws != "" {
			filter["workflowStatus"] = ws
		}
		if service := strings.TrimSpace(c.Query("service")); service != "" {
			filter["service"] = service
		}
		if assigned := strings.TrimSpace(c.Query("assignedTo")); assigned != "" {
			if uid, err := bson.ObjectIDFromHex(assigned); err == nil {
				filter["assignedTo"] = uid
			}
		}
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			escaped := regexp.QuoteMeta(q)
			filter["$or"] = []bson.M{
				{"fullName": bson.M{"$regex": escaped, "$options": "i"}},
				{"phone": bson.M{"$regex": escaped, "$options": "i"}},
				{"email": bson.M{"$regex": escaped, "$options": "i"}},
				{"message": bson.M{"$regex": escaped, "$options": "i"}},
			}
		}

		opts := options.Find().
			SetSkip(skip).
			SetLimit(int64(limit)).
			SetSort(bson.D{{Key: "createdAt", Value: -1}})

		cursor, err := col.Find(ctx, filter, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer cursor.Close(ctx)

		items := make([]models.Submission, 0)
		if err := cursor.All(ctx, &items); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		total, err := col.CountDocuments(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"items": items,
			"page":  page,
			"limit": limit,
			"total": total,
		})
	}
}

// ====== GetSubmission (admin) ===================================================================
// GET /admin/submissions/:id
func GetSubmission() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("submissions")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
			return
		}

		var sub models.Submission
		if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&sub); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}

		c.JSON(http.StatusOK, sub)
	}
}

// ====== ValidateSubmission (admin) ==============================================================
// POST /admin/submissions/:id/validate
func ValidateSubmission() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("submissions")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
			return
		}

		now := time.Now().UTC()
		stage, err := workflow.Advance(ctx, col, id, workflow.ActionValidate, bson.M{
			"validatedAt": now,
			"status":      models.SubmissionStatusInReview,
		})
		if err != nil {
			writeWorkflowError(c, workflow.ActionValidate, err)
			return
		}

		notify(ctx, models.NotificationValidated, &id, "Submission validated")

		c.JSON(http.StatusOK, gin.H{"ok": true, "workflowStatus": stage})
	}
}

// ====== ConfirmCall (admin) =====================================================================
// POST /admin/submissions/:id/confirm-call
func ConfirmCall() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("submissions")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
			return
		}

		// callNotes are optional; an empty body is fine
		var body dto.ConfirmCallDTO
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		extra := bson.M{"callConfirmedAt": time.Now().UTC()}
		if notes := strings.TrimSpace(body.CallNotes); notes != "" {
			extra["callNotes"] = notes
		}

		stage, err := workflow.Advance(ctx, col, id, workflow.ActionConfirmCall, extra)
		if err != nil {
			writeWorkflowError(c, workflow.ActionConfirmCall, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true, "workflowStatus": stage})
	}
}

// ====== VerifySubmissionDocuments (admin) =======================================================
// POST /admin/submissions/:id/verify-documents
// Requires every uploaded document reviewed and at least one verified.
func VerifySubmissionDocuments() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("submissions")
		docsCol := database.OpenCollection("documents")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
			return
		}

		verified, err := docsCol.CountDocuments(ctx, bson.M{
			"submissionId": id,
			"status":       models.DocumentStatusVerified,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
			return
		}
		if verified == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "no verified documents for this submission"})
			return
		}

		pending, err := docsCol.CountDocuments(ctx, bson.M{
			"submissionId": id,
			"status": bson.M{"$in": []models.DocumentStatus{
				models.DocumentStatusUnverified,
				models.DocumentStatusNeedsReplacement,
			}},
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
			return
		}
		if pending > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "submission still has documents awaiting review"})
			return
		}

		stage, err := workflow.Advance(ctx, col, id, workflow.ActionVerifyDocuments, nil)
		if err != nil {
			writeWorkflowError(c, workflow.ActionVerifyDocuments, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true, "workflowStatus": stage})
	}
}

// ====== ConvertToClient (admin) =================================================================
// POST /admin/submissions/:id/convert
// Terminal transition. Creates the client record once the workflow
// update has gone through.
func ConvertToClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("submissions")
		clientsCol := database.OpenCollection("clients")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
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

		now := time.Now().UTC()
		_, err = workflow.Advance(ctx, col, id, workflow.ActionConvert, bson.M{
			"convertedAt": now,
			"status":      models.SubmissionStatusCompleted,
		})
		if err != nil {
			writeWorkflowError(c, workflow.ActionConvert, err)
			return
		}

		var sub models.Submission
		if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&sub); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
			return
		}

		client := models.Client{
			ID:           bson.NewObjectID(),
			SubmissionID: sub.ID,
			FullName:     sub.FullName,
			Phone:        sub.Phone,
			Email:        sub.Email,
			Service:      sub.Service,
			ConvertedBy:  userID,
			ConvertedAt:  now,
		}
		if _, err := clientsCol.InsertOne(ctx, client); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "converted but failed to create client record"})
			return
		}

		notify(ctx, models.NotificationConverted, &sub.ID,
			fmt.Sprintf("%s converted to client", sub.FullName))

		c.JSON(http.StatusCreated, gin.H{"ok": true, "clientId": client.ID})
	}
}

// ====== AddSubmissionNote (admin) ===============================================================
// POST /admin/submissions/:id/notes
func AddSubmissionNote() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("submissions")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
			return
		}

		var body dto.AddAdminNoteDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		authorIDStr, _ := c.Get("userID")
		authorEmail, _ := c.Get("email")
		authorID, err := bson.ObjectIDFromHex(authorIDStr.(string))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid auth user"})
			return
		}

		note := models.SubmissionAdminNote{
			ID:          bson.NewObjectID(),
			AuthorID:    authorID,
			AuthorEmail: authorEmail.(string),
			Content:     strings.TrimSpace(body.Content),
			CreatedAt:   time.Now().UTC(),
		}

		res, err := col.UpdateByID(ctx, id, bson.M{
			"$push": bson.M{"notes": note},
			"$set":  bson.M{"updatedAt": note.CreatedAt},
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add note"})
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}

		c.JSON(http.StatusCreated, note)
	}
}

// ====== UpdateSubmissionStatus (admin) ==========================================================
// PATCH /admin/submissions/:id/status
// Coarse status only. REJECTED is the explicit admin short-circuit and
// is allowed from any workflow stage; workflowStatus is not touched.
func UpdateSubmissionStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("submissions")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
			return
		}

		var body dto.UpdateSubmissionStatusDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		allowed := map[string]bool{
			string(models.SubmissionStatusNew):       true,
			string(models.SubmissionStatusInReview):  true,
			string(models.SubmissionStatusCompleted): true,
			string(models.SubmissionStatusRejected):  true,
		}
		if !allowed[body.Status] {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid status value",
				"allowed": []string{"NEW", "IN_REVIEW", "COMPLETED", "REJECTED"},
			})
			return
		}

		res, err := col.UpdateByID(ctx, id, bson.M{"$set": bson.M{
			"status":    body.Status,
			"updatedAt": time.Now().UTC(),
		}})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ====== AssignSubmission (admin) ================================================================
// PATCH /admin/submissions/:id/assign
func AssignSubmission() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("submissions")
		usersCol := database.OpenCollection("users")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
			return
		}

		var body dto.AssignSubmissionDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		agentID, err := bson.ObjectIDFromHex(body.AssignedTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}

		var agent models.User
		if err := usersCol.FindOne(ctx, bson.M{"_id": agentID, "isActive": true}).Decode(&agent); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if agent.Role == models.RoleViewer {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot assign to a viewer account"})
			return
		}

		res, err := col.UpdateByID(ctx, id, bson.M{"$set": bson.M{
			"assignedTo": agentID,
			"updatedAt":  time.Now().UTC(),
		}})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ====== DeleteSubmission (admin) ================================================================
// DELETE /admin/submissions/:id
// Removes the submission with its links, documents, receipts and the
// stored files. Storage deletes are best effort.
func DeleteSubmission(store utils.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("submissions")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
			return
		}

		res, err := col.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if res.DeletedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}

		docsCol := database.OpenCollection("documents")
		if cursor, err := docsCol.Find(ctx, bson.M{"submissionId": id}); err == nil {
			var docs []models.Document
			if err := cursor.All(ctx, &docs); err == nil {
				for _, d := range docs {
					if d.File.ObjectName != "" {
						if err := store.Delete(ctx, d.File.ObjectName); err != nil {
							log.Printf("delete stored object %s: %v", d.File.ObjectName, err)
						}
					}
				}
			}
		}
		_, _ = docsCol.DeleteMany(ctx, bson.M{"submissionId": id})

		receiptsCol := database.OpenCollection("payment_receipts")
		if cursor, err := receiptsCol.Find(ctx, bson.M{"submissionId": id}); err == nil {
			var receipts []models.PaymentReceipt
			if err := cursor.All(ctx, &receipts); err == nil {
				for _, r := range receipts {
					if r.File.ObjectName != "" {
						if err := store.Delete(ctx, r.File.ObjectName); err != nil {
							log.Printf("delete stored object %s: %v", r.File.ObjectName, err)
						}
					}
				}
			}
		}
		_, _ = receiptsCol.DeleteMany(ctx, bson.M{"submissionId": id})

		_, _ = database.OpenCollection("access_links").DeleteMany(ctx, bson.M{"submissionId": id})

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ====== GetClients (admin) ======================================================================
// GET /admin/clients?page=1&limit=20
func GetClients() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("clients")

		maxLimit, defaultLimit := utils.GetDefaultQueryLimits()
		page := utils.ParseIntDefault(c.Query("page"), 1)
		limit := utils.ParseIntDefault(c.Query("limit"), defaultLimit)
		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > maxLimit {
			limit = defaultLimit
		}
		skip := int64((page - 1) * limit)

		opts := options.Find().
			SetSkip(skip).
			SetLimit(int64(limit)).
			SetSort(bson.D{{Key: "convertedAt", Value: -1}})

		cursor, err := col.Find(ctx, bson.M{}, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer cursor.Close(ctx)

		items := make([]models.Client, 0)
		if err := cursor.All(ctx, &items); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		total, err := col.CountDocuments(ctx, bson.M{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"items": items,
			"page":  page,
			"limit": limit,
			"total": total,
		})
	}
}

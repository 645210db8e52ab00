package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miravisas/mirabackend/database"
	"github.com/miravisas/mirabackend/dto"
	"github.com/miravisas/mirabackend/links"
	"github.com/miravisas/mirabackend/models"
	"github.com/miravisas/mirabackend/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ====== GeneratePaymentLink (admin) =============================================================
// POST /admin/payments/generate-link
// Payment links are single-use and carry a snapshot of the bank
// details so the client always sees what was agreed.
func GeneratePaymentLink() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		linksCol := database.OpenCollection("access_links")
		subsCol := database.OpenCollection("submissions")

		var body dto.GeneratePaymentLinkDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		subID, err := bson.ObjectIDFromHex(body.SubmissionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
			return
		}

		var sub models.Submission
		if err := subsCol.FindOne(ctx, bson.M{"_id": subID}).Decode(&sub); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}
		if sub.Status == models.SubmissionStatusRejected {
			c.JSON(http.StatusConflict, gin.H{"error": "submission is rejected"})
			return
		}

		userIDStr, _ := c.Get("userID")
		userID, err := bson.ObjectIDFromHex(userIDStr.(string))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid auth user"})
			return
		}

		link, err := links.Issue(ctx, linksCol, links.IssueParams{
			SubmissionID:  subID,
			Kind:          models.LinkKindPayment,
			ExpiresInDays: body.ExpiresInDays,
			MaxUses:       1,
			Notes:         strings.TrimSpace(body.Notes),
			Amount:        body.Amount,
			Currency:      strings.ToUpper(body.Currency),
			BankDetails: &models.BankDetails{
				BankName:      body.BankDetails.BankName,
				AccountHolder: body.BankDetails.AccountHolder,
				IBAN:          body.BankDetails.IBAN,
				SwiftCode:     body.BankDetails.SwiftCode,
			},
			CreatedBy: userID,
		})
		if err != nil {
			writeLinkError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"linkId":    link.ID,
			"token":     link.Token,
			"uploadUrl": uploadPath(link.Kind, link.Token),
			"expiresAt": link.ExpiresAt,
			"amount":    link.Amount,
			"currency":  link.Currency,
		})
	}
}

// ====== ValidatePaymentLink (public — no auth) ==================================================
// GET /payments/validate-link/:token
func ValidatePaymentLink() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		linksCol := database.OpenCollection("access_links")
		subsCol := database.OpenCollection("submissions")

		link, err := links.Validate(ctx, linksCol, c.Param("token"), time.Now().UTC())
		if err != nil {
			writeLinkError(c, err)
			return
		}
		if link.Kind != models.LinkKindPayment {
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
			return
		}

		var sub models.Submission
		if err := subsCol.FindOne(ctx, bson.M{"_id": link.SubmissionID}).Decode(&sub); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"fullName":    sub.FullName,
			"service":     sub.Service,
			"amount":      link.Amount,
			"currency":    link.Currency,
			"bankDetails": link.BankDetails,
			"expiresAt":   link.ExpiresAt,
			"notes":       link.Notes,
		})
	}
}

// ====== UploadReceipt (public — no auth) ========================================================
// POST /payments/upload-receipt/:token
// multipart/form-data with a single "receipt" file. Consumes the link.
func UploadReceipt(store utils.FileStore, validator *utils.FileValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		linksCol := database.OpenCollection("access_links")
		receiptsCol := database.OpenCollection("payment_receipts")

		fh, err := c.FormFile("receipt")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing receipt file"})
			return
		}

		detected, err := validator.ValidateFile(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		now := time.Now().UTC()
		link, err := links.Consume(ctx, linksCol, c.Param("token"), now)
		if err != nil {
			writeLinkError(c, err)
			return
		}
		if link.Kind != models.LinkKindPayment {
			_ = links.Release(ctx, linksCol, link.ID, 1)
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
			return
		}

		f, err := fh.Open()
		if err != nil {
			_ = links.Release(ctx, linksCol, link.ID, 1)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "file upload failed"})
			return
		}
		objectName := utils.BuildObjectName("receipts", link.SubmissionID.Hex(), "receipt", fh.Filename)
		publicURL, err := store.Upload(ctx, objectName, detected, f, fh.Size)
		_ = f.Close()
		if err != nil {
			_ = links.Release(ctx, linksCol, link.ID, 1)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "file upload failed"})
			return
		}

		receipt := models.PaymentReceipt{
			ID:           bson.NewObjectID(),
			SubmissionID: link.SubmissionID,
			LinkID:       link.ID,
			Amount:       link.Amount,
			Currency:     link.Currency,
			File: models.StoredFile{
				FileName:   fh.Filename,
				MimeType:   detected,
				SizeBytes:  fh.Size,
				ObjectName: objectName,
				PublicURL:  publicURL,
				UploadedAt: now,
			},
			Status:    models.ReceiptStatusPending,
			CreatedAt: now,
		}
		if _, err := receiptsCol.InsertOne(ctx, receipt); err != nil {
			_ = links.Release(ctx, linksCol, link.ID, 1)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record receipt"})
			return
		}

		notify(ctx, models.NotificationReceiptUploaded, &link.SubmissionID,
			fmt.Sprintf("Payment receipt uploaded (%.2f %s)", link.Amount, link.Currency))

		c.JSON(http.StatusCreated, gin.H{
			"id":       receipt.ID,
			"fileName": receipt.File.FileName,
			"status":   receipt.Status,
		})
	}
}

// ====== ListReceipts (admin) ====================================================================
// GET /admin/payments/receipts?submissionId=...&status=PENDING
func ListReceipts() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("payment_receipts")

		filter := bson.M{}
		if subIDStr := strings.TrimSpace(c.Query("submissionId")); subIDStr != "" {
			subID, err := bson.ObjectIDFromHex(subIDStr)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submissionId"})
				return
			}
			filter["submissionId"] = subID
		}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			filter["status"] = status
		}

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := col.Find(ctx, filter, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer cursor.Close(ctx)

		items := make([]models.PaymentReceipt, 0)
		if err := cursor.All(ctx, &items); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// ====== VerifyReceipt (admin) ===================================================================
// PATCH /admin/payments/:id/verify
// Body: { "status": "CONFIRMED" | "REJECTED", "rejectionReason": "...", "adminNotes": "..." }
func VerifyReceipt() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("payment_receipts")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receipt id"})
			return
		}

		var body dto.VerifyReceiptDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if !models.IsValidReceiptReviewStatus(body.Status) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid status value",
				"allowed": []string{"CONFIRMED", "REJECTED"},
			})
			return
		}
		if body.Status == string(models.ReceiptStatusRejected) && strings.TrimSpace(body.RejectionReason) == "" {
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
			c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ====== DeactivatePaymentLink (admin) ===========================================================
// PATCH /admin/payments/links/:id/deactivate
func DeactivatePaymentLink() gin.HandlerFunc {
	return deactivateLink(models.LinkKindPayment)
}

package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miravisas/mirabackend/database"
	"github.com/miravisas/mirabackend/models"
	"github.com/miravisas/mirabackend/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// notify records an admin notification as a side effect of a workflow
// event. Best effort: a failed write is logged, never surfaced, and
// never rolls back the state change that triggered it.
func notify(ctx context.Context, kind models.NotificationKind, submissionID *bson.ObjectID, message string) {
	col := database.OpenCollection("notifications")
	_, err := col.InsertOne(ctx, models.Notification{
		ID:           bson.NewObjectID(),
		Kind:         kind,
		SubmissionID: submissionID,
		Message:      message,
		IsRead:       false,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		log.Printf("notification write failed (%s): %v", kind, err)
	}
}

// GET /admin/notifications?page=1&limit=20&unreadOnly=true
func GetNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		col := database.OpenCollection("notifications")

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
		if c.Query("unreadOnly") == "true" {
			filter["isRead"] = false
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

		items := make([]models.Notification, 0)
		if err := cursor.All(ctx, &items); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		unread, err := col.CountDocuments(ctx, bson.M{"isRead": false})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		total, err := col.CountDocuments(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"items":  items,
			"page":   page,
			"limit":  limit,
			"total":  total,
			"unread": unread,
		})
	}
}

// PATCH /admin/notifications/:id/read
func MarkNotificationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		col := database.OpenCollection("notifications")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
			return
		}

		res, err := col.UpdateByID(c.Request.Context(), id, bson.M{"$set": bson.M{"isRead": true}})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// PATCH /admin/notifications/read-all
func MarkAllNotificationsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		col := database.OpenCollection("notifications")

		res, err := col.UpdateMany(c.Request.Context(),
			bson.M{"isRead": false},
			bson.M{"$set": bson.M{"isRead": true}},
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true, "updated": res.ModifiedCount})
	}
}

// DELETE /admin/notifications/:id
func DeleteNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		col := database.OpenCollection("notifications")

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
			return
		}

		res, err := col.DeleteOne(c.Request.Context(), bson.M{"_id": id})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if res.DeletedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// DELETE /admin/notifications
func ClearNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		col := database.OpenCollection("notifications")

		res, err := col.DeleteMany(c.Request.Context(), bson.M{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": res.DeletedCount})
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/miravisas/mirabackend/controllers"
	"github.com/miravisas/mirabackend/database"
	"github.com/miravisas/mirabackend/middleware"
	"github.com/miravisas/mirabackend/models"
	"github.com/miravisas/mirabackend/utils"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	ctx := context.Background()

	usersCol := database.OpenCollection("users")
	if err := utils.SeedAdminUser(ctx, usersCol); err != nil {
		log.Fatal(err)
	}
	if err := database.EnsureIndexes(ctx); err != nil {
		log.Fatal("failed to create indexes: ", err)
	}

	store, err := utils.NewFileStore(ctx)
	if err != nil {
		log.Fatal("failed to init file store: ", err)
	}
	v := utils.NewPDFOrImageValidator()

	r := gin.New()

	origins := os.Getenv("ALLOWED_ORIGINS")
	allowedOrigins := map[string]bool{}
	for _, origin := range strings.Split(origins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}
	log.Printf("Allowed origins: %v", allowedOrigins)
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowedOrigins[origin]
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	r.POST("/auth/login", controllers.Login())
	r.POST("/auth/refresh", controllers.Refresh())
	r.POST("/auth/logout", controllers.Logout())

	// public surface: contact form, tracking, link-gated uploads
	r.POST("/submissions", controllers.CreateSubmission())
	r.POST("/submissions/track", controllers.TrackSubmission())
	r.GET("/documents/validate-link/:token", controllers.ValidateDocumentLink())
	r.POST("/documents/upload/:token", controllers.UploadDocuments(store, v))
	r.GET("/payments/validate-link/:token", controllers.ValidatePaymentLink())
	r.POST("/payments/upload-receipt/:token", controllers.UploadReceipt(store, v))

	authed := r.Group("/")
	authed.Use(middleware.AuthMiddleware())
	authed.GET("/auth/me", controllers.Me())

	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware())

	// read-only routes, open to every back-office role
	read := admin.Group("/")
	read.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleAgent, models.RoleViewer))
	{
		read.GET("/submissions", controllers.GetSubmissions())
		read.GET("/submissions/:id", controllers.GetSubmission())
		read.GET("/documents", controllers.ListDocuments())
		read.GET("/payments/receipts", controllers.ListReceipts())
		read.GET("/notifications", controllers.GetNotifications())
		read.GET("/clients", controllers.GetClients())
	}

	// workflow and record mutations
	write := admin.Group("/")
	write.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleAgent))
	{
		write.POST("/submissions/:id/validate", controllers.ValidateSubmission())
		write.POST("/submissions/:id/confirm-call", controllers.ConfirmCall())
		write.POST("/submissions/:id/verify-documents", controllers.VerifySubmissionDocuments())
		write.POST("/submissions/:id/convert", controllers.ConvertToClient())
		write.POST("/submissions/:id/notes", controllers.AddSubmissionNote())
		write.PATCH("/submissions/:id/status", controllers.UpdateSubmissionStatus())
		write.PATCH("/submissions/:id/assign", controllers.AssignSubmission())

		write.POST("/documents/generate-link", controllers.GenerateDocumentLink())
		write.PATCH("/documents/:id/verify", controllers.VerifyDocument())
		write.PATCH("/documents/links/:id/deactivate", controllers.DeactivateDocumentLink())

		write.POST("/payments/generate-link", controllers.GeneratePaymentLink())
		write.PATCH("/payments/:id/verify", controllers.VerifyReceipt())
		write.PATCH("/payments/links/:id/deactivate", controllers.DeactivatePaymentLink())

		write.PATCH("/notifications/:id/read", controllers.MarkNotificationRead())
		write.PATCH("/notifications/read-all", controllers.MarkAllNotificationsRead())
		write.DELETE("/notifications/:id", controllers.DeleteNotification())
		write.DELETE("/notifications", controllers.ClearNotifications())
	}

	// destructive and account operations stay admin-only
	restricted := admin.Group("/")
	restricted.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		restricted.DELETE("/submissions/:id", controllers.DeleteSubmission(store))
		restricted.DELETE("/documents/:id", controllers.DeleteDocument(store))
		restricted.POST("/users", controllers.CreateUser())
	}

	// any authenticated back-office account can rotate its own password
	self := admin.Group("/")
	self.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleAgent, models.RoleViewer))
	{
		self.POST("/users/me/password", controllers.ChangeMyPassword())
	}

	// Server listens on 0.0.0.0:8080 by default
	r.Run()
}

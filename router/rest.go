package router

import (
	"zurbo-service/controller"
	"zurbo-service/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func Rest(app *fiber.App) {
	api := app.Group("/v1", logger.New())

	// Chat attachments
	chat := api.Group("/chat")
	chat.Get("/image/:id", controller.ChatImageServe)

	// Auth
	auth := api.Group("/auth")
	auth.Post("/signup", controller.AuthSignup)
	auth.Post("/signin", controller.AuthSignin)
	auth.Post("/token/renew", controller.AuthTokenRenew)
	auth.Post("/2fa/secret", middleware.JWT(), middleware.OTP(), controller.AuthOtpSecret)
	auth.Post("/2fa/verify", middleware.JWT(), middleware.OTP(), controller.AuthOtpVerify)
	auth.Post("/2fa/validate", middleware.JWT(), controller.AuthOtpValidate)
	auth.Post("/2fa/disable", middleware.JWT(), middleware.OTP(), controller.AuthOtpDisable)

	// User
	user := api.Group("/user", middleware.JWT(), middleware.OTP())
	user.Get("/profile", controller.UserProfile)
	user.Put("/profile", controller.UserProfileUpdate)

	// Conversations and lifecycle transitions
	api.Post("/conversations", middleware.JWT(), middleware.OTP(), controller.ConversationCreate)
	api.Get("/conversations", middleware.JWT(), middleware.OTP(), controller.ConversationList)
	conversations := api.Group("/conversations", middleware.JWT(), middleware.OTP())
	conversations.Get("/:id", controller.ConversationDetail)
	conversations.Post("/:id/price", controller.ConversationSetPrice)
	conversations.Post("/:id/accept", controller.ConversationAccept)
	conversations.Post("/:id/reject", controller.ConversationReject)
	conversations.Post("/:id/report", controller.ConversationReport)

	// Escrow
	conversations.Get("/:id/escrow", controller.EscrowDetail)
	conversations.Post("/:id/escrow/capture", controller.EscrowCapture)
	conversations.Post("/:id/escrow/dispute", controller.EscrowDispute)

	// Uploads
	upload := api.Group("/upload", middleware.JWT(), middleware.OTP())
	upload.Post("/image", controller.UploadImage)

	// Admin
	admin := api.Group("/admin", middleware.JWT(), middleware.OTP(), middleware.RBAC())
	admin.Get("/disputes", controller.AdminDisputes)
	admin.Post("/disputes/:id/resolve", controller.AdminDisputeResolve)
}

package controller

import (
	"zurbo-service/database"
	"zurbo-service/model"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

type UserProfileUpdateInput struct {
	Name       string `json:"name"`
	AvatarID   uint   `json:"avatar_id"`
	IsProvider *bool  `json:"is_provider"`
}

func UserProfile(c *fiber.Ctx) error {
	user := c.Locals("user").(*jwt.Token)
	claims := user.Claims.(jwt.MapClaims)

	userModel := new(model.User)

	if err := database.Postgres.First(&userModel, claims["id"]).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal server error",
			"data":    nil,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data": fiber.Map{
			"id":          userModel.ID,
			"created":     userModel.CreatedAt.Unix(),
			"username":    userModel.Username,
			"email":       userModel.Email,
			"name":        userModel.Name,
			"avatar_id":   userModel.AvatarID,
			"is_provider": userModel.IsProvider,
			"role":        userModel.Role,
			"otp":         userModel.Otp_enabled,
		},
	})
}

func UserProfileUpdate(c *fiber.Ctx) error {
	input := new(UserProfileUpdateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Review your input",
			"data":    nil,
		})
	}

	userModel := new(model.User)
	if err := database.Postgres.First(&userModel, currentUserID(c)).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal server error",
			"data":    nil,
		})
	}

	if input.Name != "" {
		userModel.Name = input.Name
	}
	if input.AvatarID != 0 {
		userModel.AvatarID = input.AvatarID
	}
	if input.IsProvider != nil {
		userModel.IsProvider = *input.IsProvider
	}
	if err := database.Postgres.Save(&userModel).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal server error",
			"data":    nil,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data": fiber.Map{
			"id":          userModel.ID,
			"name":        userModel.Name,
			"avatar_id":   userModel.AvatarID,
			"is_provider": userModel.IsProvider,
		},
	})
}

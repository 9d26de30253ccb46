package controller

import (
	"encoding/base64"
	"time"

	"zurbo-service/config"
	"zurbo-service/database"
	"zurbo-service/model"
	"zurbo-service/quota"

	"github.com/gofiber/fiber/v2"
)

type UploadImageInput struct {
	Data string `json:"data"` // base64 image payload
}

func uploadLimiter() *quota.Limiter {
	return quota.NewLimiter(
		quota.RedisCounter{Client: database.Redis[2]},
		int64(config.ConfigInt("UPLOAD_DAILY_LIMIT", quota.DefaultDailyLimit)),
	)
}

// UploadImage stores a chat attachment after reserving one of the user's
// daily upload slots. The reservation happens before the insert; if the
// insert fails the slot is handed back.
func UploadImage(c *fiber.Ctx) error {
	input := new(UploadImageInput)
	if err := c.BodyParser(input); err != nil || input.Data == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Image data is required",
			"data":    nil,
		})
	}
	if _, err := base64.StdEncoding.DecodeString(input.Data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Image data must be base64",
			"data":    nil,
		})
	}

	userID := currentUserID(c)
	now := time.Now()
	limiter := uploadLimiter()

	allowed, remaining, err := limiter.CheckAndReserve(c.Context(), userID, now)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal server error",
			"data":    nil,
		})
	}
	if !allowed {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"status":  "error",
			"message": "Daily image upload limit reached",
			"data": fiber.Map{
				"remaining": remaining,
			},
		})
	}

	image := model.ChatImage{UserID: userID, Data: input.Data}
	if err := database.Postgres.Create(&image).Error; err != nil {
		limiter.Release(c.Context(), userID, now)
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
			"id":        image.ID,
			"remaining": remaining,
		},
	})
}

// ChatImageServe returns the raw attachment bytes by id.
func ChatImageServe(c *fiber.Ctx) error {
	image := new(model.ChatImage)
	if err := database.Postgres.First(&image, c.AllParams()["id"]).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "Image not found",
			"data":    nil,
		})
	}
	data, err := base64.StdEncoding.DecodeString(image.Data)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal server error",
			"data":    nil,
		})
	}
	c.Set("Content-Type", "image/png")
	return c.Send(data)
}

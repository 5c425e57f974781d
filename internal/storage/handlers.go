package storage

import (
	"backend-scampr/internal/auth"
	"backend-scampr/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/upload", authMiddleware, func(c *fiber.Ctx) error {
		var req UploadRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		obj, err := svc.Upload(c.Context(), auth.CurrentUserID(c), req)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(fiber.Map{
			"id":         obj.ID,
			"url":        obj.URL,
			"expires_at": obj.ExpiresAt,
		})
	})
}

package review

import (
	"backend-scampr/internal/auth"
	"backend-scampr/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		rev, err := svc.Create(c.Context(), auth.CurrentUserID(c), req)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": rev.ID, "message": "Review created successfully"})
	})

	r.Get("/tree/:treeID", func(c *fiber.Ctx) error {
		reviews, err := svc.ByTree(c.Context(), c.Params("treeID"))
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(reviews)
	})

	r.Get("/user/my-reviews", authMiddleware, func(c *fiber.Ctx) error {
		reviews, err := svc.ByUser(c.Context(), auth.CurrentUserID(c))
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(reviews)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var req UpdateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if _, err := svc.Update(c.Context(), auth.CurrentUserID(c), c.Params("id"), req); err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(fiber.Map{"message": "Review updated successfully"})
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), auth.CurrentUserID(c), c.Params("id")); err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(fiber.Map{"message": "Review deleted successfully"})
	})
}

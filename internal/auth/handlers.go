package auth

import (
	"errors"

	"backend-scampr/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/register", func(c *fiber.Ctx) error {
		var req RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		resp, err := svc.Register(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(resp)
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "email and password required")
		}
		resp, err := svc.Login(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(resp)
	})

	r.Post("/sync", func(c *fiber.Ctx) error {
		var req SyncRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		resp, err := svc.Sync(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(resp)
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return fiber.NewError(fiber.StatusBadRequest, "refresh_token required")
		}

		userID, err := svc.ValidateRefreshToken(c.Context(), req.RefreshToken)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		resp, err := svc.GenerateTokens(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(resp)
	})

	r.Get("/jwt/verify", func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := svc.ValidateAccessToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return c.JSON(fiber.Map{"user_id": userID})
	})

	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		user, err := svc.GetUser(c.Context(), CurrentUserID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(user)
	})

	r.Patch("/me", authMiddleware, func(c *fiber.Ctx) error {
		var req UpdateProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		user, err := svc.UpdateProfile(c.Context(), CurrentUserID(c), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(user)
	})

	r.Get("/users", func(c *fiber.Ctx) error {
		users, err := svc.ListUsers(c.Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(users)
	})

	r.Delete("/delete-account/:userID", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.DeleteAccount(c.Context(), CurrentUserID(c), c.Params("userID")); err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"message": "Account deleted successfully"})
	})
}

func httpError(err error) error {
	if errors.Is(err, ErrInvalidCredentials) {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	return apperr.HTTP(err)
}

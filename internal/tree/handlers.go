package tree

import (
	"math"
	"strconv"
	"strings"

	"backend-scampr/internal/auth"
	"backend-scampr/internal/ranking"
	"backend-scampr/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		t, err := svc.CreateTree(c.Context(), auth.CurrentUserID(c), req)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": t.ID, "message": "Tree created successfully"})
	})

	r.Get("/", func(c *fiber.Ctx) error {
		var p ListParams
		var err error
		if p.Lat, err = optionalFloat(c, "lat"); err != nil {
			return err
		}
		if p.Lng, err = optionalFloat(c, "lon"); err != nil {
			return err
		}
		if p.RadiusKm, err = optionalFloat(c, "radius"); err != nil {
			return err
		}
		if p.Limit, p.Skip, err = page(c); err != nil {
			return err
		}
		results, err := svc.List(c.Context(), p)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(results)
	})

	r.Get("/search", func(c *fiber.Ctx) error {
		p, err := searchParams(c)
		if err != nil {
			return err
		}
		results, err := svc.Search(c.Context(), p)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(results)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		detail, err := svc.GetTreeDetail(c.Context(), c.Params("id"))
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(detail)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var req UpdateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if _, err := svc.UpdateTree(c.Context(), auth.CurrentUserID(c), c.Params("id"), req); err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(fiber.Map{"message": "Tree updated successfully"})
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.DeleteTree(c.Context(), auth.CurrentUserID(c), c.Params("id")); err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(fiber.Map{"message": "Tree deleted successfully"})
	})
}

func searchParams(c *fiber.Ctx) (SearchParams, error) {
	p := SearchParams{
		Query:    c.Query("q"),
		TreeType: strings.TrimSpace(c.Query("tree_type")),
		RadiusKm: DefaultRadiusKm,
	}

	var err error
	if p.Lat, err = optionalFloat(c, "lat"); err != nil {
		return p, err
	}
	if p.Lng, err = optionalFloat(c, "lon"); err != nil {
		return p, err
	}
	radius, err := optionalFloat(c, "radius")
	if err != nil {
		return p, err
	}
	if radius != nil {
		if *radius <= 0 {
			return p, fiber.NewError(fiber.StatusBadRequest, "radius must be positive")
		}
		p.RadiusKm = *radius
	}
	if p.DifficultyMin, err = optionalFloat(c, "difficulty_min"); err != nil {
		return p, err
	}
	if p.DifficultyMax, err = optionalFloat(c, "difficulty_max"); err != nil {
		return p, err
	}
	if p.PreferredDifficulty, err = optionalFloat(c, "preferred_difficulty"); err != nil {
		return p, err
	}
	if raw := c.Query("features"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				p.PreferredFeatures = append(p.PreferredFeatures, f)
			}
		}
	}

	sortBy := c.Query("sort_by", "relevance")
	if p.SortBy, err = ranking.ParseSortMode(sortBy); err != nil {
		return p, apperr.HTTP(err)
	}
	if p.Limit, p.Skip, err = page(c); err != nil {
		return p, err
	}
	return p, nil
}

func page(c *fiber.Ctx) (int, int, error) {
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(DefaultLimit)))
	if err != nil || limit < 1 || limit > MaxLimit {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 100")
	}
	skip, err := strconv.Atoi(c.Query("skip", "0"))
	if err != nil || skip < 0 {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "skip must be a non-negative integer")
	}
	return limit, skip, nil
}

func optionalFloat(c *fiber.Ctx, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fiber.NewError(fiber.StatusBadRequest, key+" must be a number")
	}
	return &v, nil
}

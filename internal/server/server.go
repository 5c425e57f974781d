package server

import (
	"errors"

	"backend-scampr/internal/auth"
	"backend-scampr/internal/config"
	"backend-scampr/internal/db"
	"backend-scampr/internal/review"
	"backend-scampr/internal/storage"
	"backend-scampr/internal/stream"
	"backend-scampr/internal/tree"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const version = "1.0.0"

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
	Log    *zap.Logger
}

func NewServer(cfg config.Config, pg *pgxpool.Pool, redisClient *redis.Client, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: errorHandler(log),
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{AllowOrigins: corsOrigins(cfg.CORSOrigins)}))

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pg,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log.Named("stream")),
		Log:    log,
	}

	registerRoutes(s)
	return s
}

// Close stops the stream hub's Redis subscription.
func (s *Server) Close() error {
	return s.Stream.Close()
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Welcome to " + s.Cfg.AppName, "version": version})
	})

	var conn db.TxBeginner
	if s.DB != nil {
		conn = s.DB
	}

	authSvc := auth.NewService(s.Cfg.JWTSecret, conn,
		auth.WithAccessTTL(accessTTL(s.Cfg)),
		auth.WithPublisher(s.Stream),
		auth.WithLogger(s.Log.Named("auth")),
	)
	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	api := s.App.Group(s.Cfg.APIPrefix)
	auth.RegisterRoutes(api.Group("/auth"), authSvc, jwtMiddleware)
	tree.RegisterRoutes(api.Group("/trees"), tree.NewService(conn, s.Stream, s.Log.Named("tree")), jwtMiddleware)
	review.RegisterRoutes(api.Group("/reviews"), review.NewService(conn, s.Stream, s.Log.Named("review")), jwtMiddleware)
	storage.RegisterRoutes(api.Group("/storage"), storage.NewService(conn, s.Cfg.StorageBaseURL), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}

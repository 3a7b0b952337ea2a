package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/emandor/quiz_service/internal/attempt"
	"github.com/emandor/quiz_service/internal/auth"
	"github.com/emandor/quiz_service/internal/avatar"
	"github.com/emandor/quiz_service/internal/cache"
	"github.com/emandor/quiz_service/internal/catalog"
	"github.com/emandor/quiz_service/internal/config"
	"github.com/emandor/quiz_service/internal/db"
	"github.com/emandor/quiz_service/internal/middleware"
	"github.com/emandor/quiz_service/internal/session"
	"github.com/emandor/quiz_service/internal/store"
	"github.com/emandor/quiz_service/internal/telemetry"
)

func main() {
	doMigrate := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	cfg := config.Load()
	tlog := telemetry.Init(telemetry.FromEnv(config.GetEnv))

	if *doMigrate {
		db.MustMigrate(cfg.DBDSN)
		tlog.Info().Msg("migrations done")
		return
	}

	sqlxDB := db.MustConnect(cfg.DBDSN)
	defer sqlxDB.Close()
	rdb := cache.MustConnect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rdb.Close()

	tlog.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Msg("booting quiz_service")

	repo := store.New(sqlxDB)
	sessions := session.NewManager(rdb, repo.Users(), cfg.SessionTTL)
	authSvc := auth.NewService(repo, sessions, cfg.BcryptCost)

	ah := auth.NewHandler(cfg, authSvc)
	th := attempt.NewHandler(attempt.NewTracker(repo))
	ch := catalog.NewHandler(catalog.NewService(repo.Catalog()))
	vh := avatar.NewHandler(avatar.NewStore(cfg.AvatarDir, cfg.AvatarMaxW), authSvc)

	app := fiber.New(fiber.Config{
		AppName:      "quiz_service",
		BodyLimit:    (cfg.AllowedMaxFileSize + 1) * 1024 * 1024,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.Recover())
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecureHeaders())
	app.Use(middleware.RateLimiter(cfg))
	app.Use(middleware.LoadSession(cfg.SessionCookieName, authSvc, ah.RefreshCookie))
	app.Use(middleware.RequestLog())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Static(avatar.URLPrefix, cfg.AvatarDir)

	api := app.Group("/api", middleware.SecureHeadersStrict())
	throttle := middleware.LoginThrottle(cfg.LoginRPS, cfg.LoginBurst)

	api.Post("/register", throttle, ah.Register)
	api.Post("/login", throttle, ah.Login)
	api.Post("/reset_password", throttle, ah.ResetPassword)
	api.Get("/logout", ah.Logout)
	api.Post("/logout", ah.Logout)
	api.Get("/check_login_status", ah.CheckLoginStatus)
	api.Get("/get_categories", ch.GetCategories)
	api.Get("/get_questions", ch.GetQuestions)
	api.Post("/save_results", th.SaveResults)

	if cfg.GoogleEnabled() {
		g := auth.NewGoogle(ah)
		api.Get("/auth/google/login", g.Login)
		api.Get("/auth/google/callback", g.Callback)
	}

	private := api.Group("", middleware.RequireSession())
	private.Post("/save_progress", th.SaveProgress)
	private.Get("/get_progress", th.GetProgress)
	private.Post("/clear_progress", th.ClearProgress)
	private.Get("/get_user_profile", ah.GetUserProfile)
	private.Post("/update_profile", ah.UpdateProfile)
	private.Post("/change_password", throttle, ah.ChangePassword)
	private.Post("/profile_picture", middleware.FileUploadValidator(cfg), vh.Upload)

	go func() {
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			tlog.Fatal().Err(err).Msg("listen_failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	tlog.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		tlog.Error().Err(err).Msg("shutdown_failed")
	}
}

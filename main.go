package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"wesnoth-ladder-system/handlers"
	"wesnoth-ladder-system/models"
	"wesnoth-ladder-system/services"
	"wesnoth-ladder-system/utils"
	"wesnoth-ladder-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Replay{},
		&models.Match{},
		&models.Player{},
		&models.PlayerStatistic{},
		&models.Tournament{},
		&models.TournamentParticipant{},
		&models.TournamentTeam{},
		&models.TournamentMatch{},
		&models.Faction{},
		&models.GameMap{},
		&models.SystemSetting{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// R2 is only needed for r2:// replay locations, HTTP archives work without it
	if os.Getenv("CLOUDFLARE_ACCOUNT_ID") != "" {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		log.Println("✅ R2 replay storage configured")
	}

	syncWorker := workers.NewSessionSyncWorker(db, workers.NewHTTPSessionSource())
	parseWorker := workers.NewReplayParseWorker(db)

	scheduler, err := workers.NewPipelineScheduler(syncWorker, parseWorker)
	if err != nil {
		log.Fatal("failed to build pipeline scheduler:", err)
	}
	scheduler.Start()

	statusService := services.NewStatusService(db, scheduler.JobStatuses)

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(allowedOriginsList, ","),
		AllowMethods: "GET,OPTIONS,HEAD",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		MaxAge:       86400,
	}))

	handlers.RegisterStatusRoutes(app, statusService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Status API running on http://localhost:%s", port)
	log.Println("✅ Session sync and replay parse jobs scheduled")

	<-ctx.Done()
	log.Println("Shutting down...")
	scheduler.Shutdown()
	if err := app.Shutdown(); err != nil {
		log.Printf("⚠️ server shutdown: %v", err)
	}
}

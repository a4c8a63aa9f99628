package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	config "github.com/anjiri1684/smartscore/configs"
	"github.com/anjiri1684/smartscore/database"
	"github.com/anjiri1684/smartscore/jobs"
	"github.com/anjiri1684/smartscore/notifications"
	"github.com/anjiri1684/smartscore/routes"
	"github.com/anjiri1684/smartscore/websocket"
	"github.com/robfig/cron/v3"
)

func main() {
	if config.JWTSecret() == "" {
		log.Fatal("🔥 JWT_SECRET must be set")
	}

	database.ConnectDB()
	database.TunePool()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go websocket.Default.Run(ctx)

	reminderSpec := config.ConfigDefault("EXAM_REMINDER_CRON", "*/5 * * * *")
	reminders, err := jobs.NewReminderJob(reminderSpec)
	if err != nil {
		log.Fatalf("🔥 Invalid EXAM_REMINDER_CRON: %v", err)
	}
	c := cron.New()
	if _, err := c.AddJob(reminderSpec, reminders); err != nil {
		log.Fatalf("🔥 Invalid EXAM_REMINDER_CRON: %v", err)
	}
	c.Start()
	defer c.Stop()
	log.Println("✅ Cron job for exam reminders scheduled successfully.")

	app := routes.New()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Server shutdown error: %v", err)
		}
	}()

	port := config.ConfigDefault("PORT", "8080")
	log.Printf("✅ Server is running on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}

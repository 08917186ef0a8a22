package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm/internal/config"
	"crm/internal/database"
	"crm/internal/notify"
	"crm/internal/server"
	"crm/internal/service"

	"gorm.io/gorm"
)

// @title           CRM API
// @version         1.0
// @description     Leads, quotations and role-based access with an audit trail.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		serve(cfg)
	case "migrate":
		connect(cfg)
		log.Println("Migrations complete")
	case "seed":
		app := server.New(cfg, connect(cfg), notify.NewSMTPNotifier(cfg.Mail))
		if err := runSeed(app, adminSeed(cfg)); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Println("Seeding complete")
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println(`Usage: api <command>
Commands:
  serve     Migrate, seed defaults and start the HTTP server (default)
  migrate   Run migrations
  seed      Create default permissions, roles and the admin user`)
}

// connect opens the database and brings the schema up to date.
func connect(cfg *config.Config) *gorm.DB {
	db, err := database.NewConnection(cfg.Database.DSN(), cfg.Database.LogLevel)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	return db
}

func adminSeed(cfg *config.Config) service.AdminSeed {
	return service.AdminSeed{
		Username: cfg.Seed.AdminUsername,
		Password: cfg.Seed.AdminPassword,
		Role:     cfg.Seed.AdminRole,
	}
}

// runSeed seeds the defaults and closes the app, draining queued audit
// entries even when seeding fails.
func runSeed(app *server.App, admin service.AdminSeed) error {
	defer app.Close()
	return app.Roles.SeedDefaults(context.Background(), admin)
}

func serve(cfg *config.Config) {
	db := connect(cfg)
	app := server.New(cfg, db, notify.NewSMTPNotifier(cfg.Mail))

	if err := app.Roles.SeedDefaults(context.Background(), adminSeed(cfg)); err != nil {
		app.Close()
		log.Fatalf("Seeding failed: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	app.Close()
	log.Println("Server exited")
}

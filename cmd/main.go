package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/finfx/finfx-server/cmd/api"
	"github.com/finfx/finfx-server/cmd/models"
	"github.com/finfx/finfx-server/cmd/utils"
	"github.com/finfx/finfx-server/db"
	"github.com/finfx/finfx-server/service/subscription"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations()
			return
		case "clear-db":
			runDatabaseClear()
			return
		case "seed-admin":
			runAdminSeed()
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	startServer()
}

func runMigrations() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database for migrations")

	if err := performMigrations(DB); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func performMigrations(DB *gorm.DB) error {
	migrations := map[interface{}]string{
		&models.User{}:                "User",
		&models.PasswordResetToken{}:  "PasswordResetToken",
		&models.Bot{}:                 "Bot",
		&models.Package{}:             "Package",
		&models.BotPackage{}:          "BotPackage",
		&models.BotSubscription{}:     "BotSubscription",
		&models.Signal{}:              "Signal",
		&models.Broker{}:              "Broker",
		&models.PlatformCredential{}:  "PlatformCredential",
		&models.KYC{}:                 "KYC",
		&models.Device{}:              "Device",
		&models.NotificationHistory{}: "NotificationHistory",
	}

	log.Println("Starting database migrations...")
	for model, name := range migrations {
		log.Printf("Migrating %s table...", name)
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", name, err)
		}
		log.Printf("%s migration successful", name)
	}

	directories := []string{
		utils.DocumentPath,
	}

	for _, dir := range directories {
		if err := createDirectoryIfNotExist(dir); err != nil {
			log.Fatalf("Error creating directory %s: %v", dir, err)
		}
		log.Printf("Directory %s created/verified", dir)
	}

	log.Println("All migrations and directory setup completed successfully")
	return nil
}

func createDirectoryIfNotExist(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("could not create directory %s: %w", path, err)
		}
	}
	return nil
}

func startServer() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	sweeper, err := subscription.NewSweeper(DB)
	if err != nil {
		log.Fatalf("Sweeper initialization error: %v", err)
	}
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Sweeper start error: %v", err)
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	server := api.NewApiServer(":"+port, DB)

	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()
	log.Printf("Server running on port %s", port)

	<-quit
	log.Println("Shutting down server...")
	if err := sweeper.Stop(); err != nil {
		log.Printf("Sweeper shutdown error: %v", err)
	}
}

func runAdminSeed() {
	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}
	if len(password) < 6 {
		log.Fatal("ADMIN_PASSWORD must be at least 6 characters")
	}

	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
	}()

	var existing models.User
	if err := DB.Where("email = ?", email).First(&existing).Error; err == nil {
		if existing.Role == models.RoleAdmin {
			log.Printf("Admin %s already exists", email)
			return
		}
		if err := DB.Model(&existing).Update("role", models.RoleAdmin).Error; err != nil {
			log.Fatalf("Error promoting user to admin: %v", err)
		}
		log.Printf("Existing user %s promoted to admin", email)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Error hashing password: %v", err)
	}

	admin := models.User{
		FullName:      "Administrator",
		Email:         email,
		PasswordHash:  string(hash),
		Role:          models.RoleAdmin,
		Phone:         os.Getenv("ADMIN_PHONE"),
		EmailVerified: true,
	}
	if err := DB.Create(&admin).Error; err != nil {
		log.Fatalf("Error creating admin user: %v", err)
	}
	log.Printf("Admin %s created", email)
}

func clearDatabase(DB *gorm.DB, tables []interface{}) error {
	if len(tables) == 0 {
		tables = []interface{}{
			&models.NotificationHistory{},
			&models.Device{},
			&models.Signal{},
			&models.BotSubscription{},
			&models.PlatformCredential{},
			&models.KYC{},
			&models.BotPackage{},
			&models.Package{},
			&models.Bot{},
			&models.Broker{},
			&models.PasswordResetToken{},
			&models.User{},
		}
	}

	log.Println("Dropping tables...")

	for _, table := range tables {
		if err := DB.Migrator().DropTable(table); err != nil {
			log.Printf("Warning dropping table %T: %v", table, err)
		} else {
			log.Printf("Table %T dropped", table)
		}
	}

	return nil
}

func runDatabaseClear() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()

	log.Println("Preparing to clear database...")

	var confirmation string
	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	fmt.Scanln(&confirmation)

	if confirmation != "yes" {
		log.Println("Database clearing cancelled.")
		return
	}

	var tableNames string
	fmt.Print("Enter table names to clear (comma separated) or leave blank to clear all: ")
	fmt.Scanln(&tableNames)

	var tables []interface{}
	if tableNames != "" {
		for _, table := range strings.Split(tableNames, ",") {
			switch strings.TrimSpace(table) {
			case "User":
				tables = append(tables, &models.User{})
			case "PasswordResetToken":
				tables = append(tables, &models.PasswordResetToken{})
			case "Bot":
				tables = append(tables, &models.Bot{})
			case "Package":
				tables = append(tables, &models.Package{})
			case "BotPackage":
				tables = append(tables, &models.BotPackage{})
			case "BotSubscription":
				tables = append(tables, &models.BotSubscription{})
			case "Signal":
				tables = append(tables, &models.Signal{})
			case "Broker":
				tables = append(tables, &models.Broker{})
			case "PlatformCredential":
				tables = append(tables, &models.PlatformCredential{})
			case "KYC":
				tables = append(tables, &models.KYC{})
			case "Device":
				tables = append(tables, &models.Device{})
			case "NotificationHistory":
				tables = append(tables, &models.NotificationHistory{})
			default:
				log.Printf("Unknown table: %s", table)
			}
		}
	}

	if err := clearDatabase(DB, tables); err != nil {
		log.Fatalf("Error clearing database: %v", err)
	}

	log.Println("Database cleared successfully")
}

package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"access_portal/portal/auth"
	"access_portal/portal/catalog"
	"access_portal/portal/metrics"
	"access_portal/portal/schema"
	"access_portal/portal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Dsn       string
	JwtSecret string

	AdminUsername string
	AdminPassword string

	CatalogPath   string
	AllowedOrigin string

	GrantDuration time.Duration
	SweepInterval time.Duration

	LogFile string
	Port    int
}

func env(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Panicf("invalid duration '%v' for %v: %v", value, key, err)
	}
	return d
}

func loadConfig() Config {
	// Missing .env is fine, the environment may be set directly.
	_ = godotenv.Load()

	port, err := strconv.Atoi(env("PORTAL_PORT", "8080"))
	if err != nil {
		log.Panicf("invalid PORTAL_PORT: %v", err)
	}

	c := Config{
		Dsn:           os.Getenv("PORTAL_DB_DSN"),
		JwtSecret:     os.Getenv("PORTAL_JWT_SECRET"),
		AdminUsername: env("PORTAL_ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("PORTAL_ADMIN_PASSWORD"),
		CatalogPath:   os.Getenv("PORTAL_CATALOG_PATH"),
		AllowedOrigin: env("PORTAL_ALLOWED_ORIGIN", "*"),
		GrantDuration: envDuration("PORTAL_GRANT_DURATION", services.DefaultGrantDuration),
		SweepInterval: envDuration("PORTAL_SWEEP_INTERVAL", time.Hour),
		LogFile:       env("PORTAL_LOG_FILE", "portal.log"),
		Port:          port,
	}

	if c.Dsn == "" {
		log.Panic("PORTAL_DB_DSN must be set")
	}
	if c.JwtSecret == "" {
		log.Panic("PORTAL_JWT_SECRET must be set")
	}
	if c.AdminPassword == "" {
		log.Panic("PORTAL_ADMIN_PASSWORD must be set")
	}

	return c
}

func initLogging(logFile *os.File) {
	log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))
	slog.Info("logging initialized", "log_file", logFile.Name())
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Panicf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(schema.AllTables()...)
	if err != nil {
		log.Panicf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	c := loadConfig()

	logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Panicf("error opening log file: %v", err)
	}
	defer logFile.Close()

	initLogging(logFile)

	db := initDb(c.Dsn)

	jwtManager := auth.NewJwtManager([]byte(c.JwtSecret))
	userAuth := auth.NewBasicIdentityProvider(db, jwtManager)

	portal := services.NewPortal(db, userAuth, services.Options{GrantDuration: c.GrantDuration})

	portal.InitAdmin(c.AdminUsername, c.AdminPassword)

	if c.CatalogPath != "" {
		datasets, err := catalog.Load(c.CatalogPath)
		if err != nil {
			log.Panicf("error loading dataset catalog: %v", err)
		}
		if err := datasets.Seed(db); err != nil {
			log.Panicf("error seeding dataset catalog: %v", err)
		}
	}

	go portal.StartExpirySweep(c.SweepInterval)
	defer portal.StopExpirySweep()

	m := metrics.New()

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{c.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(m.Middleware())
	r.Mount("/api", portal.Routes())
	r.Handle("/metrics", m.Handler())

	slog.Info("starting server", "port", c.Port)
	err = http.ListenAndServe(fmt.Sprintf(":%v", c.Port), r)
	if err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

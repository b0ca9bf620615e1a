package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const maxConnectBackoff = 30 * time.Second

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

func init() {
	// Load env from .env
	godotenv.Load()
	// Do NOT block startup in init() waiting for the database. Cloud Run
	// requires the container to start listening on $PORT quickly.
}

// dsn builds the mysql connection string from env. When DB_HOST is a
// "/cloudsql/<CONNECTION_NAME>" path the Cloud SQL Auth Proxy exposes a
// Unix socket there instead of a TCP endpoint.
func dsn() string {
	host := os.Getenv("DB_HOST")

	network := "tcp"
	address := fmt.Sprintf("%s:%s", host, os.Getenv("DB_PORT"))
	if strings.HasPrefix(host, "/cloudsql/") {
		network = "unix"
		address = host
	}

	return fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		network,
		address,
		os.Getenv("DB_NAME"),
	)
}

// ConnectDatabaseWithRetry connects and sets the global DB, retrying with
// capped exponential backoff until it succeeds. Call this from main() AFTER
// the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	databaseConfig := dsn()

	for attempt := 1; ; attempt++ {
		var err error
		db, err = gorm.Open(mysql.Open(databaseConfig), gormConfig())
		if err == nil {
			tunePool(db)
			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			log.Printf("connected to database (attempt=%d)", attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > maxConnectBackoff {
			sleep = maxConnectBackoff
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// tunePool applies database/sql pool limits from env. The defaults fit one
// Cloud Run instance against a small Cloud SQL tier.
func tunePool(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil || sqlDB == nil {
		return
	}
	if maxOpen := intFromEnv("DB_MAX_OPEN_CONNS", 50); maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle := intFromEnv("DB_MAX_IDLE_CONNS", 25); maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if life := intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300); life > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(life) * time.Second)
	}
	if idle := intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60); idle > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(idle) * time.Second)
	}
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func gormConfig() *gorm.Config {
	slowThreshold := time.Duration(intFromEnv("DB_SLOW_QUERY_MS", 1000)) * time.Millisecond
	return &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				Colorful:      false,
				LogLevel:      logger.Error,
				SlowThreshold: slowThreshold,
			},
		),
		NamingStrategy: &schema.NamingStrategy{
			SingularTable: false,
			TablePrefix:   "",
		},
	}
}

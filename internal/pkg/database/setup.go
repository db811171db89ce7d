package database

import (
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/config"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

// GetDB returns the shared database handle
func GetDB() *gorm.DB {
	return DB
}

func SetupDatabase(cfg config.Database) *gorm.DB {
	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       cfg.DSN(), // data source name
			DefaultStringSize:         256,       // default size for string fields
			DisableDatetimePrecision:  true,      // disable datetime precision, which not supported before MySQL 5.6
			DontSupportRenameIndex:    true,      // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,      // `change` when rename column, rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false,     // auto configure based on currently MySQL version
		}), Config())
		if err == nil {
			if cfg.AutoMigrate {
				if err := Migrate(DB); err != nil {
					panic(err)
				}
			}
			return DB
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retry number %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	panic(err)
}

// Config is the gorm configuration shared by every dialect. Constraint
// violations are translated into gorm sentinel errors.
func Config() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Migrate creates or updates the schema. Sessions precede enrollments so the
// foreign key can be created.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Session{},
		&models.Enrollment{},
		&models.AdminUser{},
		&models.AdminActivity{},
		&models.PaymentWebhookEvent{},
	)
}

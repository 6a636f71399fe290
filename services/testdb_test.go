package services

import (
	"testing"

	"stayza-server/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A fresh :memory: database exists per connection; pin the pool to one.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access connection pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Booking{},
		&models.PaymentRecord{},
		&models.RefundEntry{},
		&models.AvailabilityReservation{},
		&models.Dispute{},
		&models.Notification{},
		&models.AuditLog{},
	); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	return db
}

package db

import (
	"log"

	"github.com/agriassist/agri-platform/internal/classify"
	"github.com/agriassist/agri-platform/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := gdb.AutoMigrate(&models.User{}, &classify.Job{}); err != nil {
		log.Fatalf("db automigrate: %v", err)
	}
	return gdb
}

package db

import (
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/insightdeck/insightdeck/internal/conversation"
	"github.com/insightdeck/insightdeck/internal/history"
	"github.com/insightdeck/insightdeck/internal/knowledge"
	"github.com/insightdeck/insightdeck/internal/policycache"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("database connect failed")
	}
	if err := Migrate(gdb); err != nil {
		logrus.WithError(err).Fatal("database migration failed")
	}
	return gdb
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&conversation.Conversation{},
		&conversation.Message{},
		&conversation.GeneratedContent{},
		&knowledge.File{},
		&history.Record{},
		&policycache.Entry{},
	)
}

package service

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"task-planner/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB("file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Package testutil 提供仓库与服务层测试使用的内存数据库和 Redis
package testutil

import (
	"fmt"
	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/pkg/database"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB 每个测试一个独立的内存 SQLite，单连接保证语句串行执行
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:stackcommunity_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func NewRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

// SeedUser 直接写入一个用户，密码字段不做加密
func SeedUser(t testing.TB, db *gorm.DB, username string, points int, badges ...model.Badge) *model.User {
	t.Helper()

	if badges == nil {
		badges = []model.Badge{}
	}
	u := &model.User{
		Username: username,
		Name:     username,
		Email:    username + "@example.com",
		Password: "x",
		Role:     model.Member,
		Points:   &points,
		Badges:   badges,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

// SeedCommunity 创建社区，admin 自动成为成员
func SeedCommunity(t testing.TB, db *gorm.DB, name, admin string) *model.Community {
	t.Helper()

	c := &model.Community{Name: name, Admin: admin, ParticipantCount: 1}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return tx.Create(&model.CommunityMember{CommunityID: c.ID, Username: admin}).Error
	})
	if err != nil {
		t.Fatalf("seed community %s: %v", name, err)
	}
	return c
}

// 手动清理历史数据中的同名重复徽章
//
// 线上接口 POST /api/admin/users/:username/badges/dedupe 一次只处理一个用户，
// 此脚本用于全量修复，例如迁移旧数据之后。
//
// 用法: go run scripts/dedupe_badges.go [-batch 200] [-report dedupe_report.yaml]

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"stackcommunity_backend/internal/config"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/internal/service"
	"stackcommunity_backend/pkg/database"
	"stackcommunity_backend/pkg/logger"
	"time"

	"gopkg.in/yaml.v3"
)

type userFix struct {
	Username string `yaml:"username"`
	Before   int    `yaml:"before"`
	After    int    `yaml:"after"`
}

type report struct {
	StartedAt time.Time `yaml:"started_at"`
	Scanned   int       `yaml:"scanned"`
	Fixed     []userFix `yaml:"fixed"`
}

func main() {
	batch := flag.Int("batch", 200, "每批读取的用户数")
	reportPath := flag.String("report", "", "将修复结果写入 YAML 文件")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	users := repository.NewUserRepository(db)
	badges := service.NewBadgeService(users, repository.NewCommunityRepository(db),
		service.NewMilestoneTable(cfg.Gamification.Milestones), cfg.Gamification.MaxAwardRetries)

	ctx := context.Background()
	rep := report{StartedAt: time.Now(), Fixed: []userFix{}}

	log.Println("开始清理重复徽章...")
	var cursor uint
	for {
		page, err := users.FindBatchAfter(ctx, cursor, *batch)
		if err != nil {
			log.Fatalf("读取用户失败: %v", err)
		}
		if len(page) == 0 {
			break
		}

		for _, u := range page {
			rep.Scanned++
			before := len(u.Badges)
			if before == 0 {
				continue
			}
			badges.DeduplicateBadges(ctx, u.Username)
			if after := len(badges.GetUserBadges(ctx, u.Username)); after != before {
				rep.Fixed = append(rep.Fixed, userFix{Username: u.Username, Before: before, After: after})
			}
		}
		cursor = page[len(page)-1].ID
	}
	log.Printf("完成！扫描 %d 个用户，修复 %d 个", rep.Scanned, len(rep.Fixed))

	if *reportPath == "" {
		return
	}
	out, err := yaml.Marshal(rep)
	if err != nil {
		log.Fatalf("生成报告失败: %v", err)
	}
	if err := os.WriteFile(*reportPath, out, 0o644); err != nil {
		log.Fatalf("写入报告失败: %v", err)
	}
}

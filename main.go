// @title 编程练习平台后端 API
// @version 1.0
// @description 题库练习、测试组卷与成绩统计服务。
// @termsOfService http://swagger.io/terms/

// @contact.name API支持
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:5000
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"edu_practice_backend/internal/app"
	"edu_practice_backend/internal/config"
	"edu_practice_backend/pkg/logger"
	"flag"
	"log"

	"go.uber.org/zap"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	seed := flag.Bool("seed", false, "导入 database.seed_file 指定的初始数据")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly
	cfg.Seed = *seed

	// 迁移完成后直接退出
	if cfg.MigrateOnly {
		logger.InitLogger(cfg)
		db, err := app.PrepareDatabase(cfg)
		if err != nil {
			logger.Log.Fatal("Database migration failed", zap.Error(err))
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		logger.Log.Info("数据库迁移完成，退出程序")
		_ = logger.Log.Sync()
		return
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to start application", zap.Error(err))
	}

	application.Run()
}

// Package database 管理 MySQL 与 Redis 的连接初始化。
package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"insurapolis-go/pkg/log"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接。
// TranslateError 打开后，唯一键冲突统一表现为 gorm.ErrDuplicatedKey，
// 仓库层据此把约束冲突翻译为领域错误。
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("MySQL database connected successfully")
}

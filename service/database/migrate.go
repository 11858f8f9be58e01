/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责创建和更新扫描相关表结构
 * @architecture 数据访问层 - 迁移管理
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 应用启动时执行数据库迁移
 * @rules 确保数据库结构与模型定义保持一致
 * @dependencies datascan-service/service/models, gorm.io/gorm
 * @refs service/init.go
 */

package database

import (
	"log"

	"gorm.io/gorm"

	"datascan-service/service/models"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始数据库迁移...")

	// 扫描记录与审计相关表
	err := db.AutoMigrate(
		&models.ScanRecord{},
		&models.AuditLog{},
	)
	if err != nil {
		return err
	}

	// 访问控制相关表
	err = db.AutoMigrate(
		&models.ApiKey{},
	)
	if err != nil {
		return err
	}

	log.Println("数据库迁移完成")
	return nil
}

// InitializeData 初始化基础数据
func InitializeData(db *gorm.DB) error {
	log.Println("开始初始化基础数据...")

	// 记录服务启动审计事件，保证审计链路从启动开始可追溯
	startup := &models.AuditLog{
		Event: "service_started",
		Detail: models.JSONB{
			"component": "datascan-service",
		},
	}
	if err := db.Create(startup).Error; err != nil {
		return err
	}

	log.Println("基础数据初始化完成")
	return nil
}

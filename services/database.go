package services

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"blueprint-backend/models"
)

// DatabaseOptions - DB 접속 설정
type DatabaseOptions struct {
	Driver     string // "mysql" | "sqlite"
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SQLitePath string
	Debug      bool // SQL 로그 출력
}

// DSN - MySQL 접속 문자열
func (o DatabaseOptions) DSN() string {
	port := o.Port
	if port == 0 {
		port = 3306 // 기본 포트
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		o.User, o.Password, o.Host, port, o.Name)
}

// OpenDatabase connects with the configured driver and migrates the floor
// and event log tables.
func OpenDatabase(opts DatabaseOptions, logger *log.Logger) (*gorm.DB, error) {
	logger = orDiscard(logger).WithPrefix("db")

	level := gormlogger.Silent
	if opts.Debug {
		level = gormlogger.Info
	}
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(level)}

	var (
		dialector gorm.Dialector
		target    string
	)
	switch opts.Driver {
	case "mysql":
		if opts.Host == "" || opts.User == "" || opts.Name == "" {
			return nil, models.NewError(models.ErrCodeInvalidInput,
				"MySQL settings incomplete: MYSQL_HOST, MYSQL_USER, MYSQL_DATABASE are required")
		}
		dialector = mysql.Open(opts.DSN())
		target = fmt.Sprintf("%s@%s:%d/%s", opts.User, opts.Host, opts.Port, opts.Name)
	case "sqlite", "":
		path := opts.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		dialector = sqlite.Open(path)
		target = path
	default:
		return nil, models.NewError(models.ErrCodeInvalidInput, "unknown database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, models.WrapError(models.ErrCodeInternal, err, "connect %s", opts.Driver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, models.WrapError(models.ErrCodeInternal, err, "database handle")
	}
	if opts.Driver != "mysql" {
		// sqlite 메모리 DB는 연결마다 별도 DB가 된다
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	// AutoMigrate - 테이블 자동 생성
	if err := db.AutoMigrate(&models.Floor{}, &models.DeviceLog{}); err != nil {
		return nil, models.WrapError(models.ErrCodeInternal, err, "migrate")
	}

	logger.Info("database ready", "driver", dialector.Name(), "target", target)
	return db, nil
}

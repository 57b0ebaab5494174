package repository

import (
	"os"
	"path/filepath"

	logging "github.com/ipfs/go-log/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ns-keys/internal/models"
)

var log = logging.Logger("repository")

const dbPrefix = "ns_keys_"

// Store 数据存储结构
// 每个用户一个 SQLite 数据库，封装 GORM 连接
type Store struct {
	DB   *gorm.DB // GORM 数据库实例
	Path string   // 数据库文件路径
}

// DBFileName 返回用户数据库文件名
func DBFileName(uid string) string {
	return dbPrefix + uid + ".db"
}

// DefaultDir 默认数据目录 ~/.ns-keys
func DefaultDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("DefaultDir: failed to get home directory: %v", err)
		return ".ns-keys"
	}
	return filepath.Join(homeDir, ".ns-keys")
}

// OpenStore 打开用户数据库
// 参数：
//   - dir: 数据目录，为空时使用默认目录
//   - uid: 用户 ID，用作数据库命名空间
//
// 返回：Store 实例或错误
func OpenStore(dir, uid string) (*Store, error) {
	log.Debugf("OpenStore: opening SQLite database for %s", uid)

	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		log.Errorf("OpenStore: failed to create directory %s: %v", dir, err)
		return nil, err
	}
	dbPath := filepath.Join(dir, DBFileName(uid))

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Errorf("OpenStore: failed to open database: %v", err)
		return nil, err
	}

	// 自动迁移所有数据表
	if err = db.AutoMigrate(
		&models.KEKState{},
		&models.SeedEntry{},
		&models.SeedEntryBK{},
		&models.COSEKeyEntry{},
		&models.COSEKeyEntryBK{},
	); err != nil {
		log.Errorf("OpenStore: auto migration failed: %v", err)
		closeDB(db)
		return nil, err
	}

	log.Debugf("OpenStore: SQLite database opened successfully at %s", dbPath)
	return &Store{DB: db, Path: dbPath}, nil
}

// Close 关闭底层数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

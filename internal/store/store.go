package store

import (
	"gorm.io/gorm"

	"astro/pkg/logger"
)

// Store 封装了所有关系数据的读写操作。
type Store struct {
	DB  *gorm.DB
	log *logger.Logger
}

// New 创建一个新的 Store。
func New(db *gorm.DB) *Store {
	return &Store{DB: db, log: logger.New("store")}
}

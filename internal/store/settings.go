package store

import (
	"errors"

	"gorm.io/gorm"

	"astro/internal/models"
)

// GetSetting 读取一条键值配置，键不存在时返回 fallback。
func (s *Store) GetSetting(key, fallback string) (string, error) {
	var setting models.Setting
	err := s.DB.First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	if setting.Value == "" {
		return fallback, nil
	}
	return setting.Value, nil
}

// PutSetting 写入一条键值配置，已存在时覆盖。
func (s *Store) PutSetting(key, value string) error {
	setting := models.Setting{Key: key, Value: value}
	return s.DB.Save(&setting).Error
}

// AllSettings 返回所有键值配置。
func (s *Store) AllSettings() (map[string]string, error) {
	var settings []models.Setting
	if err := s.DB.Find(&settings).Error; err != nil {
		return nil, err
	}
	result := make(map[string]string, len(settings))
	for _, setting := range settings {
		result[setting.Key] = setting.Value
	}
	return result, nil
}

package store

import (
	"errors"

	"gorm.io/gorm"

	"astro/internal/models"
)

// ListFeeds 返回指定 Universe 下的所有信息流。
func (s *Store) ListFeeds(universeID uint) ([]models.Feed, error) {
	var feeds []models.Feed
	if err := s.DB.Where("universe_id = ?", universeID).
		Order("pinned DESC, created_at DESC").Find(&feeds).Error; err != nil {
		return nil, err
	}
	return feeds, nil
}

// GetFeed 通过 ID 查找信息流，不存在时返回 nil。
func (s *Store) GetFeed(id uint) (*models.Feed, error) {
	var feed models.Feed
	if err := s.DB.First(&feed, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &feed, nil
}

// CreateFeed 创建一个信息流。
func (s *Store) CreateFeed(feed *models.Feed) error {
	return s.DB.Create(feed).Error
}

// UpdateFeed 更新一个信息流。
func (s *Store) UpdateFeed(feed *models.Feed) error {
	return s.DB.Save(feed).Error
}

// SetFeedPinned 设置信息流的置顶状态。
func (s *Store) SetFeedPinned(id uint, pinned bool) error {
	return s.DB.Model(&models.Feed{}).Where("id = ?", id).Update("pinned", pinned).Error
}

// PinnedFeeds 返回 Universe 下所有置顶信息流。
func (s *Store) PinnedFeeds(universeID uint) ([]models.Feed, error) {
	var feeds []models.Feed
	if err := s.DB.Where("universe_id = ? AND pinned = ?", universeID, true).
		Order("created_at DESC").Find(&feeds).Error; err != nil {
		return nil, err
	}
	return feeds, nil
}

// DeleteFeed 删除信息流及其所有产物记录，返回产物的文件路径供磁盘清理。
func (s *Store) DeleteFeed(id uint) ([]string, error) {
	var artifacts []models.FeedArtifact
	if err := s.DB.Where("feed_id = ?", id).Find(&artifacts).Error; err != nil {
		return nil, err
	}
	var paths []string
	for _, a := range artifacts {
		if a.FilePath != "" {
			paths = append(paths, a.FilePath)
		}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("feed_id = ?", id).Delete(&models.FeedArtifact{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Feed{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// ListFeedArtifacts 返回信息流的产物，按时间倒序。
func (s *Store) ListFeedArtifacts(feedID uint) ([]models.FeedArtifact, error) {
	var artifacts []models.FeedArtifact
	if err := s.DB.Where("feed_id = ?", feedID).Order("created_at DESC").Find(&artifacts).Error; err != nil {
		return nil, err
	}
	return artifacts, nil
}

// GetFeedArtifact 通过 ID 查找产物，不存在时返回 nil。
func (s *Store) GetFeedArtifact(id uint) (*models.FeedArtifact, error) {
	var artifact models.FeedArtifact
	if err := s.DB.First(&artifact, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &artifact, nil
}

// CreateFeedArtifact 记录一条产物。
func (s *Store) CreateFeedArtifact(artifact *models.FeedArtifact) error {
	return s.DB.Create(artifact).Error
}

// DeleteFeedArtifact 删除一条产物记录。
func (s *Store) DeleteFeedArtifact(id uint) error {
	return s.DB.Delete(&models.FeedArtifact{}, id).Error
}

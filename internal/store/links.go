package store

import (
	"errors"

	"gorm.io/gorm"

	"astro/internal/models"
)

// ListLinks 返回指定 Universe 下的所有书签，置顶的在前。
func (s *Store) ListLinks(universeID uint, categoryID *uint) ([]models.Link, error) {
	query := s.DB.Where("universe_id = ?", universeID)
	if categoryID != nil {
		ids, err := s.DescendantCategoryIDs(*categoryID, universeID)
		if err != nil {
			return nil, err
		}
		query = query.Where("category_id IN ?", ids)
	}
	var links []models.Link
	if err := query.Order("pinned DESC, created_at DESC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// GetLink 通过 ID 查找书签，不存在时返回 nil。
func (s *Store) GetLink(id uint) (*models.Link, error) {
	var link models.Link
	if err := s.DB.First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// CreateLink 创建一条书签。
func (s *Store) CreateLink(link *models.Link) error {
	return s.DB.Create(link).Error
}

// UpdateLink 更新一条书签。
func (s *Store) UpdateLink(link *models.Link) error {
	return s.DB.Save(link).Error
}

// SetLinkPinned 设置书签的置顶状态。
func (s *Store) SetLinkPinned(id uint, pinned bool) error {
	return s.DB.Model(&models.Link{}).Where("id = ?", id).Update("pinned", pinned).Error
}

// DeleteLink 删除一条书签。
func (s *Store) DeleteLink(id uint) error {
	return s.DB.Delete(&models.Link{}, id).Error
}

// PinnedLinks 返回 Universe 下所有置顶书签。
func (s *Store) PinnedLinks(universeID uint) ([]models.Link, error) {
	var links []models.Link
	if err := s.DB.Where("universe_id = ? AND pinned = ?", universeID, true).
		Order("created_at DESC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

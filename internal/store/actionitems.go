package store

import (
	"errors"

	"gorm.io/gorm"

	"astro/internal/models"
)

// ErrDuplicateLink 在重复关联同一目标时返回。
var ErrDuplicateLink = errors.New("action item is already linked to this target")

// ListActionItems 返回指定 Universe 下的所有待办事项。
// 未完成的在前，热点优先，然后按截止时间升序。
func (s *Store) ListActionItems(universeID uint, includeCompleted bool) ([]models.ActionItem, error) {
	query := s.DB.Preload("Links").Where("universe_id = ?", universeID)
	if !includeCompleted {
		query = query.Where("completed = ?", false)
	}
	var items []models.ActionItem
	if err := query.Order("completed ASC, hot DESC, due_date ASC, created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetActionItem 通过 ID 查找待办事项，附带关联。不存在时返回 nil。
func (s *Store) GetActionItem(id uint) (*models.ActionItem, error) {
	var item models.ActionItem
	if err := s.DB.Preload("Links").First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// CreateActionItem 创建一条待办事项。
func (s *Store) CreateActionItem(item *models.ActionItem) error {
	return s.DB.Create(item).Error
}

// UpdateActionItem 更新一条待办事项。
func (s *Store) UpdateActionItem(item *models.ActionItem) error {
	return s.DB.Save(item).Error
}

// DeleteActionItem 删除待办事项及其关联。
func (s *Store) DeleteActionItem(id uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("action_item_id = ?", id).Delete(&models.ActionItemLink{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ActionItem{}, id).Error
	})
}

// AddActionItemLink 把待办事项关联到笔记或文档，重复关联被拒绝。
func (s *Store) AddActionItemLink(link *models.ActionItemLink) error {
	query := s.DB.Model(&models.ActionItemLink{}).Where("action_item_id = ?", link.ActionItemID)
	if link.NoteID != nil {
		query = query.Where("note_id = ?", *link.NoteID)
	} else if link.DocumentID != nil {
		query = query.Where("document_id = ?", *link.DocumentID)
	} else {
		return errors.New("link target is required")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateLink
	}
	return s.DB.Create(link).Error
}

// DeleteActionItemLink 删除一条关联。
func (s *Store) DeleteActionItemLink(id uint) error {
	return s.DB.Delete(&models.ActionItemLink{}, id).Error
}

// ActionItemsLinkedToNote 返回关联到某条笔记的所有待办事项。
func (s *Store) ActionItemsLinkedToNote(noteID uint) ([]models.ActionItem, error) {
	var itemIDs []uint
	if err := s.DB.Model(&models.ActionItemLink{}).Where("note_id = ?", noteID).
		Pluck("action_item_id", &itemIDs).Error; err != nil {
		return nil, err
	}
	if len(itemIDs) == 0 {
		return []models.ActionItem{}, nil
	}
	var items []models.ActionItem
	if err := s.DB.Where("id IN ?", itemIDs).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

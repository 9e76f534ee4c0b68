package store

import (
	"errors"

	"gorm.io/gorm"

	"astro/internal/models"
)

// ErrLastUniverse 在尝试删除最后一个 Universe 时返回。
var ErrLastUniverse = errors.New("cannot delete the last universe")

// ListUniverses 返回所有 Universe，按创建时间升序。
func (s *Store) ListUniverses() ([]models.Universe, error) {
	var universes []models.Universe
	if err := s.DB.Order("created_at ASC").Find(&universes).Error; err != nil {
		return nil, err
	}
	return universes, nil
}

// GetUniverse 通过 ID 查找 Universe，不存在时返回 nil。
func (s *Store) GetUniverse(id uint) (*models.Universe, error) {
	var universe models.Universe
	if err := s.DB.First(&universe, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &universe, nil
}

// CreateUniverse 创建一个新的 Universe。
func (s *Store) CreateUniverse(name string) (*models.Universe, error) {
	universe := &models.Universe{Name: name}
	if err := s.DB.Create(universe).Error; err != nil {
		return nil, err
	}
	return universe, nil
}

// RenameUniverse 修改 Universe 的名称。
func (s *Store) RenameUniverse(id uint, name string) (*models.Universe, error) {
	universe, err := s.GetUniverse(id)
	if err != nil {
		return nil, err
	}
	if universe == nil {
		return nil, errors.New("universe not found")
	}
	universe.Name = name
	if err := s.DB.Save(universe).Error; err != nil {
		return nil, err
	}
	return universe, nil
}

// UniversePurge 列出级联删除移除的实体 ID，供调用方清理向量分块。
type UniversePurge struct {
	NoteIDs       []uint
	ActionItemIDs []uint
	DocumentIDs   []uint
	ArtifactIDs   []uint
}

// DeleteUniverse 删除一个 Universe 并级联删除其全部内容，
// 返回被移除的实体 ID。最后一个 Universe 不允许删除。
func (s *Store) DeleteUniverse(id uint) (*UniversePurge, error) {
	var count int64
	if err := s.DB.Model(&models.Universe{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count <= 1 {
		return nil, ErrLastUniverse
	}

	purge := &UniversePurge{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Note{}).Where("universe_id = ?", id).Pluck("id", &purge.NoteIDs).Error; err != nil {
			return err
		}
		if len(purge.NoteIDs) > 0 {
			if err := tx.Where("note_id IN ?", purge.NoteIDs).Delete(&models.NoteImage{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.ActionItem{}).Where("universe_id = ?", id).Pluck("id", &purge.ActionItemIDs).Error; err != nil {
			return err
		}
		if len(purge.ActionItemIDs) > 0 {
			if err := tx.Where("action_item_id IN ?", purge.ActionItemIDs).Delete(&models.ActionItemLink{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Document{}).Where("universe_id = ?", id).Pluck("id", &purge.DocumentIDs).Error; err != nil {
			return err
		}

		var feedIDs []uint
		if err := tx.Model(&models.Feed{}).Where("universe_id = ?", id).Pluck("id", &feedIDs).Error; err != nil {
			return err
		}
		if len(feedIDs) > 0 {
			if err := tx.Model(&models.FeedArtifact{}).Where("feed_id IN ?", feedIDs).Pluck("id", &purge.ArtifactIDs).Error; err != nil {
				return err
			}
			if err := tx.Where("feed_id IN ?", feedIDs).Delete(&models.FeedArtifact{}).Error; err != nil {
				return err
			}
		}

		for _, model := range []interface{}{
			&models.Note{}, &models.ActionItem{}, &models.Link{},
			&models.Document{}, &models.Feed{}, &models.Category{},
		} {
			if err := tx.Where("universe_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Universe{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return purge, nil
}

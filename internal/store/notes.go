package store

import (
	"errors"

	"gorm.io/gorm"

	"astro/internal/models"
)

// ListNotes 返回指定 Universe 下的所有笔记，置顶的在前，其余按更新时间倒序。
// categoryID 非空时同时按分类子树过滤。
func (s *Store) ListNotes(universeID uint, categoryID *uint) ([]models.Note, error) {
	query := s.DB.Preload("Images").Where("universe_id = ?", universeID)
	if categoryID != nil {
		ids, err := s.DescendantCategoryIDs(*categoryID, universeID)
		if err != nil {
			return nil, err
		}
		query = query.Where("category_id IN ?", ids)
	}
	var notes []models.Note
	if err := query.Order("pinned DESC, updated_at DESC").Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

// GetNote 通过 ID 查找笔记，附带图片。不存在时返回 nil。
func (s *Store) GetNote(id uint) (*models.Note, error) {
	var note models.Note
	if err := s.DB.Preload("Images").First(&note, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &note, nil
}

// CreateNote 创建一条笔记。
func (s *Store) CreateNote(note *models.Note) error {
	return s.DB.Create(note).Error
}

// UpdateNote 更新一条笔记。
func (s *Store) UpdateNote(note *models.Note) error {
	return s.DB.Save(note).Error
}

// SetNotePinned 设置笔记的置顶状态。
func (s *Store) SetNotePinned(id uint, pinned bool) error {
	return s.DB.Model(&models.Note{}).Where("id = ?", id).Update("pinned", pinned).Error
}

// DeleteNote 删除笔记及其图片记录和待办关联，返回被删图片的文件名
// 供调用方清理磁盘文件。
func (s *Store) DeleteNote(id uint) ([]string, error) {
	var images []models.NoteImage
	if err := s.DB.Where("note_id = ?", id).Find(&images).Error; err != nil {
		return nil, err
	}
	filenames := make([]string, len(images))
	for i, img := range images {
		filenames[i] = img.Filename
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("note_id = ?", id).Delete(&models.NoteImage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("note_id = ?", id).Delete(&models.ActionItemLink{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Note{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return filenames, nil
}

// AddNoteImage 记录一张挂在笔记下的图片。
func (s *Store) AddNoteImage(image *models.NoteImage) error {
	return s.DB.Create(image).Error
}

// GetNoteImage 通过 ID 查找图片记录，不存在时返回 nil。
func (s *Store) GetNoteImage(id uint) (*models.NoteImage, error) {
	var image models.NoteImage
	if err := s.DB.First(&image, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &image, nil
}

// DeleteNoteImage 删除一条图片记录。
func (s *Store) DeleteNoteImage(id uint) error {
	return s.DB.Delete(&models.NoteImage{}, id).Error
}

// PinnedNotes 返回 Universe 下所有置顶笔记。
func (s *Store) PinnedNotes(universeID uint) ([]models.Note, error) {
	var notes []models.Note
	if err := s.DB.Where("universe_id = ? AND pinned = ?", universeID, true).
		Order("updated_at DESC").Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

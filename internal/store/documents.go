package store

import (
	"errors"

	"gorm.io/gorm"

	"astro/internal/models"
)

// ListDocuments 返回指定 Universe 下的所有文档元数据。
func (s *Store) ListDocuments(universeID uint, categoryID *uint) ([]models.Document, error) {
	query := s.DB.Where("universe_id = ?", universeID)
	if categoryID != nil {
		ids, err := s.DescendantCategoryIDs(*categoryID, universeID)
		if err != nil {
			return nil, err
		}
		query = query.Where("category_id IN ?", ids)
	}
	var docs []models.Document
	if err := query.Order("pinned DESC, created_at DESC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// GetDocument 通过 ID 查找文档，不存在时返回 nil。
func (s *Store) GetDocument(id uint) (*models.Document, error) {
	var doc models.Document
	if err := s.DB.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// GetDocumentByPath 通过相对路径查找文档，不存在时返回 nil。
func (s *Store) GetDocumentByPath(path string) (*models.Document, error) {
	var doc models.Document
	if err := s.DB.Where("path = ?", path).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// UpsertDocument 按路径创建或返回已有的文档记录。
func (s *Store) UpsertDocument(doc *models.Document) error {
	var existing models.Document
	err := s.DB.Where("path = ?", doc.Path).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.DB.Create(doc).Error
	}
	if err != nil {
		return err
	}
	*doc = existing
	return nil
}

// UpdateDocument 更新文档元数据。
func (s *Store) UpdateDocument(doc *models.Document) error {
	return s.DB.Save(doc).Error
}

// SetDocumentPinned 设置文档的置顶状态。
func (s *Store) SetDocumentPinned(id uint, pinned bool) error {
	return s.DB.Model(&models.Document{}).Where("id = ?", id).Update("pinned", pinned).Error
}

// DeleteDocument 删除文档元数据及指向它的待办关联。
func (s *Store) DeleteDocument(id uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.ActionItemLink{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Document{}, id).Error
	})
}

// PinnedDocuments 返回 Universe 下所有置顶文档。
func (s *Store) PinnedDocuments(universeID uint) ([]models.Document, error) {
	var docs []models.Document
	if err := s.DB.Where("universe_id = ? AND pinned = ?", universeID, true).
		Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

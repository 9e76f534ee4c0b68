package store

import (
	"errors"

	"gorm.io/gorm"

	"astro/internal/models"
)

// ListCategories 返回指定 Universe 下的所有分类，按名称升序。
func (s *Store) ListCategories(universeID uint) ([]models.Category, error) {
	var categories []models.Category
	if err := s.DB.Where("universe_id = ?", universeID).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// GetCategory 通过 ID 查找分类，不存在时返回 nil。
func (s *Store) GetCategory(id uint) (*models.Category, error) {
	var category models.Category
	if err := s.DB.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

// CreateCategory 创建一个分类。
func (s *Store) CreateCategory(category *models.Category) error {
	return s.DB.Create(category).Error
}

// UpdateCategory 更新分类。
func (s *Store) UpdateCategory(category *models.Category) error {
	return s.DB.Save(category).Error
}

// DeleteCategory 删除一个分类及其整棵子树。
// 引用被删分类的实体退回到未分类状态。
func (s *Store) DeleteCategory(id uint) error {
	category, err := s.GetCategory(id)
	if err != nil {
		return err
	}
	if category == nil {
		return errors.New("category not found")
	}
	ids, err := s.DescendantCategoryIDs(id, category.UniverseID)
	if err != nil {
		return err
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.Note{}, &models.ActionItem{}, &models.Link{},
			&models.Document{}, &models.Feed{},
		} {
			if err := tx.Model(model).Where("category_id IN ?", ids).Update("category_id", nil).Error; err != nil {
				return err
			}
		}
		return tx.Where("id IN ?", ids).Delete(&models.Category{}).Error
	})
}

// DescendantCategoryIDs 返回分类自身及其所有后代的 ID 集合。
func (s *Store) DescendantCategoryIDs(id, universeID uint) ([]uint, error) {
	categories, err := s.ListCategories(universeID)
	if err != nil {
		return nil, err
	}

	children := make(map[uint][]uint, len(categories))
	for _, c := range categories {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	ids := []uint{id}
	queue := []uint{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			ids = append(ids, child)
			queue = append(queue, child)
		}
	}
	return ids, nil
}

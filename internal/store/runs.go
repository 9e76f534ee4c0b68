package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"astro/internal/models"
)

// CreateRun 为活动创建一条 running 状态的运行记录。
func (s *Store) CreateRun(activityID uint, model string) (*models.ActivityRun, error) {
	run := &models.ActivityRun{
		ActivityID: activityID,
		Status:     models.RunStatusRunning,
		Model:      model,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.DB.Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// AppendResponse 追加一条任务产出。
func (s *Store) AppendResponse(response *models.ActivityResponse) error {
	return s.DB.Create(response).Error
}

// FinishRun 把运行标记为终态 (completed 或 failed)。
func (s *Store) FinishRun(runID uint, status, errMsg string) error {
	now := time.Now().UTC()
	return s.DB.Model(&models.ActivityRun{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"status":       status,
		"error":        errMsg,
		"completed_at": &now,
	}).Error
}

// GetRun 返回运行记录及按插入顺序排列的产出。
func (s *Store) GetRun(runID uint) (*models.ActivityRun, error) {
	var run models.ActivityRun
	err := s.DB.Preload("Responses", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&run, runID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// ListRuns 返回活动的运行历史，最新的在前。
func (s *Store) ListRuns(activityID uint, limit int) ([]models.ActivityRun, error) {
	query := s.DB.Where("activity_id = ?", activityID).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var runs []models.ActivityRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// LastRunStart 返回活动最近一次运行的开始时间，从未运行时返回 nil。
func (s *Store) LastRunStart(activityID uint) (*time.Time, error) {
	var run models.ActivityRun
	err := s.DB.Where("activity_id = ?", activityID).Order("started_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := run.StartedAt
	return &t, nil
}

// DeleteRun 删除一条运行记录及其产出。
func (s *Store) DeleteRun(runID uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&models.ActivityResponse{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ActivityRun{}, runID).Error
	})
}

// ClearRuns 清空活动的全部运行历史。
func (s *Store) ClearRuns(activityID uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var runIDs []uint
		if err := tx.Model(&models.ActivityRun{}).Where("activity_id = ?", activityID).Pluck("id", &runIDs).Error; err != nil {
			return err
		}
		if len(runIDs) > 0 {
			if err := tx.Where("run_id IN ?", runIDs).Delete(&models.ActivityResponse{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("activity_id = ?", activityID).Delete(&models.ActivityRun{}).Error
	})
}

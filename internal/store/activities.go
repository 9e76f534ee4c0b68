package store

import (
	"errors"

	"gorm.io/gorm"

	"astro/internal/models"
)

// TaskInput 描述活动中的一步，Create/Update 时整表替换。
type TaskInput struct {
	MemberID    uint   `json:"member_id"`
	Instruction string `json:"instruction"`
}

// ListActivities 返回所有活动及其任务链。
func (s *Store) ListActivities() ([]models.Activity, error) {
	var activities []models.Activity
	err := s.DB.Preload("Tasks", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Order("created_at DESC").Find(&activities).Error
	if err != nil {
		return nil, err
	}
	s.attachMembers(activities)
	return activities, nil
}

// GetActivity 通过 ID 查找活动，附带按位置排序的任务和成员信息。
func (s *Store) GetActivity(id uint) (*models.Activity, error) {
	var activity models.Activity
	err := s.DB.Preload("Tasks", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&activity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	activities := []models.Activity{activity}
	s.attachMembers(activities)
	return &activities[0], nil
}

// attachMembers 为任务填充成员信息。
func (s *Store) attachMembers(activities []models.Activity) {
	memberIDs := map[uint]bool{}
	for _, a := range activities {
		for _, t := range a.Tasks {
			memberIDs[t.MemberID] = true
		}
	}
	if len(memberIDs) == 0 {
		return
	}
	ids := make([]uint, 0, len(memberIDs))
	for id := range memberIDs {
		ids = append(ids, id)
	}
	var members []models.TeamMember
	if err := s.DB.Where("id IN ?", ids).Find(&members).Error; err != nil {
		return
	}
	byID := make(map[uint]*models.TeamMember, len(members))
	for i := range members {
		byID[members[i].ID] = &members[i]
	}
	for ai := range activities {
		for ti := range activities[ai].Tasks {
			activities[ai].Tasks[ti].Member = byID[activities[ai].Tasks[ti].MemberID]
		}
	}
}

// CreateActivity 创建一个活动及其任务链。
func (s *Store) CreateActivity(activity *models.Activity, tasks []TaskInput) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(activity).Error; err != nil {
			return err
		}
		return createTasks(tx, activity.ID, tasks)
	})
}

// UpdateActivity 更新活动并整表替换其任务链。
// tasks 为 nil 时保留现有任务不动。
func (s *Store) UpdateActivity(activity *models.Activity, tasks []TaskInput) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tasks").Save(activity).Error; err != nil {
			return err
		}
		if tasks == nil {
			return nil
		}
		if err := tx.Where("activity_id = ?", activity.ID).Delete(&models.ActivityTask{}).Error; err != nil {
			return err
		}
		return createTasks(tx, activity.ID, tasks)
	})
}

func createTasks(tx *gorm.DB, activityID uint, tasks []TaskInput) error {
	for i, t := range tasks {
		task := models.ActivityTask{
			ActivityID:  activityID,
			MemberID:    t.MemberID,
			Instruction: t.Instruction,
			Position:    i,
		}
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteActivity 删除活动、其任务链和全部运行历史。
func (s *Store) DeleteActivity(id uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var runIDs []uint
		if err := tx.Model(&models.ActivityRun{}).Where("activity_id = ?", id).Pluck("id", &runIDs).Error; err != nil {
			return err
		}
		if len(runIDs) > 0 {
			if err := tx.Where("run_id IN ?", runIDs).Delete(&models.ActivityResponse{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("activity_id = ?", id).Delete(&models.ActivityRun{}).Error; err != nil {
			return err
		}
		if err := tx.Where("activity_id = ?", id).Delete(&models.ActivityTask{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Activity{}, id).Error
	})
}

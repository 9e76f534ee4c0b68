package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"astro/internal/models"
	"astro/internal/store"
	"astro/pkg/logger"
)

// scheduleIntervals 把调度档位映射成触发间隔。
var scheduleIntervals = map[string]time.Duration{
	models.ScheduleHourly: time.Hour,
	models.ScheduleDaily:  24 * time.Hour,
	models.ScheduleWeekly: 7 * 24 * time.Hour,
}

// Scheduler 周期性扫描活动，把到期的交给 Runner。
// 这是水平触发的检查，不是精确的定时器: 每次扫描判断
// 距上次运行开始是否已超过档位间隔。
type Scheduler struct {
	store  *store.Store
	runner *Runner
	cron   *cron.Cron
	log    *logger.Logger
}

// NewScheduler 创建一个 Scheduler。
func NewScheduler(st *store.Store, runner *Runner) *Scheduler {
	return &Scheduler{
		store:  st,
		runner: runner,
		cron:   cron.New(),
		log:    logger.New("scheduler"),
	}
}

// Start 启动周期扫描。interval 形如 "5m"。
func (s *Scheduler) Start(interval string) error {
	if interval == "" {
		interval = "5m"
	}
	if _, err := s.cron.AddFunc("@every "+interval, s.scan); err != nil {
		return fmt.Errorf("无法注册调度任务: %w", err)
	}
	s.cron.Start()
	s.log.Info(fmt.Sprintf("Activity scheduler started, scanning every %s", interval))
	return nil
}

// Stop 停止扫描，等待在途的扫描结束。
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// scan 找出到期的活动并逐个触发。
func (s *Scheduler) scan() {
	activities, err := s.store.ListActivities()
	if err != nil {
		s.log.Error(fmt.Sprintf("Schedule scan failed: %v", err))
		return
	}

	now := time.Now().UTC()
	for _, activity := range activities {
		if len(activity.Tasks) == 0 {
			continue
		}
		lastStart, err := s.store.LastRunStart(activity.ID)
		if err != nil {
			s.log.Error(fmt.Sprintf("Schedule scan failed for activity %d: %v", activity.ID, err))
			continue
		}
		if !Due(activity.Schedule, lastStart, now) {
			continue
		}

		s.log.Info(fmt.Sprintf("Activity %d ('%s') is due, triggering", activity.ID, activity.Name))
		go func(id uint) {
			if _, err := s.runner.Run(context.Background(), id); err != nil && !errors.Is(err, ErrBusy) {
				s.log.Error(fmt.Sprintf("Scheduled run of activity %d failed: %v", id, err))
			}
		}(activity.ID)
	}
}

// Due 判断某个调度档位的活动现在是否到期。
// manual 永不自动触发；从未运行过的调度活动立即到期。
func Due(schedule string, lastStart *time.Time, now time.Time) bool {
	interval, ok := scheduleIntervals[schedule]
	if !ok {
		return false
	}
	if lastStart == nil {
		return true
	}
	return now.Sub(*lastStart) >= interval
}

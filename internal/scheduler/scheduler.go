package scheduler

import (
	"log"
	"time"

	"github.com/dayflow/internal/recurrence"
	"github.com/dayflow/internal/service"
	"github.com/robfig/cron/v3"
)

// Scheduler 在每日零点后执行预生成，保证新的一天打开即有实例
type Scheduler struct {
	cron     *cron.Cron
	preload  *service.PreloadService
	settings *service.SettingsService
}

// New 构造 Scheduler
func New(preload *service.PreloadService, settings *service.SettingsService) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		preload:  preload,
		settings: settings,
	}
}

// Start 注册定时任务并启动调度
func (s *Scheduler) Start() error {
	// 零点后五分钟运行，避开日期切换瞬间
	if _, err := s.cron.AddFunc("5 0 * * *", s.runPreload); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop 停止调度，等待进行中的任务结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunNow 立即执行一次预生成，启动时调用
func (s *Scheduler) RunNow() {
	s.runPreload()
}

func (s *Scheduler) runPreload() {
	settings, err := s.settings.GetSettings()
	if err != nil {
		log.Printf("scheduler: load settings: %v", err)
		settings = service.AppSettings{
			PreloadHorizonDays:    service.DefaultPreloadHorizonDays,
			PropagationWindowDays: service.DefaultPropagationWindowDays,
		}
	}

	today := recurrence.StartOfDay(time.Now(), time.Local)
	if err := s.preload.EnsureRangeIsPreloaded(today, settings.PreloadHorizonDays); err != nil {
		log.Printf("scheduler: preload range: %v", err)
	}
}

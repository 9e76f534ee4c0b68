package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"astro/internal/models"
	"astro/internal/rag/interfaces"
	"astro/internal/store"
	"astro/pkg/logger"
)

// ErrBusy 在活动已有一次运行在进行中时返回。
var ErrBusy = errors.New("activity is already running")

// AgentBridge 把任务交给外部代理执行 (IRC)。
type AgentBridge interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Runner 按顺序执行活动的任务链。
// 每个成员都能看到此前全部任务的产出；任何一步失败立即终止运行，
// 已落库的产出保留。
type Runner struct {
	store        *store.Store
	retriever    interfaces.Retriever
	chat         interfaces.ChatModel
	bridge       AgentBridge // 可以为 nil，表示未启用 IRC 桥接
	defaultModel string
	topK         int
	log          *logger.Logger

	mu      sync.Mutex
	running map[uint]bool
}

// NewRunner 创建一个 Runner。
func NewRunner(st *store.Store, retriever interfaces.Retriever, chat interfaces.ChatModel, bridge AgentBridge, defaultModel string, topK int) *Runner {
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &Runner{
		store:        st,
		retriever:    retriever,
		chat:         chat,
		bridge:       bridge,
		defaultModel: defaultModel,
		topK:         topK,
		log:          logger.New("activity"),
		running:      map[uint]bool{},
	}
}

// Run 执行一次活动，返回运行记录的 ID。
// 同一活动不允许并发运行；第二次触发返回 ErrBusy。
func (r *Runner) Run(ctx context.Context, activityID uint) (uint, error) {
	r.mu.Lock()
	if r.running[activityID] {
		r.mu.Unlock()
		return 0, ErrBusy
	}
	r.running[activityID] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.running, activityID)
		r.mu.Unlock()
	}()

	return r.execute(ctx, activityID)
}

// Busy 报告活动当前是否有运行在进行中。
func (r *Runner) Busy(activityID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running[activityID]
}

func (r *Runner) execute(ctx context.Context, activityID uint) (uint, error) {
	activity, err := r.store.GetActivity(activityID)
	if err != nil {
		return 0, err
	}
	if activity == nil {
		return 0, errors.New("activity not found")
	}
	if len(activity.Tasks) == 0 {
		return 0, errors.New("activity has no tasks")
	}

	model, err := r.store.GetSetting("selected_model", r.defaultModel)
	if err != nil {
		return 0, err
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = r.defaultModel
	}

	run, err := r.store.CreateRun(activityID, model)
	if err != nil {
		return 0, err
	}
	r.log.Info(fmt.Sprintf("Starting run #%d for '%s': %d task(s), model=%s",
		run.ID, activity.Name, len(activity.Tasks), model))

	if err := r.runTasks(ctx, activity, run, model); err != nil {
		if finishErr := r.store.FinishRun(run.ID, models.RunStatusFailed, err.Error()); finishErr != nil {
			r.log.Error(fmt.Sprintf("Failed to mark run #%d failed: %v", run.ID, finishErr))
		}
		return run.ID, err
	}

	if err := r.store.FinishRun(run.ID, models.RunStatusCompleted, ""); err != nil {
		return run.ID, err
	}
	r.log.Info(fmt.Sprintf("Run #%d completed", run.ID))
	return run.ID, nil
}

// runTasks 按位置顺序执行任务链。任务列表在进入前已快照在 activity 中，
// 运行期间编辑活动不影响本次执行。
func (r *Runner) runTasks(ctx context.Context, activity *models.Activity, run *models.ActivityRun, model string) error {
	// 用活动描述加全部指令做一次共享检索。
	var queryParts []string
	if activity.Prompt != "" {
		queryParts = append(queryParts, activity.Prompt)
	}
	for _, t := range activity.Tasks {
		if t.Instruction != "" {
			queryParts = append(queryParts, t.Instruction)
		}
	}
	ragDocs, err := r.retriever.Retrieve(ctx, strings.Join(queryParts, " "), 0, r.topK)
	if err != nil {
		return err
	}
	ragContext := formatRunContext(ragDocs)

	type step struct {
		task     models.ActivityTask
		member   *models.TeamMember
		response string
	}
	var conversation []step

	for i, task := range activity.Tasks {
		member := task.Member
		if member == nil {
			continue
		}
		r.log.Info(fmt.Sprintf("Run #%d task %d: %s", run.ID, i+1, member.Name))

		var prior []progressEntry
		for _, s := range conversation {
			prior = append(prior, progressEntry{
				MemberName:  s.member.Name,
				MemberTitle: s.member.Title,
				Instruction: s.task.Instruction,
				Response:    s.response,
			})
		}
		userMsg := buildTaskPrompt(activity, task, prior)

		var answer string
		if member.AgentName != "" {
			if r.bridge == nil {
				return errors.New("IRC bridge is not configured")
			}
			answer, err = r.bridge.Ask(ctx, userMsg)
		} else {
			system := buildMemberSystemPrompt(member, ragContext)
			answer, _, err = r.chat.Chat(ctx, model, system, nil, userMsg)
		}
		if err != nil {
			return err
		}

		conversation = append(conversation, step{task: task, member: member, response: answer})

		response := &models.ActivityResponse{
			RunID:       run.ID,
			TaskID:      task.ID,
			MemberID:    member.ID,
			MemberName:  member.Name,
			Instruction: task.Instruction,
			Response:    answer,
		}
		if err := r.store.AppendResponse(response); err != nil {
			return err
		}
	}
	return nil
}

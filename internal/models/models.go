package models

import "time"

// 活动调度方式。manual 的活动只能手动触发。
const (
	ScheduleManual = "manual"
	ScheduleHourly = "hourly"
	ScheduleDaily  = "daily"
	ScheduleWeekly = "weekly"
)

// 活动运行的状态机: running -> completed | failed。
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// 信息流推送内容的类型。
const (
	ArtifactMarkup = "markup"
	ArtifactFile   = "file"
)

// 向量库中分块所属实体的类型。
const (
	EntityNote       = "note"
	EntityActionItem = "action_item"
	EntityMember     = "member"
	EntityDocument   = "document"
	EntityFeed       = "feed_artifact"
)

// Universe 是最顶层的隔离边界。
// 每个知识实体都属于一个 Universe，检索也只在单个 Universe 内进行。
type Universe struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category 是树状的分类节点，ParentID 为空表示根节点。
type Category struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	Emoji      *string   `json:"emoji"`
	ParentID   *uint     `gorm:"index" json:"parent_id"`
	UniverseID uint      `gorm:"index;not null" json:"universe_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Note 是基本的知识单元，Body 为 Markdown 文本。
type Note struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"not null" json:"title"`
	Body       string    `json:"body"`
	CategoryID *uint     `gorm:"index" json:"category_id"`
	Pinned     bool      `gorm:"default:false" json:"pinned"`
	UniverseID uint      `gorm:"index;not null" json:"universe_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Images []NoteImage `gorm:"constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

// NoteImage 记录挂在笔记下的一张图片。
// Filename 是磁盘上的存储名，OriginalName 是上传时的文件名。
type NoteImage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	NoteID       uint      `gorm:"index;not null" json:"note_id"`
	Filename     string    `gorm:"not null" json:"filename"`
	OriginalName string    `json:"original_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Link 是保存的网址书签。
type Link struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	URL         string    `gorm:"not null" json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CategoryID  *uint     `gorm:"index" json:"category_id"`
	Pinned      bool      `gorm:"default:false" json:"pinned"`
	UniverseID  uint      `gorm:"index;not null" json:"universe_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ActionItem 是一条待办事项。
type ActionItem struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Title      string     `gorm:"not null" json:"title"`
	Completed  bool       `gorm:"default:false" json:"completed"`
	Hot        bool       `gorm:"default:false" json:"hot"`
	DueDate    *time.Time `json:"due_date"`
	CategoryID *uint      `gorm:"index" json:"category_id"`
	UniverseID uint       `gorm:"index;not null" json:"universe_id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Links []ActionItemLink `gorm:"constraint:OnDelete:CASCADE" json:"links,omitempty"`
}

// ActionItemLink 把待办事项关联到一条笔记或一个文档。
// NoteID 和 DocumentID 恰好有一个非空。
type ActionItemLink struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ActionItemID uint      `gorm:"index;not null" json:"action_item_id"`
	NoteID       *uint     `gorm:"index" json:"note_id"`
	DocumentID   *uint     `gorm:"index" json:"document_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Document 是磁盘上一个已摄取文件的元数据。
// Path 是相对于文档目录的路径，作为对外的稳定标识。
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Path       string    `gorm:"not null;uniqueIndex" json:"path"`
	CategoryID *uint     `gorm:"index" json:"category_id"`
	Pinned     bool      `gorm:"default:false" json:"pinned"`
	UniverseID uint      `gorm:"index;not null" json:"universe_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Feed 是一个外部推送源，持有自己的 API 密钥。
// 外部系统带着密钥向 ingest 接口推送产物。
type Feed struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"not null" json:"title"`
	APIKey     string    `gorm:"not null;uniqueIndex" json:"api_key"`
	CategoryID *uint     `gorm:"index" json:"category_id"`
	Pinned     bool      `gorm:"default:false" json:"pinned"`
	UniverseID uint      `gorm:"index;not null" json:"universe_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FeedArtifact 是信息流中的一条产物，要么是 Markdown 正文，要么是一个文件。
type FeedArtifact struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	FeedID           uint      `gorm:"index;not null" json:"feed_id"`
	Title            string    `gorm:"not null" json:"title"`
	ContentType      string    `gorm:"not null" json:"content_type"` // markup | file
	Markup           string    `json:"markup"`
	FilePath         string    `json:"file_path"`
	OriginalFilename string    `json:"original_filename"`
	CreatedAt        time.Time `json:"created_at"`
}

// Setting 是一条键值配置，例如前端选择的对话模型。
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TeamMember 是一个虚拟团队成员，活动任务会派发给它。
// AgentName 非空时表示任务经由 IRC 桥接交给外部代理执行。
type TeamMember struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	Title      string    `json:"title"`
	Profile    string    `json:"profile"`
	Gender     string    `json:"gender"`
	AvatarSeed string    `json:"avatar_seed"`
	AgentName  string    `json:"agent_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Activity 是一条可调度的任务链。
type Activity struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Prompt    string    `json:"prompt"`
	Schedule  string    `gorm:"default:manual" json:"schedule"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Tasks []ActivityTask `gorm:"constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
}

// ActivityTask 是任务链中的一步，按 Position 升序执行。
type ActivityTask struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ActivityID  uint   `gorm:"index;not null" json:"activity_id"`
	MemberID    uint   `gorm:"index;not null" json:"member_id"`
	Instruction string `gorm:"not null" json:"instruction"`
	Position    int    `gorm:"not null" json:"position"`

	Member *TeamMember `json:"member,omitempty"`
}

// ActivityRun 是活动的一次执行记录。
type ActivityRun struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ActivityID  uint       `gorm:"index;not null" json:"activity_id"`
	Status      string     `gorm:"not null" json:"status"`
	Model       string     `json:"model"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	Responses []ActivityResponse `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"responses,omitempty"`
}

// ActivityResponse 是一次运行中某个任务的产出。
// Instruction 和 MemberName 在运行开始时快照，之后编辑活动不影响历史记录。
type ActivityResponse struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RunID       uint      `gorm:"index;not null" json:"run_id"`
	TaskID      uint      `json:"task_id"`
	MemberID    uint      `json:"member_id"`
	MemberName  string    `json:"member_name"`
	Instruction string    `json:"instruction"`
	Response    string    `json:"response"`
	CreatedAt   time.Time `json:"created_at"`
}

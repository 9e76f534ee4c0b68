package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// ServerConfig 定义了 HTTP 服务器的监听配置。
type ServerConfig struct {
	Host string `yaml:"host"` // 监听地址
	Port int    `yaml:"port"` // 监听端口
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// StorageConfig 定义了本地数据目录的布局。
// 数据库文件、上传的图片和文档都存放在 DataDir 下，
// 备份归档会完整打包这个目录。
type StorageConfig struct {
	DataDir      string `yaml:"dataDir"`      // 数据根目录
	DatabaseFile string `yaml:"databaseFile"` // SQLite 数据库文件名 (相对于 DataDir)
	ImagesDir    string `yaml:"imagesDir"`    // 笔记图片目录 (相对于 DataDir)
	DocumentsDir string `yaml:"documentsDir"` // 文档目录 (相对于 DataDir)
}

// DatabasePath 返回 SQLite 数据库文件的完整路径。
func (s StorageConfig) DatabasePath() string {
	return filepath.Join(s.DataDir, s.DatabaseFile)
}

// ImagesPath 返回图片目录的完整路径。
func (s StorageConfig) ImagesPath() string {
	return filepath.Join(s.DataDir, s.ImagesDir)
}

// DocumentsPath 返回文档目录的完整路径。
func (s StorageConfig) DocumentsPath() string {
	return filepath.Join(s.DataDir, s.DocumentsDir)
}

// FieldConfig 定义了 Milvus 集合中字段的配置。
type FieldConfig struct {
	Name         string `yaml:"name"`                // 字段名称
	DataType     string `yaml:"dataType"`            // 字段数据类型 (例如: "Int64", "VarChar", "FloatVector")
	IsPrimaryKey bool   `yaml:"isPrimaryKey"`        // 是否为主键
	Dim          int    `yaml:"dim,omitempty"`       // 向量维度 (仅适用于向量类型)
	MaxLength    int    `yaml:"maxLength,omitempty"` // 最大长度 (仅适用于VarChar类型)
}

// IndexConfig 定义了 Milvus 集合中索引的配置。
type IndexConfig struct {
	FieldName  string `yaml:"fieldName"`  // 要创建索引的字段名称
	IndexType  string `yaml:"indexType"`  // 索引类型 (例如: "IVF_FLAT", "HNSW")
	MetricType string `yaml:"metricType"` // 相似度度量类型 (例如: "L2", "COSINE")
	NList      int    `yaml:"nlist"`      // IVF 索引的聚类数量
}

// MilvusConfig 定义了 Milvus 数据库的连接和集合配置。
type MilvusConfig struct {
	Address        string      `yaml:"address"`        // Milvus 服务地址
	CollectionName string      `yaml:"collectionName"` // 集合名称
	VectorField    string      `yaml:"vectorField"`    // 向量字段名称
	Dim            int         `yaml:"dim"`            // 嵌入向量维度
	Index          IndexConfig `yaml:"index"`          // 索引配置
}

// SQLiteConfig 定义了关系数据库的附加选项。
type SQLiteConfig struct {
	BusyTimeout int `yaml:"busyTimeout"` // SQLite busy_timeout (毫秒)
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Milvus MilvusConfig `yaml:"milvus"` // Milvus 向量数据库配置
	SQLite SQLiteConfig `yaml:"sqlite"` // SQLite 关系数据库配置
}

// OpenAIConfig 包含了 OpenAI 接口的配置。
// APIKey 为空时回退到 OPENAI_API_KEY 环境变量。
type OpenAIConfig struct {
	APIKey         string `yaml:"apiKey"`         // OpenAI API 密钥
	BaseURL        string `yaml:"baseURL"`        // 可选的自定义接口地址
	ChatModel      string `yaml:"chatModel"`      // 默认对话模型
	EmbeddingModel string `yaml:"embeddingModel"` // 嵌入模型名称
}

// RAGConfig 定义了检索增强生成管道的参数。
type RAGConfig struct {
	ChunkSize     int `yaml:"chunkSize"`     // 每个分块的最大 token 数
	ChunkOverlap  int `yaml:"chunkOverlap"`  // 相邻分块之间的重叠 token 数
	TopK          int `yaml:"topK"`          // 问答检索返回的分块数量
	ActivityTopK  int `yaml:"activityTopK"`  // 活动运行检索返回的分块数量
	MaxUploadSize int `yaml:"maxUploadSize"` // 上传文件大小上限 (MB)
}

// SchedulerConfig 定义了活动调度器的配置。
type SchedulerConfig struct {
	Enabled      bool   `yaml:"enabled"`      // 是否启用定时调度
	ScanInterval string `yaml:"scanInterval"` // 扫描间隔 (例如: "5m")
}

// IRCConfig 定义了 IRC 桥接的连接配置。
// 用于将活动任务派发给挂在 IRC 频道里的外部代理。
type IRCConfig struct {
	Enabled     bool   `yaml:"enabled"`     // 是否启用 IRC 桥接
	Host        string `yaml:"host"`        // IRC 服务器地址
	Port        int    `yaml:"port"`        // IRC 服务器端口
	Channel     string `yaml:"channel"`     // 频道名称
	Timeout     int    `yaml:"timeout"`     // 等待回复的总超时 (秒)
	IdleTimeout int    `yaml:"idleTimeout"` // 回复静默判定时间 (秒)
	MaxPayload  int    `yaml:"maxPayload"`  // 单条消息的最大字节数
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App       AppInfo         `yaml:"app"`       // 应用程序信息
	Server    ServerConfig    `yaml:"server"`    // HTTP 服务器配置
	Logger    LoggerConfig    `yaml:"logger"`    // 日志记录器配置
	Storage   StorageConfig   `yaml:"storage"`   // 本地存储配置
	Databases DatabaseConfigs `yaml:"databases"` // 数据库配置
	OpenAI    OpenAIConfig    `yaml:"openai"`    // OpenAI 配置
	RAG       RAGConfig       `yaml:"rag"`       // RAG 管道配置
	Scheduler SchedulerConfig `yaml:"scheduler"` // 活动调度器配置
	IRC       IRCConfig       `yaml:"irc"`       // IRC 桥接配置
}

// DefaultConfig 返回一份内置的默认配置。
// 配置文件缺失时服务仍然可以用默认值启动。
func DefaultConfig() *AppConfig {
	return &AppConfig{
		App: AppInfo{
			Name:        "astro",
			Version:     "0.1.0",
			Environment: "development",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Logger: LoggerConfig{Level: "info"},
		Storage: StorageConfig{
			DataDir:      "./data",
			DatabaseFile: "astro.db",
			ImagesDir:    "images",
			DocumentsDir: "documents",
		},
		Databases: DatabaseConfigs{
			Milvus: MilvusConfig{
				Address:        "localhost:19530",
				CollectionName: "astro_chunks",
				VectorField:    "embedding",
				Dim:            1536,
				Index: IndexConfig{
					FieldName:  "embedding",
					IndexType:  "IVF_FLAT",
					MetricType: "L2",
					NList:      128,
				},
			},
			SQLite: SQLiteConfig{BusyTimeout: 5000},
		},
		OpenAI: OpenAIConfig{
			ChatModel:      "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
		},
		RAG: RAGConfig{
			ChunkSize:     250,
			ChunkOverlap:  50,
			TopK:          4,
			ActivityTopK:  8,
			MaxUploadSize: 50,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			ScanInterval: "5m",
		},
		IRC: IRCConfig{
			Enabled:     false,
			Host:        "127.0.0.1",
			Port:        6667,
			Channel:     "#astro",
			Timeout:     120,
			IdleTimeout: 5,
			MaxPayload:  400,
		},
	}
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
// 文件不存在时返回默认配置；解析后未填写的字段同样回落到默认值。
func LoadConfig(path string) (*AppConfig, error) {
	cfg := DefaultConfig()
	yamlFile, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
		}
	}
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cfg, nil
}

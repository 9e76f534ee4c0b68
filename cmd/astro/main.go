package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"astro/internal/activity"
	"astro/internal/api"
	"astro/internal/backup"
	"astro/internal/config"
	"astro/internal/database/milvus"
	"astro/internal/database/sqlite"
	"astro/internal/irc"
	"astro/internal/rag/embeddings"
	"astro/internal/rag/llms"
	"astro/internal/rag/pipeline"
	"astro/internal/rag/splitters"
	"astro/internal/rag/vectorstore"
	"astro/internal/store"
	"astro/pkg/logger"
)

var (
	configPath string
	portFlag   int
)

var rootCmd = &cobra.Command{
	Use:   "astro",
	Short: "Astro personal knowledge backend",
	Long:  `Astro is a personal knowledge management backend with RAG chat, document archiving, and scheduled multi-agent activities.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of chunks in the vector store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, vectors, err := openVectorStore()
		if err != nil {
			return err
		}
		count, err := vectors.Count(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("collection %s: %d chunk(s)\n", cfg.Databases.Milvus.CollectionName, count)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the vector store collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := milvus.GetClient(context.Background(), &cfg.Databases.Milvus)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := client.DropCollection(context.Background()); err != nil {
			return err
		}
		fmt.Printf("collection %s dropped\n", cfg.Databases.Milvus.CollectionName)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the config file")
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "override the listen port")
	rootCmd.AddCommand(serveCmd, statsCmd, clearCmd)
}

func loadConfig() (*config.AppConfig, error) {
	// .env 只在存在时加载，缺失不算错误。
	_ = godotenv.Load()
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Logger.Level)
	return cfg, nil
}

func openVectorStore() (*config.AppConfig, *vectorstore.MilvusStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := milvus.GetClient(context.Background(), &cfg.Databases.Milvus)
	if err != nil {
		return nil, nil, err
	}
	if err := client.EnsureCollection(context.Background()); err != nil {
		return nil, nil, err
	}
	vectors, err := vectorstore.NewMilvusStore(client, logger.New("vectorstore"))
	if err != nil {
		return nil, nil, err
	}
	return cfg, vectors, nil
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	appLog := logger.New("astro")
	appLog.Info(fmt.Sprintf("Starting %s %s", cfg.App.Name, cfg.App.Version))

	// 关系数据库
	db, err := sqlite.GetDB(cfg)
	if err != nil {
		return fmt.Errorf("打开 SQLite 失败: %w", err)
	}
	st := store.New(db)

	// 向量数据库
	ctx := context.Background()
	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		return fmt.Errorf("连接 Milvus 失败: %w", err)
	}
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("初始化 Milvus 集合失败: %w", err)
	}
	vectors, err := vectorstore.NewMilvusStore(milvusClient, logger.New("vectorstore"))
	if err != nil {
		return err
	}

	// RAG 管道
	splitter, err := splitters.NewTokenSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return err
	}
	embedder := embeddings.NewOpenAIModel(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbeddingModel)
	chat := llms.NewOpenAIChat(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel)
	indexer := pipeline.NewIndexer(splitter, embedder, vectors, logger.New("indexer"))
	retriever := pipeline.NewRetriever(embedder, vectors, logger.New("retriever"))
	answerer := pipeline.NewAnswerer(retriever, chat, cfg.RAG.TopK, logger.New("answerer"))

	// 活动运行器与调度器
	var bridge activity.AgentBridge
	if cfg.IRC.Enabled {
		bridge = irc.NewBridge(cfg.IRC)
	}
	runner := activity.NewRunner(st, retriever, chat, bridge, cfg.OpenAI.ChatModel, cfg.RAG.ActivityTopK)
	scheduler := activity.NewScheduler(st, runner)
	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(cfg.Scheduler.ScanInterval); err != nil {
			return fmt.Errorf("启动调度器失败: %w", err)
		}
		defer scheduler.Stop()
	}

	// HTTP 服务
	backupManager := backup.NewManager(cfg.Storage, vectors)
	handler := api.NewHandler(st, indexer, answerer, runner, vectors, backupManager, cfg.Storage)
	router := api.SetupRouter(handler)

	port := cfg.Server.Port
	if portFlag != 0 {
		port = portFlag
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, port),
		Handler: router,
	}

	go func() {
		appLog.Info("Listening on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Forced shutdown: " + err.Error())
	}
	milvusClient.Close()
	if err := sqlite.Close(); err != nil {
		appLog.Warn("Closing SQLite: " + err.Error())
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

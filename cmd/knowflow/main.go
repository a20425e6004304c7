// =============================================================================
// Knowflow 主入口
// =============================================================================
// 检索编排服务入口点，包含 HTTP 服务、健康检查、Prometheus 指标
//
// 使用方法:
//
//	knowflow serve                       # 启动服务
//	knowflow serve --config config.yaml  # 指定配置文件
//	knowflow query "your question"       # 命令行单次检索
//	knowflow version                     # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/knowflow"
	"github.com/BaSui01/knowflow/config"
	"github.com/BaSui01/knowflow/rag"
	"github.com/BaSui01/knowflow/types"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	case "version":
		fmt.Printf("knowflow %s (build: %s, commit: %s)\n", Version, BuildTime, GitCommit)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: knowflow <serve|query|version> [options]")
}

func loadConfig(path string) (*config.Config, *zap.Logger) {
	cfg, err := config.NewLoader().
		WithConfigPath(path).
		WithEnvPrefix("KNOWFLOW").
		WithValidator(config.ValidateRetrieval).
		Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

// =============================================================================
// 🚀 serve 子命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "配置文件路径")
	addr := fs.String("addr", ":8080", "监听地址")
	fs.Parse(args)

	cfg, logger := loadConfig(*configPath)
	defer logger.Sync()

	engine, err := knowflow.New(cfg, knowflow.WithLogger(logger))
	if err != nil {
		logger.Fatal("装配检索引擎失败", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/v1/retrieve", retrieveHandler(engine, cfg, logger))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("服务启动", zap.String("addr", *addr), zap.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务异常退出", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("优雅关闭失败", zap.Error(err))
	}
	logger.Info("服务已停止")
}

type retrieveRequest struct {
	Query   string             `json:"query"`
	History []historyMessage   `json:"history,omitempty"`
	Options rag.RequestOptions `json:"options"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type retrieveResponse struct {
	Bundle  *rag.ReferenceBundle `json:"bundle"`
	Context rag.AssembledContext `json:"context"`
}

func retrieveHandler(engine *knowflow.Engine, cfg *config.Config, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req retrieveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
			return
		}
		if req.Query == "" {
			http.Error(w, "query is required", http.StatusBadRequest)
			return
		}
		if req.Options.TopK == 0 {
			req.Options = knowflow.RequestOptionsFromConfig(cfg.Retrieval)
		}

		query := rag.Query{Text: req.Query, Options: req.Options}
		for _, m := range req.History {
			query.History = append(query.History, historyToMessage(m))
		}

		bundle, err := engine.Retrieve(r.Context(), query)
		if err != nil {
			logger.Error("检索失败", zap.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(retrieveResponse{
			Bundle:  bundle,
			Context: engine.Assemble(req.Query, bundle),
		})
	}
}

func historyToMessage(m historyMessage) types.Message {
	switch types.Role(m.Role) {
	case types.RoleAssistant:
		return types.AssistantMessage(m.Content)
	case types.RoleSystem:
		return types.SystemMessage(m.Content)
	default:
		return types.UserMessage(m.Content)
	}
}

// =============================================================================
// 🔍 query 子命令
// =============================================================================

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "", "配置文件路径")
	kbID := fs.String("kb", "", "知识库 ID")
	useGraph := fs.Bool("graph", false, "启用图检索")
	useWeb := fs.Bool("web", false, "启用网络搜索")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: knowflow query [options] <question>")
		os.Exit(1)
	}

	cfg, logger := loadConfig(*configPath)
	defer logger.Sync()

	engine, err := knowflow.New(cfg, knowflow.WithLogger(logger))
	if err != nil {
		logger.Fatal("装配检索引擎失败", zap.Error(err))
	}

	opts := knowflow.RequestOptionsFromConfig(cfg.Retrieval)
	opts.KnowledgeBaseID = *kbID
	opts.UseGraph = *useGraph
	opts.UseWeb = *useWeb

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	text := fs.Arg(0)
	bundle, err := engine.Retrieve(ctx, rag.Query{Text: text, Options: opts})
	if err != nil {
		logger.Fatal("检索失败", zap.Error(err))
	}

	assembled := engine.Assemble(text, bundle)
	fmt.Println(assembled.Prompt)
}

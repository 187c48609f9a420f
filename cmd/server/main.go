// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"insurapolis-go/internal/config"
	"insurapolis-go/internal/handler"
	"insurapolis-go/internal/middleware"
	"insurapolis-go/internal/repository"
	"insurapolis-go/internal/service"
	"insurapolis-go/pkg/database"
	"insurapolis-go/pkg/embedding"
	"insurapolis-go/pkg/es"
	"insurapolis-go/pkg/kafka"
	"insurapolis-go/pkg/llm"
	"insurapolis-go/pkg/log"
	"insurapolis-go/pkg/storage"
	"insurapolis-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储与搜索引擎
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 建表：启动时幂等对齐 Schema，失败则终止进程
	if err := repository.EnsureSchema(database.DB); err != nil {
		log.Fatal("数据库 Schema 初始化失败", err)
	}
	log.Info("数据库 Schema 已就绪")

	// 5. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	policyRepo := repository.NewPolicyRepository(database.DB)

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	userService := service.NewUserService(userRepo, messageRepo, jwtManager)
	conversationService := service.NewConversationService(conversationRepo, messageRepo)
	searchService := service.NewSearchService(embeddingClient, es.ESClient, cfg.Elasticsearch)
	chatService := service.NewChatService(conversationRepo, messageRepo, policyRepo, searchService, llmClient)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.POST("/logout", handler.NewUserHandler(userService).Logout)
				authed.GET("/tokens", handler.NewUserHandler(userService).GetTotalTokens)
			}
		}

		// Conversation 路由组，需要认证
		conversations := apiV1.Group("/conversations")
		conversations.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			conversations.POST("", handler.NewConversationHandler(conversationService).CreateConversation)
			conversations.GET("", handler.NewConversationHandler(conversationService).ListConversations)
			conversations.GET("/:uuid", handler.NewConversationHandler(conversationService).GetConversation)
			conversations.PUT("/:uuid/name", handler.NewConversationHandler(conversationService).RenameConversation)
			conversations.DELETE("/:uuid", handler.NewConversationHandler(conversationService).DeleteConversation)
		}

		// Chat 路由组：同步问答走 POST，流式问答先领票据再建 WebSocket
		chatGroup := apiV1.Group("/chat")
		chatGroup.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chatGroup.POST("", handler.NewChatHandler(chatService, userService).Chat)
			chatGroup.GET("/websocket-ticket", handler.NewChatHandler(chatService, userService).GetWebsocketTicket)
		}
		r.GET("/chat/:ticket", handler.NewChatHandler(chatService, userService).HandleWebsocket)

		// Document 路由组，需要认证
		documents := apiV1.Group("/documents")
		documents.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			documents.GET("/download", handler.NewDocumentHandler().Download)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	kafka.Close()
	log.Info("服务已优雅关闭")
}

package main

import (
	"log"
	"net/http"
	"xinzhi/internal/config"
	"xinzhi/internal/db"
	"xinzhi/internal/handlers"
	"xinzhi/internal/middleware"
	"xinzhi/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	// 配置只在这里解析一次，之后全部按值注入
	cfg := config.Load()

	// Initialize Database
	db.Init(cfg)

	// Initialize Gin
	r := gin.Default()

	// Setup Sessions（只读外部系统签发的会话）
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("xinzhi_session", store))

	// Middleware
	r.Use(middleware.LoadUser())

	// Services
	fetcher := services.NewFeedFetcher(cfg.Fetch)
	ingest := services.NewIngestService()
	aiClient := services.NewChatAIClient(cfg.AI)
	classifier := services.NewClassifierService(aiClient, cfg)
	queryService := services.NewArticleQueryService()
	scheduler := services.NewBatchScheduler(fetcher, ingest, classifier, cfg.Cron)

	// Handlers
	articleHandler := handlers.NewArticleHandler(queryService)
	sourceHandler := handlers.NewSourceHandler()
	cronHandler := handlers.NewCronHandler(scheduler, cfg.Cron.Secret)

	// 健康检查
	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 读者接口
	api := r.Group("/api")
	{
		api.GET("/articles", articleHandler.List)      // 分页文章列表（可个性化）
		api.GET("/articles/:id", articleHandler.Detail) // 单篇文章
		api.GET("/sources", sourceHandler.List)        // 订阅源与抓取状态
	}

	// 批处理驱动接口（外部定时器调用）
	internalGroup := r.Group("/internal")
	{
		internalGroup.POST("/cron/fetch", cronHandler.Fetch)
	}

	log.Printf("Xinzhi server starting on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}

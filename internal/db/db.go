package db

import (
	"log"
	"xinzhi/internal/config"
	"xinzhi/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg config.Config) {
	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true, // 把驱动错误翻译成 gorm.ErrDuplicatedKey 等通用错误
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	// 显式声明关联表，保证复合主键与级联约束
	if err := DB.SetupJoinTable(&models.Article{}, "Topics", &models.ArticleTopic{}); err != nil {
		log.Fatalf("Failed to setup join table: %v", err)
	}

	// Auto Migrate
	// profiles 表归外部系统所有，这里迁移仅为本地开发方便
	err = DB.AutoMigrate(
		&models.Source{},
		&models.Article{},
		&models.Topic{},
		&models.Profile{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 话题名大小写不敏感唯一，AutoMigrate 表达不了表达式索引，手动建
	if err := DB.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_topics_name_lower ON topics (LOWER(name))`).Error; err != nil {
		log.Fatalf("Failed to create topic name index: %v", err)
	}
	log.Println("Database migration completed")

	// Seed initial sources
	seedSources()
}

func seedSources() {
	// 检查是否已有订阅源数据
	var count int64
	DB.Model(&models.Source{}).Count(&count)
	if count > 0 {
		log.Println("Sources already seeded, skipping")
		return
	}

	// 创建预设订阅源
	sources := []models.Source{
		{Name: "Hacker News", URL: "https://news.ycombinator.com/rss"},
		{Name: "阮一峰的网络日志", URL: "https://www.ruanyifeng.com/blog/atom.xml"},
		{Name: "少数派", URL: "https://sspai.com/feed"},
		{Name: "BBC World", URL: "https://feeds.bbci.co.uk/news/world/rss.xml"},
	}

	for _, source := range sources {
		source.IsActive = true
		if err := DB.Create(&source).Error; err != nil {
			log.Printf("Failed to create source %s: %v", source.Name, err)
		}
	}
	log.Println("Initial sources created successfully")
}

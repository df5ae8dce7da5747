package app

import (
	"log"
	"time"

	"koboland/internal/config"
	"koboland/internal/middleware"
	"koboland/internal/model"
	"koboland/internal/repository"
	"koboland/internal/service"
	"koboland/internal/util"
	"koboland/internal/websocket"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewRouter(cfg *config.Config) *gin.Engine {
	// Set Gin mode
	if cfg.ServerPort == "5000" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware(cfg.ClientURL))

	// Rate limiting middleware (if enabled)
	if cfg.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		r.Use(rateLimiter.Middleware())
		log.Printf("Rate limiting enabled: %d req/sec, burst: %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		panic("Failed to connect to database: " + err.Error())
	}

	// Auto migrate
	if err := db.AutoMigrate(&model.User{}, &model.Board{}, &model.Topic{}, &model.Post{}, &model.Vote{}); err != nil {
		panic("Failed to migrate database: " + err.Error())
	}

	// votes.target_id is polymorphic (topics or posts), so no foreign key
	// constraint may exist on it
	fixVotesTableConstraints(db)

	// Initialize Redis with retry logic
	redisClient := initRedisWithRetry(cfg)

	// Initialize RabbitMQ with retry logic
	rabbitMQ := initRabbitMQWithRetry(cfg)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("WebSocket hub started")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	boardRepo := repository.NewBoardRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	postRepo := repository.NewPostRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	targetRegistry := repository.NewTargetRegistry(db, redisClient)

	// Reaction events: published after each committed vote change, consumed
	// by the worker and pushed to websocket clients
	eventPublisher := service.NewReactionEventPublisher(rabbitMQ, wsHub)
	eventWorker := service.NewReactionEventWorker(rabbitMQ, wsHub)
	if err := eventWorker.Start(); err != nil {
		log.Printf("Warning: Failed to start reaction event worker: %v", err)
	}

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)
	boardService := service.NewBoardService(boardRepo)
	topicService := service.NewTopicService(topicRepo, boardRepo)
	postService := service.NewPostService(postRepo)
	voteService := service.NewVoteService(db, voteRepo, targetRegistry, eventPublisher)

	// Initialize handlers
	authHandler := NewAuthHandler(authService, cfg.JWTSecret)
	boardHandler := NewBoardHandler(boardService, topicService, voteService)
	topicHandler := NewTopicHandler(topicService, postService, voteService)
	postHandler := NewPostHandler(postService)
	voteHandler := NewVoteHandler(voteService)

	// API routes
	api := r.Group("/api/v1")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", authHandler.AuthMiddleware(), authHandler.GetMe)
		}

		// Board routes
		boards := api.Group("/boards")
		{
			boards.GET("", boardHandler.ListBoards)
			boards.GET("/:name", boardHandler.GetBoard)
			boards.GET("/:name/topics", authHandler.OptionalAuthMiddleware(), boardHandler.ListTopics)
			boards.POST("", authHandler.AuthMiddleware(), boardHandler.CreateBoard)
		}

		// Topic routes
		topics := api.Group("/topics")
		{
			topics.GET("/:publicID", authHandler.OptionalAuthMiddleware(), topicHandler.GetTopic)

			topics.Use(authHandler.AuthMiddleware())
			{
				topics.POST("", topicHandler.CreateTopic)
				topics.PUT("/:publicID", topicHandler.UpdateTopic)
				topics.DELETE("/:publicID", topicHandler.DeleteTopic)
			}
		}

		// Post routes
		posts := api.Group("/posts")
		posts.Use(authHandler.AuthMiddleware())
		{
			posts.POST("", postHandler.CreatePost)
			posts.PUT("/:id", postHandler.UpdatePost)
			posts.DELETE("/:id", postHandler.DeletePost)
		}

		// Vote routes
		votes := api.Group("/votes")
		{
			votes.GET("/counters", voteHandler.GetCounters)

			votes.Use(authHandler.AuthMiddleware())
			{
				votes.POST("", voteHandler.CastVote)
				votes.GET("/state", voteHandler.GetVoteState)
			}
		}
	}

	// WebSocket route
	r.GET("/ws", gin.WrapF(websocket.ServeWS(wsHub, cfg.JWTSecret)))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = "host=" + cfg.PostgresHost +
			" port=" + cfg.PostgresPort +
			" user=" + cfg.PostgresUser +
			" password=" + cfg.PostgresPassword +
			" dbname=" + cfg.PostgresDB +
			" sslmode=" + cfg.PostgresSSLMode
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	return db, nil
}

// initRabbitMQWithRetry attempts to connect to RabbitMQ with exponential backoff retry
func initRabbitMQWithRetry(cfg *config.Config) *util.RabbitMQClient {
	maxRetries := 5
	initialDelay := 2 * time.Second
	maxDelay := 30 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		rabbitMQ, err := util.NewRabbitMQClient(cfg)
		if err == nil {
			log.Printf("RabbitMQ connected successfully on attempt %d", attempt)
			return rabbitMQ
		}

		if attempt < maxRetries {
			delay := initialDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxDelay {
				delay = maxDelay
			}

			log.Printf("Failed to connect to RabbitMQ (attempt %d/%d): %v. Retrying in %v...", attempt, maxRetries, err, delay)
			time.Sleep(delay)
		} else {
			log.Printf("Warning: Failed to connect to RabbitMQ after %d attempts: %v. Reaction events will broadcast directly.", maxRetries, err)
		}
	}

	return nil
}

// initRedisWithRetry attempts to connect to Redis with exponential backoff retry
func initRedisWithRetry(cfg *config.Config) *util.RedisClient {
	maxRetries := 5
	initialDelay := 2 * time.Second
	maxDelay := 30 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		redisClient, err := util.NewRedisClient(cfg)
		if err == nil {
			log.Printf("Redis connected successfully on attempt %d", attempt)
			return redisClient
		}

		if attempt < maxRetries {
			delay := initialDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxDelay {
				delay = maxDelay
			}

			log.Printf("Failed to connect to Redis (attempt %d/%d): %v. Retrying in %v...", attempt, maxRetries, err, delay)
			time.Sleep(delay)
		} else {
			log.Printf("Warning: Failed to connect to Redis after %d attempts: %v. Caching will be disabled.", maxRetries, err)
		}
	}

	return nil
}

// fixVotesTableConstraints drops any foreign key GORM may have created on
// votes.target_id during AutoMigrate; the column references different
// tables depending on target_type.
func fixVotesTableConstraints(db *gorm.DB) {
	query := `
		SELECT constraint_name
		FROM information_schema.table_constraints
		WHERE table_name = 'votes'
		AND constraint_type = 'FOREIGN KEY'
		AND constraint_name IN (
			SELECT constraint_name
			FROM information_schema.key_column_usage
			WHERE table_name = 'votes'
			AND column_name = 'target_id'
		)
	`

	var constraints []struct {
		ConstraintName string `gorm:"column:constraint_name"`
	}

	if err := db.Raw(query).Scan(&constraints).Error; err != nil {
		log.Printf("Warning: Failed to query foreign key constraints on votes table: %v", err)
		return
	}

	for _, constraint := range constraints {
		dropQuery := "ALTER TABLE votes DROP CONSTRAINT IF EXISTS " + constraint.ConstraintName
		if err := db.Exec(dropQuery).Error; err != nil {
			log.Printf("Warning: Failed to drop constraint %s: %v", constraint.ConstraintName, err)
		} else {
			log.Printf("Dropped foreign key constraint: %s", constraint.ConstraintName)
		}
	}
}

func corsMiddleware(clientURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == clientURL {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", clientURL)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

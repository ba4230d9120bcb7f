package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"pixelmint_go_backend/cmd/api/config"
	"pixelmint_go_backend/internal/api"
	"pixelmint_go_backend/internal/auth"
	"pixelmint_go_backend/internal/database"
	"pixelmint_go_backend/internal/services"
	"pixelmint_go_backend/internal/utils/broker"
	"pixelmint_go_backend/internal/wsocket"

	"github.com/gorilla/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	genaiAPIKey := os.Getenv("GOOGLE_AI_STUDIO_API_KEY")
	if genaiAPIKey == "" {
		log.Fatal("GOOGLE_AI_STUDIO_API_KEY is not set in the environment")
	}

	gcsBucketName := os.Getenv("GCS_BUCKET_NAME")
	if gcsBucketName == "" {
		log.Fatal("GCS_BUCKET_NAME environment variable is not set")
	}

	ctx := context.Background()
	cfg := config.NewConfig()

	database.InitDB()

	genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(genaiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}
	defer genaiClient.Close()

	gcsService, err := services.NewGCSService(ctx, gcsBucketName)
	if err != nil {
		log.Fatalf("Failed to create GCS service: %v", err)
	}

	messageBroker := broker.NewBroker()

	// Stores
	providerStore := services.NewProviderStoreDB(database.DB)
	historyStore := services.NewHistoryStoreDB(database.DB)
	logStore := services.NewGenerationLogStoreDB(database.DB)
	userStore := services.NewUserStoreDB(database.DB)

	// Core services
	quotaService := services.NewQuotaService(providerStore, messageBroker, logger)
	statusService := services.NewStatusService(quotaService)
	selectionService := services.NewSelectionService(providerStore, statusService, cfg.ProviderPriority, logger)

	httpClient := &http.Client{Timeout: 60 * time.Second}
	generationService := services.NewGenerationService(
		services.NewStableDiffusionAdapter(os.Getenv("STABLE_DIFFUSION_API_KEY"), "", httpClient, gcsService),
		services.NewKieAIAdapter(os.Getenv("KIEAI_API_KEY"), httpClient, gcsService, cfg.PollInterval, cfg.PollMaxAttempts),
		services.NewPhotAIAdapter(os.Getenv("PHOTAI_API_KEY"), httpClient, gcsService, cfg.PollInterval, cfg.PollMaxAttempts),
		services.NewGeminiAdapter(genaiClient, gcsService),
	)

	orchestrator := services.NewGenerationOrchestrator(
		userStore,
		historyStore,
		selectionService,
		generationService,
		quotaService,
		cfg.MaxAttempts,
		logger,
	)

	statusProbe := services.NewHTTPStatusProbe(httpClient, providerStore, cfg.ProbeTimeout, logger)
	dashboardService := services.NewDashboardService(providerStore, historyStore, quotaService, statusService)
	billingService := services.NewBillingService(
		providerStore,
		os.Getenv("STRIPE_SECRET_KEY"),
		os.Getenv("STRIPE_WEBHOOK_SECRET"),
		os.Getenv("STRIPE_SUCCESS_URL"),
		os.Getenv("STRIPE_CANCEL_URL"),
		logger,
	)

	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173" // Default to your local frontend
	}

	// CORS middleware configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(allowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// WebSocket upgrader
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // TODO: Implement a more secure check in production
		},
	}

	wsHandler := wsocket.NewHandler(orchestrator, logStore, upgrader, logger)

	api.SetupRoutes(r, orchestrator, historyStore, logStore, providerStore, statusProbe, dashboardService, billingService, userStore, logger)
	auth.SetupRoutes(r, userStore)

	r.GET("/ws", auth.AuthMiddleware(userStore), func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found in context"})
			return
		}
		wsHandler.HandleWebSocket(c.Writer, c.Request, user, messageBroker)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

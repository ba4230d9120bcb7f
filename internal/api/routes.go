package api

import (
	"io"
	"net/http"
	"strconv"

	"pixelmint_go_backend/internal/auth"
	apperrors "pixelmint_go_backend/internal/errors"
	"pixelmint_go_backend/internal/progress"
	"pixelmint_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type generateRequest struct {
	Prompt     string                 `json:"prompt" binding:"required"`
	Parameters map[string]interface{} `json:"parameters"`
}

func SetupRoutes(
	r *gin.Engine,
	orchestrator *services.GenerationOrchestrator,
	historyStore services.HistoryStore,
	logStore services.GenerationLogStore,
	providerStore services.ProviderStore,
	statusProbe services.StatusProbe,
	dashboardService *services.DashboardService,
	billingService *services.BillingService,
	userStore *services.DefaultUserStore,
	log zerolog.Logger,
) {
	api := r.Group("/api")
	{
		images := api.Group("/images", auth.AuthMiddleware(userStore))
		{
			images.POST("/generate", generateHandler(orchestrator, logStore, log))
			images.POST("/generate-sync", generateSyncHandler(orchestrator, logStore, log))
			images.GET("/history", listHistoryHandler(historyStore))
			images.GET("/history/:id", getHistoryHandler(historyStore))
			images.DELETE("/history/:id", deleteHistoryHandler(historyStore))
			images.GET("/history/:id/logs", historyLogsHandler(historyStore, logStore))
			images.POST("/history/:id/regenerate", regenerateHandler(orchestrator, logStore, log))
		}
		api.GET("/dashboard", auth.AuthMiddleware(userStore), dashboardHandler(dashboardService))
		api.GET("/preferences", auth.AuthMiddleware(userStore), getPreferencesHandler())
		api.PUT("/preferences", auth.AuthMiddleware(userStore), updatePreferencesHandler(userStore))
		api.GET("/providers", auth.AuthMiddleware(userStore), auth.RequireAdmin(), listProvidersHandler(providerStore))
		api.PUT("/providers/:name", auth.AuthMiddleware(userStore), auth.RequireAdmin(), updateProviderHandler(providerStore))
		api.GET("/providers/:name/status", auth.AuthMiddleware(userStore), providerStatusHandler(providerStore, statusProbe))
		api.POST("/billing/topup", auth.AuthMiddleware(userStore), topUpHandler(billingService))
		api.POST("/stripe/webhook", stripeWebhookHandler(billingService, log))
	}
}

// sseReporter builds a reporter whose live sink writes SSE frames on the
// open response. The stream headers go out with the first event, so
// requests rejected before anything is emitted still answer plain JSON.
// Events flush immediately so clients see progress as it happens, not
// when the request ends.
func sseReporter(c *gin.Context, logStore services.GenerationLogStore, log zerolog.Logger) *progress.Reporter {
	streaming := false
	sink := func(e progress.Event) {
		if !streaming {
			c.Writer.Header().Set("Content-Type", "text/event-stream")
			c.Writer.Header().Set("Cache-Control", "no-cache")
			c.Writer.Header().Set("Connection", "keep-alive")
			streaming = true
		}
		c.SSEvent(string(e.Step), e)
		c.Writer.Flush()
	}
	return progress.NewReporter(logStore, sink, log)
}

func generateHandler(orchestrator *services.GenerationOrchestrator, logStore services.GenerationLogStore, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request generateRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		user, ok := auth.CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		reporter := sseReporter(c, logStore, log)
		_, err := orchestrator.GenerateImage(c.Request.Context(), user.ID, request.Prompt, services.GenerationParams(request.Parameters), reporter)
		if err != nil && !reporter.Closed() {
			// Input errors fail before any event is emitted; fall back to
			// a plain JSON error instead of an empty stream.
			apperrors.HandleError(c, err)
		}
	}
}

func generateSyncHandler(orchestrator *services.GenerationOrchestrator, logStore services.GenerationLogStore, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request generateRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		user, ok := auth.CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		// Capture only the terminal event; the sync variant answers with
		// the same payload the streaming end event carries.
		var end *progress.Event
		sink := func(e progress.Event) {
			if e.Step == progress.StepEnd {
				captured := e
				end = &captured
			}
		}
		reporter := progress.NewReporter(logStore, sink, log)
		_, err := orchestrator.GenerateImage(c.Request.Context(), user.ID, request.Prompt, services.GenerationParams(request.Parameters), reporter)
		if err != nil && end == nil {
			apperrors.HandleError(c, err)
			return
		}
		status := http.StatusOK
		if end != nil && end.Success != nil && !*end.Success {
			status = http.StatusInternalServerError
			if customErr, ok := err.(*apperrors.CustomError); ok {
				status = customErr.StatusCode
			}
		}
		c.JSON(status, end)
	}
}

func regenerateHandler(orchestrator *services.GenerationOrchestrator, logStore services.GenerationLogStore, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		historyID, err := parseHistoryID(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		user, ok := auth.CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		reporter := sseReporter(c, logStore, log)
		_, err = orchestrator.Regenerate(c.Request.Context(), historyID, user.ID, reporter)
		if err != nil && !reporter.Closed() {
			apperrors.HandleError(c, err)
		}
	}
}

func parseHistoryID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperrors.New400Error("invalid history id")
	}
	return uint(id), nil
}

func listHistoryHandler(historyStore services.HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

		records, total, err := historyStore.ListByUser(user.ID, page, limit)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"history": records,
			"total":   total,
			"page":    page,
			"limit":   limit,
		})
	}
}

func getHistoryHandler(historyStore services.HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}
		historyID, err := parseHistoryID(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		record, err := historyStore.GetByIDForUser(historyID, user.ID)
		if err != nil {
			apperrors.HandleError(c, apperrors.New404Error("history record not found"))
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func deleteHistoryHandler(historyStore services.HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}
		historyID, err := parseHistoryID(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		if _, err := historyStore.GetByIDForUser(historyID, user.ID); err != nil {
			apperrors.HandleError(c, apperrors.New404Error("history record not found"))
			return
		}
		if err := historyStore.Delete(historyID); err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": historyID})
	}
}

func historyLogsHandler(historyStore services.HistoryStore, logStore services.GenerationLogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}
		historyID, err := parseHistoryID(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		if _, err := historyStore.GetByIDForUser(historyID, user.ID); err != nil {
			apperrors.HandleError(c, apperrors.New404Error("history record not found"))
			return
		}
		logs, err := logStore.ListByHistory(historyID)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs})
	}
}

func dashboardHandler(dashboardService *services.DashboardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}
		stats, err := dashboardService.Stats(user.ID)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func getPreferencesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}
		prefs := user.Preferences()
		c.JSON(http.StatusOK, gin.H{
			"preferred_provider": prefs.PreferredProvider,
			"prioritize_free":    prefs.PrioritizeFree,
		})
	}
}

func updatePreferencesHandler(userStore *services.DefaultUserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}
		var request struct {
			PreferredProvider string `json:"preferred_provider" binding:"required"`
			PrioritizeFree    *bool  `json:"prioritize_free" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		if err := userStore.UpdatePreferences(user.ID, request.PreferredProvider, *request.PrioritizeFree); err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": true})
	}
}

func listProvidersHandler(providerStore services.ProviderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		providers, err := providerStore.List()
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"providers": providers})
	}
}

func updateProviderHandler(providerStore services.ProviderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		provider, err := providerStore.GetByName(c.Param("name"))
		if err != nil {
			apperrors.HandleError(c, apperrors.New404Error("provider not found"))
			return
		}
		var request struct {
			DisplayName    *string  `json:"display_name"`
			IsActive       *bool    `json:"is_active"`
			QuotaRequests  *int64   `json:"quota_requests"`
			QuotaCredits   *int64   `json:"quota_credits"`
			CostPerRequest *float64 `json:"cost_per_request"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		if request.DisplayName != nil {
			provider.DisplayName = *request.DisplayName
		}
		if request.IsActive != nil {
			provider.IsActive = *request.IsActive
		}
		if request.QuotaRequests != nil {
			provider.QuotaRequests = request.QuotaRequests
		}
		if request.QuotaCredits != nil {
			provider.QuotaCredits = request.QuotaCredits
		}
		if request.CostPerRequest != nil {
			provider.CostPerRequest = *request.CostPerRequest
		}
		if err := providerStore.Update(provider); err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, provider)
	}
}

func providerStatusHandler(providerStore services.ProviderStore, statusProbe services.StatusProbe) gin.HandlerFunc {
	return func(c *gin.Context) {
		provider, err := providerStore.GetByName(c.Param("name"))
		if err != nil {
			apperrors.HandleError(c, apperrors.New404Error("provider not found"))
			return
		}
		remote := statusProbe.CheckRemoteStatus(c.Request.Context(), provider)
		c.JSON(http.StatusOK, gin.H{
			"provider": provider.Name,
			"remote":   remote,
		})
	}
}

func topUpHandler(billingService *services.BillingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}
		var request struct {
			Provider string `json:"provider" binding:"required"`
			Credits  int64  `json:"credits" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		session, err := billingService.CreateTopUpSession(user.ID, request.Provider, request.Credits)
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": session.ID, "url": session.URL})
	}
}

func stripeWebhookHandler(billingService *services.BillingService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const MaxBodyBytes = int64(65536)
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
			return
		}

		if err := billingService.HandleWebhook(payload, c.GetHeader("Stripe-Signature")); err != nil {
			log.Warn().Err(err).Msg("stripe webhook rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to process webhook"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

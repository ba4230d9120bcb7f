package main

import (
	"log"

	"pixelmint_go_backend/internal/database"
	"pixelmint_go_backend/internal/models"

	"github.com/joho/godotenv"
	"gorm.io/gorm/clause"
)

func int64Ptr(v int64) *int64 { return &v }

// Catalog rows for the supported providers. Name is the stable key; a
// re-run refreshes configuration without touching usage counters.
func seedProviders() []models.ProviderConfig {
	return []models.ProviderConfig{
		{
			Name:           "stablediffusion",
			DisplayName:    "Stable Diffusion XL",
			APIBaseURL:     "https://api.stability.ai",
			APIKeyEnvVar:   "STABLE_DIFFUSION_API_KEY",
			QuotaCredits:   int64Ptr(27),
			IsFreeTier:     true,
			IsActive:       true,
			CostPerRequest: 0.2,
			CostUnit:       "credits",
		},
		{
			Name:           "kieai",
			DisplayName:    "KieAI GPT-4o Image",
			APIBaseURL:     "https://kieai.erweima.ai",
			APIKeyEnvVar:   "KIEAI_API_KEY",
			QuotaCredits:   int64Ptr(8),
			IsFreeTier:     true,
			IsActive:       true,
			CostPerRequest: 1,
			CostUnit:       "credits",
		},
		{
			Name:           "photai",
			DisplayName:    "Phot.AI Art Generator",
			APIBaseURL:     "https://prodapi.phot.ai",
			APIKeyEnvVar:   "PHOTAI_API_KEY",
			QuotaRequests:  int64Ptr(25),
			IsFreeTier:     true,
			IsActive:       true,
			CostPerRequest: 1,
			CostUnit:       "requests",
		},
		{
			Name:          "gemini",
			DisplayName:   "Gemini Flash Image",
			APIBaseURL:    "https://generativelanguage.googleapis.com",
			APIKeyEnvVar:  "GOOGLE_AI_STUDIO_API_KEY",
			IsFreeTier:    true,
			IsActive:      true,
			Unconstrained: true,
		},
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	database.InitDB()

	for _, provider := range seedProviders() {
		err := database.DB.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"display_name", "api_base_url", "api_key_env_var",
				"quota_requests", "quota_credits", "is_free_tier",
				"is_active", "unconstrained", "cost_per_request", "cost_unit",
			}),
		}).Create(&provider).Error
		if err != nil {
			log.Fatalf("Failed to seed provider %s: %v", provider.Name, err)
		}
		log.Printf("Seeded provider %s", provider.Name)
	}

	var count int64
	if err := database.DB.Model(&models.ProviderConfig{}).Count(&count).Error; err == nil {
		log.Printf("Provider catalog now holds %d entries", count)
	}
}

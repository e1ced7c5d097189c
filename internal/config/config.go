package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"debug"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"AUTH_JWT_SECRET" required:"true"`

	// Webhook secrets. When a value is empty and the matching *_SECRET_NAME is set,
	// the secret is read from Secret Manager at startup.
	RevenueCatWebhookSecret     string `envconfig:"REVENUECAT_WEBHOOK_SECRET"`
	RevenueCatWebhookSecretName string `envconfig:"REVENUECAT_WEBHOOK_SECRET_NAME"`
	StripeWebhookSecret         string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeWebhookSecretName     string `envconfig:"STRIPE_WEBHOOK_SECRET_NAME"`

	// Stripe settings
	StripeSecretKey       string `envconfig:"STRIPE_SECRET_KEY"`
	StripePriceProMonthly string `envconfig:"STRIPE_PRICE_PRO_MONTHLY"`
	StripePriceProAnnual  string `envconfig:"STRIPE_PRICE_PRO_ANNUAL"`
	StripePortalReturnURL string `envconfig:"STRIPE_PORTAL_RETURN_URL" default:"http://localhost:3000/settings/billing"`

	// Entitlement settings
	ProEntitlementTag string `envconfig:"REVENUECAT_PRO_ENTITLEMENT" default:"pro"`
	WebProPlan        string `envconfig:"WEB_PRO_PLAN" default:"pro"`

	// Free tier limits
	FreeMessagesPerHour     int  `envconfig:"FREE_MESSAGES_PER_HOUR" default:"15"`
	FreeImagesPerDay        int  `envconfig:"FREE_IMAGES_PER_DAY" default:"3"`
	FreeDeepResearchPerDay  int  `envconfig:"FREE_DEEP_RESEARCH_PER_DAY" default:"2"`
	MessageRecordFallback   bool `envconfig:"USAGE_MESSAGE_RECORD_FALLBACK" default:"false"`
	UsageCounterRetainHours int  `envconfig:"USAGE_COUNTER_RETAIN_HOURS" default:"72"`

	// Identity provider (Firebase Auth custom claims)
	FirebaseProjectID       string `envconfig:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `envconfig:"FIREBASE_CREDENTIALS"`

	// GCP
	GCPProjectID           string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost     string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubEntitlementTopic string `envconfig:"PUBSUB_ENTITLEMENT_TOPIC"`
	SecretManagerProjectID string `envconfig:"SECRET_MANAGER_PROJECT_ID"`

	// Webhook payload archive (S3 compatible). Disabled when the bucket is empty.
	ArchiveS3URL       string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Bucket    string `envconfig:"ARCHIVE_S3_BUCKET"`
	ArchiveS3Region    string `envconfig:"ARCHIVE_S3_REGION" default:"us-east-1"`
	ArchiveS3AccessKey string `envconfig:"ARCHIVE_S3_ACCESS_KEY"`
	ArchiveS3SecretKey string `envconfig:"ARCHIVE_S3_SECRET_KEY"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetSecretManagerProjectID returns the project used for secret lookups,
// falling back to the general GCP project.
func (c *Config) GetSecretManagerProjectID() string {
	if c.SecretManagerProjectID != "" {
		return c.SecretManagerProjectID
	}
	return c.GCPProjectID
}

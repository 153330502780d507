package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// API key for inbound request authentication (empty disables the check)
	APIKey string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis config
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Idempotency ledger backend: "postgres" (default) or "redis"
	LedgerBackend string

	// SQS request queue config
	SQSRegion    string
	SQSQueueURL  string
	SQSDLQURL    string
	SQSQueueName string

	// SNS status egress
	SNSRegion         string
	SNSStatusTopicARN string

	// AWS Services
	AWSRegion    string
	SESFromEmail string

	// Watzap (WhatsApp provider) config
	WatzapBaseURL   string
	WatzapAPIKey    string
	WatzapNumberKey string
	WatzapTimeout   int // request timeout in seconds

	// Processing
	WorkerPoolSize      int // async orchestrator pool
	ConsumerConcurrency int // concurrent in-flight queue messages
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		// Local postgres defaults
		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "herald",
		DBPassword: "",
		DBName:     "herald",
		DBSSLMode:  "disable",

		// Redis defaults
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,

		LedgerBackend: "postgres",

		AWSRegion:    "us-east-1",
		SESFromEmail: "noreply@herald.local",

		SQSQueueName: "notification.request",

		WatzapBaseURL: "https://api.watzap.id/v1",
		WatzapTimeout: 15,

		WorkerPoolSize:      8,
		ConsumerConcurrency: 4,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	if key := os.Getenv("API_KEY"); key != "" {
		cfg.APIKey = key
	}

	// Database config
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	// Redis config
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	if backend := os.Getenv("LEDGER_BACKEND"); backend != "" {
		if backend != "postgres" && backend != "redis" {
			return nil, fmt.Errorf("invalid LEDGER_BACKEND: %q (want postgres or redis)", backend)
		}
		cfg.LedgerBackend = backend
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	if from := os.Getenv("SES_FROM_EMAIL"); from != "" {
		cfg.SESFromEmail = from
	}

	// SQS config
	if region := os.Getenv("SQS_REGION"); region != "" {
		cfg.SQSRegion = region
	} else {
		cfg.SQSRegion = cfg.AWSRegion
	}

	if url := os.Getenv("SQS_QUEUE_URL"); url != "" {
		cfg.SQSQueueURL = url
	}

	if url := os.Getenv("SQS_DLQ_URL"); url != "" {
		cfg.SQSDLQURL = url
	}

	if name := os.Getenv("SQS_QUEUE_NAME"); name != "" {
		cfg.SQSQueueName = name
	}

	// SNS status egress
	if region := os.Getenv("SNS_REGION"); region != "" {
		cfg.SNSRegion = region
	} else {
		cfg.SNSRegion = cfg.AWSRegion
	}

	if arn := os.Getenv("SNS_STATUS_TOPIC_ARN"); arn != "" {
		cfg.SNSStatusTopicARN = arn
	}

	// Watzap config
	if url := os.Getenv("WATZAP_BASE_URL"); url != "" {
		cfg.WatzapBaseURL = url
	}

	if key := os.Getenv("WATZAP_API_KEY"); key != "" {
		cfg.WatzapAPIKey = key
	}

	if key := os.Getenv("WATZAP_NUMBER_KEY"); key != "" {
		cfg.WatzapNumberKey = key
	}

	if timeout := os.Getenv("WATZAP_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid WATZAP_TIMEOUT: %w", err)
		}
		cfg.WatzapTimeout = t
	}

	if size := os.Getenv("WORKER_POOL_SIZE"); size != "" {
		s, err := strconv.Atoi(size)
		if err != nil {
			return nil, fmt.Errorf("invalid WORKER_POOL_SIZE: %w", err)
		}
		cfg.WorkerPoolSize = s
	}

	if c := os.Getenv("CONSUMER_CONCURRENCY"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			return nil, fmt.Errorf("invalid CONSUMER_CONCURRENCY: %w", err)
		}
		cfg.ConsumerConcurrency = n
	}

	return cfg, nil
}

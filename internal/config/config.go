package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting. Nothing in the service
// reads the environment directly; everything is passed in from here.
type Config struct {
	Port         string
	Env          string
	BaseURL      string
	MongoURI     string
	MongoDB      string
	JWTSecret    string
	SMTPAddr     string
	SMTPUser     string
	SMTPPassword string
	SenderEmail  string
	CORSOrigins  []string
}

// Load reads configuration from the environment, after loading a .env file
// if one is present. Secrets have no defaults; a missing JWT_SECRET is an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "dev"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGO_DB", "authflow"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		SMTPAddr:     os.Getenv("SMTP_ADDR"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SenderEmail:  getEnv("SENDER_EMAIL", os.Getenv("SMTP_USER")),
	}
	if c.JWTSecret == "" {
		return nil, fmt.Errorf("missing env: JWT_SECRET")
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	}
	return c, nil
}

// Production reports whether the service runs with production hardening
// (secure cookies, cross-site cookie policy).
func (c *Config) Production() bool {
	return c.Env == "production"
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

package main

import (
	"os"

	"github.com/Rohianon/chatcommerce/pkg/logger"
)

func main() {
	logger.Init("paystack-mock", "info", true)

	server := NewServer(Config{
		SecretKey:  getenv("PAYSTACK_SECRET_KEY", "sk_test_mock"),
		WebhookURL: getenv("WEBHOOK_URL", "http://localhost:8080/webhook/paystack"),
		AutoPay:    os.Getenv("AUTO_PAY") == "true",
	})
	go server.processWebhooks()

	port := getenv("PORT", "8091")
	logger.Info().Str("port", port).Msg("Paystack mock server starting")
	if err := server.App().Listen(":" + port); err != nil {
		logger.Fatal().Err(err).Msg("Paystack mock server stopped")
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

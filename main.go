package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jhaldar/sprout/client"
	"github.com/jhaldar/sprout/cmd"
	"github.com/jhaldar/sprout/notifications/email"
	"github.com/jhaldar/sprout/queue"
	"github.com/jhaldar/sprout/reporter"
	"github.com/jhaldar/sprout/server"
	"github.com/jhaldar/sprout/server/auth"
	"github.com/jhaldar/sprout/storage/cache"
	storage "github.com/jhaldar/sprout/storage/persistent"
	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

func main() {
	// Load the .env file
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Error loading .env file")
	}

	// Read the environment variables: the JWT signing key, the keyring entry
	// names for the token pair, the server URL, the MongoDB/Redis/RabbitMQ
	// endpoints, and the SMTP credentials for notification emails.
	signingKey := os.Getenv("JWT_SIGNING_KEY")
	authToken := os.Getenv("AUTH_TOKEN")
	authTokenRefresh := os.Getenv("AUTH_TOKEN_REFRESH")
	serverURL := os.Getenv("SERVER_URL")
	dbURI := os.Getenv("MONGODB_URI")
	dbName := os.Getenv("DB_NAME")
	smtpEmail := os.Getenv("GOOGLE_EMAIL")
	smtpPassword := os.Getenv("GOOGLE_PASS")
	redisURL := os.Getenv("REDIS_URL")
	rabbitMQURL := os.Getenv("RABBITMQ_URL")
	numTierProducers := 1
	numTierConsumers := 2
	ctx := context.Background()

	if signingKey == "" {
		signingKey = "your_default_signing_key"
	}
	if authToken == "" {
		authToken = "your_default_auth_token"
	}
	if authTokenRefresh == "" {
		authTokenRefresh = "your_default_auth_token_refresh"
	}

	// Persistent storage for accounts, profiles, and day records
	store, err := storage.NewStorage(dbName, dbURI)
	if err != nil {
		log.Fatal("error initializing storage: ", err)
	}

	// Redis cache for rendered reports and notification deduplication
	reportCache, err := cache.NewCache(redisURL)
	if err != nil {
		log.Fatal("error initializing cache: ", err)
	}

	// Mailer for reward-tier notification emails
	mailer, err := email.NewMailer(smtpEmail, smtpPassword)
	if err != nil {
		log.Fatal("error initializing mailer: ", err)
	}

	// Build the tier notification queue and start its consumers
	tierQueue := queue.BuildTierQueue(rabbitMQURL, numTierProducers, numTierConsumers, reportCache, mailer)
	if _, err := tierQueue.StartConsumers(ctx); err != nil {
		log.Fatal("error starting queue consumers: ", err)
	}

	// One background reporter per active profile
	reporters := reporter.NewManager(ctx, func() *reporter.Reporter {
		return reporter.New(store, reportCache, queue.TierPublisher{Queue: tierQueue}, reporter.Config{
			NotifyEmail: smtpEmail,
		})
	})

	authService := auth.New(store, signingKey)
	api := server.NewAPI(store, authService, reporters)

	// Start the REST server
	go server.Start(serverURL, signingKey, api)

	// Setting up the signal interrupt handler to gracefully shut down
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		fmt.Println()
		fmt.Println(sig)
		reporters.StopAll()
		store.Disconnect()
		reportCache.Disconnect()
		os.Exit(0)
	}()

	// Run the interactive shell against the local server
	keyring.Delete(client.KeyringService, authToken)
	keyring.Delete(client.KeyringService, authTokenRefresh)
	client.InitClient(serverURL, signingKey, authToken, authTokenRefresh)
	cmd.InitCmd()
	cmd.Execute()
}

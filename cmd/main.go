package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"deafbot/config"
	"deafbot/internal/geocoder"
	"deafbot/internal/handler"
	"deafbot/internal/repository"
	"deafbot/internal/transport"
	"deafbot/traits/database"
	"deafbot/traits/logger"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	zapLogger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()

	cfg, err := config.NewConfig()
	if err != nil {
		zapLogger.Error("error initializing config", zap.Error(err))
		return
	}

	// Initialize database
	db, err := database.InitDatabase(cfg.DBPath)
	if err != nil {
		zapLogger.Error("error initializing database", zap.Error(err))
		return
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	cache := repository.NewLocationCache(redisClient)
	if err := cache.Ping(ctx); err != nil {
		zapLogger.Warn("Redis is unavailable, geocoding without cache", zap.Error(err))
	}

	geo := geocoder.New(cfg.MapsAPIKey, cfg.GeocoderURL, cache, zapLogger)
	handl := handler.NewHandler(zapLogger, cfg, ctx, db, geo, cache)
	opts := []bot.Option{
		bot.WithDefaultHandler(handl.DefaultHandler),
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		zapLogger.Error("error in start bot", zap.Error(err))
		return
	}
	handl.SetTransport(transport.NewTelegram(b))

	if _, err := b.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: []models.BotCommand{{Command: "start", Description: "Начать"}},
	}); err != nil {
		zapLogger.Warn("Failed to set bot commands", zap.Error(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-stop
		zapLogger.Info("Bot stopped successfully")
		cancel()
	}()

	go handl.StartWebServer(ctx)
	zapLogger.Info("Starting web server", zap.String("port", cfg.Port))
	zapLogger.Info("Bot started successfully")
	b.Start(ctx)

	handl.Wait()
}

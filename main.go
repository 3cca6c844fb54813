package main

import (
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"cipherchat/api"
	"cipherchat/chat"
	"cipherchat/config"
	"cipherchat/directory"
	"cipherchat/notify"
	"cipherchat/storage"
)

func main() {
	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		logrus.WithError(err).Fatal("load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.WithField("config", cfgPath).Info("configuration loaded")

	store, err := storage.OpenPath(cfg.DBPath)
	if err != nil {
		logrus.WithError(err).Fatal("open message store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logrus.WithError(err).Warn("close message store")
		}
	}()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	publisher := notify.NewRedisPublisher(redisClient)

	if cfg.DirectoryBaseURL == "" {
		logrus.Warn("directory_base_url is empty; profile lookups will fail")
	}
	dir := directory.NewHTTPClient(cfg.DirectoryBaseURL)

	keys := chat.NewKeyService(store)
	service := chat.NewChatService(store, keys, dir, publisher, chat.Config{
		FallbackPeerID:  cfg.FallbackPeerID,
		FallbackPreview: cfg.FallbackPeerPreview,
	})

	router := api.NewRouter(service, keys, publisher)

	logrus.WithField("addr", cfg.ListenAddr).Info("starting chat service")
	if err := router.Run(cfg.ListenAddr); err != nil {
		logrus.WithError(err).Fatal("http server stopped")
	}
}

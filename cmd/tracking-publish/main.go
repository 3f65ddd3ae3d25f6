// Command tracking-publish pushes a snapshot file to the configured source
// backend, for seeding and manual testing.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	logpkg "fleet-tracker/common/logger"
	mqttcommon "fleet-tracker/common/mqtt"
	rediscommon "fleet-tracker/common/redis"
	"fleet-tracker/internal/config"
	"fleet-tracker/internal/models"
	"fleet-tracker/internal/subscription"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configFile := pflag.StringP("config", "c", os.Getenv("CONFIG_FILE"), "YAML configuration file")
	backend := pflag.StringP("backend", "b", config.BackendRedis, "backend to publish to: redis or mqtt")
	sourceName := pflag.StringP("source", "s", "", "source: positions, units, personnel, activity_notes")
	file := pflag.StringP("file", "f", "", "JSON array of records (\"-\" for stdin)")
	maxLen := pflag.Int64("max-len", 100, "approximate stream length kept in Redis")
	pflag.Parse()

	if err := run(*configFile, *backend, *sourceName, *file, *maxLen); err != nil {
		fmt.Fprintf(os.Stderr, "tracking-publish: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, backend, sourceName, file string, maxLen int64) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	log, err := logpkg.NewLogger(cfg.Log.Level, "console", "tracking-publish")
	if err != nil {
		return err
	}
	defer log.Sync()

	source, err := models.ParseSource(sourceName)
	if err != nil {
		return err
	}
	data, err := readInput(file)
	if err != nil {
		return err
	}
	loc, err := cfg.Tracking.Location()
	if err != nil {
		return err
	}
	snap, err := models.DecodeSnapshot(source, data, loc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch backend {
	case config.BackendRedis:
		client := rediscommon.NewRedisClient(&cfg.Redis)
		defer rediscommon.Close(client)
		if err := rediscommon.Ping(ctx, client); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		p := subscription.NewStreamProvider(client, subscription.StreamOptions{
			Prefix: cfg.Tracking.StreamPrefix,
			MaxLen: maxLen,
		}, log)
		id, err := p.PublishSnapshot(ctx, snap)
		if err != nil {
			return err
		}
		log.Info("Published snapshot",
			zap.String("stream", p.StreamName(source)),
			zap.String("id", id),
			zap.Int("records", snap.Len()),
		)
	case config.BackendMQTT:
		mqttCfg := cfg.MQTT
		mqttCfg.ClientID = "tracking-publish-" + uuid.NewString()[:8]
		client, err := mqttcommon.NewClient(&mqttCfg, log)
		if err != nil {
			return err
		}
		defer client.Disconnect()
		if err := subscription.PublishMQTTSnapshot(client, cfg.Tracking.MQTTTopicPrefix, mqttCfg.QoS, snap); err != nil {
			return err
		}
		log.Info("Published snapshot",
			zap.String("topic", subscription.SnapshotTopic(cfg.Tracking.MQTTTopicPrefix, source)),
			zap.Int("records", snap.Len()),
		)
	default:
		return fmt.Errorf("%w: %q", subscription.ErrUnknownBackend, backend)
	}
	return nil
}

func readInput(file string) ([]byte, error) {
	if file == "" {
		return nil, fmt.Errorf("--file is required")
	}
	if file == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(file)
}

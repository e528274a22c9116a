package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/config"
)

// nsqd rejects touch-less messages held longer than its max-msg-timeout.
const maxMsgTimeout = 15 * time.Minute

// StartConsumers subscribes the workers to their topics on the backend channel.
// The returned consumers must be stopped by the caller.
func StartConsumers(cfg *config.Config, a *App) ([]*nsq.Consumer, error) {
	handlers := map[string]nsq.Handler{
		config.TopicDocumentIngest:   a.IngestConsumer,
		config.TopicOriginalityCheck: a.OriginalityConsumer,
	}

	msgTimeout := time.Duration(cfg.UnitTimeoutMins) * time.Minute
	if msgTimeout <= 0 || msgTimeout > maxMsgTimeout {
		msgTimeout = maxMsgTimeout
	}

	var consumers []*nsq.Consumer
	for topic, h := range handlers {
		nsqCfg := nsq.NewConfig()
		nsqCfg.MaxInFlight = max(1, cfg.WorkerInFlight)
		nsqCfg.MsgTimeout = msgTimeout

		c, err := nsq.NewConsumer(topic, config.ChannelBackend, nsqCfg)
		if err != nil {
			stopAll(consumers)
			return nil, fmt.Errorf("nsq consumer %s: %w", topic, err)
		}
		c.AddConcurrentHandlers(h, nsqCfg.MaxInFlight)

		if err := c.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			c.Stop()
			stopAll(consumers)
			return nil, fmt.Errorf("nsq lookupd %s: %w", topic, err)
		}
		slog.Info("NSQ consumer connected", "topic", topic, "channel", config.ChannelBackend)
		consumers = append(consumers, c)
	}
	return consumers, nil
}

func stopAll(consumers []*nsq.Consumer) {
	for _, c := range consumers {
		c.Stop()
		<-c.StopChan
	}
}

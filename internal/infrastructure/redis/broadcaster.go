package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/ddt-ledger/internal/application/dto"
	"github.com/jhoicas/ddt-ledger/internal/application/notify"
	"github.com/jhoicas/ddt-ledger/pkg/config"
	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

// publisher subconjunto de *goredis.Client usado por el broadcaster.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// Broadcaster publica los eventos DDT y las alertas de stock bajo en canales pub/sub.
// Eventos en <channel>, alertas en <channel>:alerts.
type Broadcaster struct {
	client  publisher
	channel string
	log     *logger.Logger
}

var (
	_ notify.Listener  = (*Broadcaster)(nil)
	_ notify.AlertSink = (*Broadcaster)(nil)
)

// NewClient abre el cliente y verifica la conexión.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	c := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return c, nil
}

// NewBroadcaster construye el broadcaster sobre un cliente ya abierto.
func NewBroadcaster(client publisher, channel string, log *logger.Logger) *Broadcaster {
	return &Broadcaster{client: client, channel: channel, log: log}
}

// AlertsChannel canal de alertas de stock bajo.
func (b *Broadcaster) AlertsChannel() string { return b.channel + ":alerts" }

// Handle implementa notify.Listener. Un fallo de publicación solo se registra.
func (b *Broadcaster) Handle(ctx context.Context, ev notify.Event) {
	if err := b.publish(ctx, b.channel, dto.FromEvent(ev)); err != nil {
		b.log.Error().Err(err).Str("event", string(ev.Type)).Str("event_id", ev.ID.String()).Msg("publicar evento DDT")
	}
}

// PublishAlert implementa notify.AlertSink.
func (b *Broadcaster) PublishAlert(ctx context.Context, a notify.LowStockAlert) error {
	return b.publish(ctx, b.AlertsChannel(), a)
}

func (b *Broadcaster) publish(ctx context.Context, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serializar mensaje: %w", err)
	}
	if err := b.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmarrero/fanlink-backend/pkg/config"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 45 * time.Second
)

// Subscriber opens pub/sub subscriptions on the Redis bus.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *goredis.PubSub
}

// Gateway bridges websocket connections to the Redis delivery channels.
type Gateway struct {
	subscriber Subscriber
	cfg        config.RealtimeConfig
	logg       *logger.Logger
	upgrader   websocket.Upgrader
}

// NewGateway builds a websocket gateway.
func NewGateway(subscriber Subscriber, cfg config.RealtimeConfig, logg *logger.Logger) (*Gateway, error) {
	if subscriber == nil {
		return nil, errors.New("subscriber is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Gateway{
		subscriber: subscriber,
		cfg:        cfg,
		logg:       logg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}, nil
}

// Serve upgrades the request and streams the user's delivery channels until
// the client disconnects or ctx is cancelled.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return errors.New("user id is required")
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	defer conn.Close()

	ctx := r.Context()
	channels := []string{
		fmt.Sprintf("%s.%s", g.cfg.UserChannelPrefix, userID),
		g.cfg.PostsChannel,
	}
	sub := g.subscriber.Subscribe(ctx, channels...)
	defer sub.Close()

	logCtx := g.logg.WithUserID(ctx, userID.String())
	g.logg.Info(logCtx, "websocket connected")

	stop := make(chan struct{})
	go g.readLoop(conn, stop)

	return g.writeLoop(logCtx, conn, sub.Channel(), stop)
}

// readLoop drains client frames so close/pong handling works, and signals
// stop when the peer goes away.
func (g *Gateway) readLoop(conn *websocket.Conn, stop chan struct{}) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			close(stop)
			return
		}
	}
}

func (g *Gateway) writeLoop(ctx context.Context, conn *websocket.Conn, messages <-chan *goredis.Message, stop <-chan struct{}) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				g.logg.Warn(g.logg.WithField(ctx, "error", err.Error()), "websocket push failed")
				return err
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-stop:
			g.logg.Info(ctx, "websocket disconnected")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

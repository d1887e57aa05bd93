package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/metrics"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

type EventLog interface {
	ListEvents(ctx context.Context, id uuid.UUID) ([]models.OrderEvent, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, orderID uuid.UUID, handler func(event models.OrderEvent)) (func(), error)
}

// Handler стримит жизненный цикл ордера по WebSocket: подписка на шину
// до чтения бэклога, затем бэклог из хранилища, затем буферизованные
// на время чтения живые события, затем живой поток. Каждый статус
// доставляется соединению не больше одного раза.
type Handler struct {
	store    EventLog
	bus      Subscriber
	upgrader websocket.Upgrader
}

func NewHandler(store EventLog, bus Subscriber) *Handler {
	return &Handler{
		store: store,
		bus:   bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	rawOrderID := request.URL.Query().Get("order_id")
	orderID, parseErr := uuid.Parse(rawOrderID)

	conn, err := h.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		logger.Warn(ctx, "websocket upgrade failed", zap.Error(err))
		return
	}

	// Отсутствие идентификатора ордера — нарушение политики подключения:
	// закрываем кодом 1008 до какой-либо подписки.
	if rawOrderID == "" || parseErr != nil {
		h.rejectConnection(ctx, conn)
		return
	}

	ctx = logger.ContextWithOrderID(ctx, orderID.String())
	h.stream(ctx, newConnection(conn), orderID)
}

func (h *Handler) rejectConnection(ctx context.Context, conn *websocket.Conn) {
	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "order_id query parameter is required")
	if err := conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeTimeout)); err != nil {
		logger.Warn(ctx, "policy violation close failed", zap.Error(err))
	}
	_ = conn.Close()
}

func (h *Handler) stream(ctx context.Context, c *connection, orderID uuid.UUID) {
	defer c.close()

	metrics.ActiveStreamConnections.Inc()
	defer metrics.ActiveStreamConnections.Dec()

	// Подписка раньше чтения бэклога: событие, гонящееся с чтением,
	// попадёт либо в бэклог, либо в буфер — но не потеряется и не
	// обгонит бэклог.
	var stitch sync.Mutex
	backlogDone := false
	var buffered []models.OrderEvent

	unsubscribe, err := h.bus.Subscribe(ctx, orderID, func(event models.OrderEvent) {
		stitch.Lock()
		if !backlogDone {
			buffered = append(buffered, event)
			stitch.Unlock()
			return
		}
		stitch.Unlock()

		c.deliver(ctx, event)
	})
	if err != nil {
		logger.Error(ctx, "bus subscribe failed", zap.Error(err))
		return
	}
	defer func() {
		// Отписка best-effort: паника здесь не должна ронять шлюз.
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "unsubscribe panicked", zap.Any("panic", r))
			}
		}()
		unsubscribe()
	}()

	backlog, err := h.store.ListEvents(ctx, orderID)
	if err != nil {
		logger.Error(ctx, "backlog read failed", zap.Error(err))
		return
	}

	models.SortCanonical(backlog)
	for _, event := range backlog {
		if !c.deliver(ctx, event) {
			return
		}
	}

	// Сшивка: буферизованные живые события доставляются в каноническом
	// порядке под тем же замком, что и переключение в живой режим, —
	// новое событие не может встать вперёд буфера.
	stitch.Lock()
	flush := buffered
	buffered = nil
	models.SortCanonical(flush)
	for _, event := range flush {
		c.deliver(ctx, event)
	}
	backlogDone = true
	stitch.Unlock()

	c.readLoop(ctx)
}

// connection сериализует записи в сокет и отслеживает уже
// доставленные статусы.
type connection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	sent    map[models.OrderStatus]struct{}
}

func newConnection(conn *websocket.Conn) *connection {
	return &connection{
		conn: conn,
		sent: make(map[models.OrderStatus]struct{}, 6),
	}
}

// deliver пишет событие, если его статус ещё не отправлялся.
// Возвращает false при ошибке записи (соединение мертво).
func (c *connection) deliver(ctx context.Context, event models.OrderEvent) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, already := c.sent[event.Status]; already {
		return true
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(event); err != nil {
		logger.Warn(ctx, "event delivery failed",
			zap.String("status", string(event.Status)),
			zap.Error(err),
		)
		return false
	}

	c.sent[event.Status] = struct{}{}
	metrics.StreamEventsDeliveredTotal.WithLabelValues(string(event.Status)).Inc()

	return true
}

// readLoop держит соединение: читает до ошибки (отключение клиента)
// и отвечает ping-ами на тишину.
func (c *connection) readLoop(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	done := make(chan struct{})
	defer close(done)

	go c.pingLoop(done)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug(ctx, "stream connection closed", zap.Error(err))
			}
			return
		}
	}
}

func (c *connection) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	_ = c.conn.Close()
}

package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/models"
)

const (
	writeWait       = 10 * time.Second
	defaultPingWait = 54 * time.Second
	maxFrameSize    = 16 * 1024

	// CloseEvicted tells the client it fell behind and must reconnect with
	// after_seq to replay what it missed.
	CloseEvicted = 4000
)

// Channel is the negotiation surface a socket session drives.
type Channel interface {
	Send(ctx context.Context, conversationID, senderID string, msgType models.MessageType, raw json.RawMessage) (*models.Message, error)
	Typing(ctx context.Context, conversationID, senderID string, typing bool) error
	MarkRead(ctx context.Context, conversationID, readerID string, upToSeq int64) (int64, error)
}

type InboundAction string

const (
	ActionSend   InboundAction = "send"
	ActionTyping InboundAction = "typing"
	ActionRead   InboundAction = "read"
)

// InboundFrame is what a client writes on the socket.
type InboundFrame struct {
	Action  InboundAction      `json:"action"`
	Type    models.MessageType `json:"type,omitempty"`
	Payload json.RawMessage    `json:"payload,omitempty"`
	Typing  bool               `json:"typing,omitempty"`
	UpToSeq int64              `json:"up_to_seq,omitempty"`
}

// ReplyFrame answers an inbound frame. Broadcast events are written as
// models.ChannelEvent.
type ReplyFrame struct {
	Kind    string          `json:"kind"`
	Action  InboundAction   `json:"action,omitempty"`
	Message *models.Message `json:"message,omitempty"`
	UpToSeq int64           `json:"up_to_seq,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    apperrors.Code  `json:"code,omitempty"`
}

// Client pumps one WebSocket connection for one conversation participant.
type Client struct {
	conn       *websocket.Conn
	sub        *Subscription
	channel    Channel
	driverID   string
	pingPeriod time.Duration
	replies    chan ReplyFrame
	done       chan struct{}
	quit       chan struct{}
	log        zerolog.Logger
}

func NewClient(conn *websocket.Conn, sub *Subscription, channel Channel, pingPeriod time.Duration, log zerolog.Logger) *Client {
	if pingPeriod <= 0 {
		pingPeriod = defaultPingWait
	}
	return &Client{
		conn:       conn,
		sub:        sub,
		channel:    channel,
		driverID:   sub.ViewerID,
		pingPeriod: pingPeriod,
		replies:    make(chan ReplyFrame, 16),
		done:       make(chan struct{}),
		quit:       make(chan struct{}),
		log: log.With().
			Str("conversation_id", sub.ConversationID).
			Str("driver_id", sub.ViewerID).
			Str("subscription_id", sub.ID).
			Logger(),
	}
}

// Serve runs the connection until either side goes away. The subscription
// and connection are closed on return.
func (c *Client) Serve(ctx context.Context) {
	defer c.sub.Close()
	defer c.conn.Close()

	go c.readPump(ctx)
	c.writePump(ctx)
	close(c.quit)
}

func (c *Client) pongWait() time.Duration {
	return c.pingPeriod * 10 / 9
}

func (c *Client) readPump(ctx context.Context) {
	defer close(c.done)

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
		return nil
	})

	for {
		var frame InboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		reply := c.dispatch(ctx, frame)
		if reply == nil {
			continue
		}
		select {
		case c.replies <- *reply:
		case <-c.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) dispatch(ctx context.Context, frame InboundFrame) *ReplyFrame {
	convID := c.sub.ConversationID
	switch frame.Action {
	case ActionSend:
		msg, err := c.channel.Send(ctx, convID, c.driverID, frame.Type, frame.Payload)
		if err != nil {
			return errorReply(frame.Action, err)
		}
		return &ReplyFrame{Kind: "ack", Action: frame.Action, Message: msg}
	case ActionTyping:
		if err := c.channel.Typing(ctx, convID, c.driverID, frame.Typing); err != nil {
			return errorReply(frame.Action, err)
		}
		return nil
	case ActionRead:
		cursor, err := c.channel.MarkRead(ctx, convID, c.driverID, frame.UpToSeq)
		if err != nil {
			return errorReply(frame.Action, err)
		}
		return &ReplyFrame{Kind: "ack", Action: frame.Action, UpToSeq: cursor}
	default:
		return errorReply(frame.Action, apperrors.New(apperrors.CodeValidation, "unknown action"))
	}
}

func errorReply(action InboundAction, err error) *ReplyFrame {
	code := apperrors.CodeOf(err)
	meta := apperrors.MetadataFor(code)
	message := meta.PublicMessage
	if typed := apperrors.As(err); typed != nil && code != apperrors.CodeInternal && code != apperrors.CodeTransient {
		message = typed.Message()
	}
	return &ReplyFrame{Kind: "error", Action: action, Error: message, Code: code}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	events := c.sub.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				c.closeEvicted()
				return
			}
			if err := c.write(ev); err != nil {
				return
			}
		case reply := <-c.replies:
			if err := c.write(reply); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

func (c *Client) write(v any) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		c.log.Debug().Err(err).Msg("websocket write failed")
		return err
	}
	return nil
}

func (c *Client) closeEvicted() {
	if !c.sub.Evicted() {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(CloseEvicted, "fell behind, reconnect with after_seq"))
}

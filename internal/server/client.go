package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/messagram/messagram-server/internal/database"
	"github.com/messagram/messagram-server/internal/stats"
	"github.com/messagram/messagram-server/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	send       chan *ServerMessage
	stop       chan struct{}
}

func NewClient(conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(time.Duration(pingInterval))
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		switch {
		case msg.Join != nil:
			c.handleJoin(&msg)
		case msg.GetMessages != nil:
			c.handleGetMessages(&msg)
		case msg.SendMessage != nil:
			c.handleSendMessage(&msg)
		}
	}
}

// handleJoin binds this channel to the identity named in the event.
// There is no acknowledgement.
func (c *Client) handleJoin(msg *ClientMessage) {
	identity := types.NormalizeUsername(msg.Join.Username)
	if identity == "" {
		c.queueMessage(ErrBadRequest(msg.Id, "username is required"))
		return
	}

	select {
	case c.chatServer.bindChan <- bindRequest{client: c, identity: identity}:
	default:
		c.log.Println("bind channel full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

// handleGetMessages fetches the requested conversation's history and
// pushes it back to the requesting channel only.
func (c *Client) handleGetMessages(msg *ClientMessage) {
	var (
		rows []database.Message
		err  error
	)

	switch msg.GetMessages.Kind {
	case ConversationDirect:
		me := types.NormalizeUsername(msg.GetMessages.Me)
		mate := types.NormalizeUsername(msg.GetMessages.Mate)
		if me == "" || mate == "" {
			c.queueMessage(ErrBadRequest(msg.Id, "me and mate are required"))
			return
		}
		rows, err = c.chatServer.db.ConversationMessages(me, mate)
	case ConversationGlobal:
		rows, err = c.chatServer.db.GlobalMessages()
	default:
		c.queueMessage(ErrBadRequest(msg.Id, "unknown conversation kind"))
		return
	}

	if err != nil {
		c.log.Println("fetch history:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	history := make([]types.Message, len(rows))
	for i, row := range rows {
		history[i] = toWireMessage(row)
	}

	c.queueMessage(&ServerMessage{Id: msg.Id, History: history})
}

// handleSendMessage persists the message, composes the canonical form
// with the server-assigned id and timestamp, and fans it out to the
// destination set. The protocol is fire-and-forget: an append failure
// is logged and nothing is broadcast, with no error to the sender.
func (c *Client) handleSendMessage(msg *ClientMessage) {
	send := msg.SendMessage

	sender := types.NormalizeUsername(send.Sender)
	if sender == "" {
		c.queueMessage(ErrBadRequest(msg.Id, "sender is required"))
		return
	}

	kind := send.Kind
	if kind == "" {
		kind = types.KindText
	}

	saved, err := c.chatServer.db.CreateMessage(database.Message{
		Text:      send.Text,
		Sender:    sender,
		Receiver:  types.NormalizeUsername(send.Receiver),
		Timestamp: time.Now().Format("15:04"),
		Kind:      kind,
		FileUrl:   send.FileUrl,
	})
	if err != nil {
		c.log.Println("error saving message:", err)
		return
	}

	c.chatServer.stats.Incr(stats.MessagesSent)

	composed := toWireMessage(saved)
	c.chatServer.publish(route(&composed), &ServerMessage{Message: &composed})
}

func toWireMessage(msg database.Message) types.Message {
	return types.Message{
		Id:        msg.Id,
		Text:      msg.Text,
		Sender:    msg.Sender,
		Receiver:  msg.Receiver,
		Timestamp: msg.Timestamp,
		Kind:      msg.Kind,
		FileUrl:   msg.FileUrl,
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) cleanup() {
	c.chatServer.deRegisterChan <- c
	close(c.stop)
}

package server

import (
	"log"

	"github.com/messagram/messagram-server/internal/database"
	"github.com/messagram/messagram-server/internal/stats"
	"github.com/messagram/messagram-server/internal/types"
)

// ChatServer owns the session registry: the mapping from identity to
// the set of live clients currently bound to it. All mutations and
// fan-out go through the Run loop, so no locking is needed on the maps.
type ChatServer struct {
	log            *log.Logger
	db             database.MessagramRepository
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	sessions       map[string]map[*Client]struct{}
	bound          map[*Client]string
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	bindChan       chan bindRequest
	publishChan    chan publishRequest
	stop           chan struct{}
	done           chan struct{}
}

type bindRequest struct {
	client   *Client
	identity string
}

// publishRequest carries a composed message to a destination identity
// set. A nil identity slice means every bound session.
type publishRequest struct {
	identities []string
	msg        *ServerMessage
}

func NewChatServer(logger *log.Logger, db database.MessagramRepository, sp stats.StatsProvider) (*ChatServer, error) {
	return &ChatServer{
		log:            logger,
		db:             db,
		stats:          sp,
		clients:        make(map[*Client]struct{}),
		sessions:       make(map[string]map[*Client]struct{}),
		bound:          make(map[*Client]string),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		bindChan:       make(chan bindRequest, 256),
		publishChan:    make(chan publishRequest, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.RegisterChan:
			cs.handleRegister(client)
		case client := <-cs.deRegisterChan:
			cs.handleDeRegister(client)
		case req := <-cs.bindChan:
			cs.handleBind(req.client, req.identity)
		case req := <-cs.publishChan:
			cs.handlePublish(req)
		case <-cs.stop:
			cs.log.Println("closing client connections")
			for c := range cs.clients {
				close(c.stop)
			}

			close(cs.done)
			return
		}
	}
}

func (cs *ChatServer) handleRegister(c *Client) {
	cs.log.Println("adding connection")
	cs.clients[c] = struct{}{}
	cs.stats.Incr(stats.ActiveSessions)
}

func (cs *ChatServer) handleDeRegister(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	cs.handleUnbind(c)
	delete(cs.clients, c)
	cs.stats.Decr(stats.ActiveSessions)
}

// handleBind associates a client with an identity. Binding is
// idempotent per client; binding to a different identity overwrites
// the previous binding rather than merging.
func (cs *ChatServer) handleBind(c *Client, identity string) {
	if prev, ok := cs.bound[c]; ok {
		if prev == identity {
			return
		}
		cs.handleUnbind(c)
	}

	if cs.sessions[identity] == nil {
		cs.sessions[identity] = make(map[*Client]struct{})
	}
	cs.sessions[identity][c] = struct{}{}
	cs.bound[c] = identity

	cs.log.Printf("bound session to %q, %d live session(s)", identity, len(cs.sessions[identity]))
}

func (cs *ChatServer) handleUnbind(c *Client) {
	identity, ok := cs.bound[c]
	if !ok {
		return
	}

	delete(cs.bound, c)
	if clients, ok := cs.sessions[identity]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(cs.sessions, identity)
		}
	}

	cs.log.Printf("unbound session from %q", identity)
}

// handlePublish fans the message out to every live session of every
// destination identity. Identities with no bound session are skipped;
// delivery is fire-and-forget and does not report reachability.
func (cs *ChatServer) handlePublish(req publishRequest) {
	if req.identities == nil {
		for c := range cs.bound {
			if c.queueMessage(req.msg) {
				cs.stats.Incr(stats.MessagesDelivered)
			}
		}
		return
	}

	for _, identity := range req.identities {
		for c := range cs.sessions[identity] {
			if c.queueMessage(req.msg) {
				cs.stats.Incr(stats.MessagesDelivered)
			}
		}
	}
}

// route resolves the destination identity set for a composed message:
// nil (everyone) for the global conversation, otherwise sender and
// receiver. The sender always gets its own message back so every one
// of its sessions renders the send identically to the receiver's view.
func route(msg *types.Message) []string {
	if msg.Global() {
		return nil
	}

	if msg.Sender == msg.Receiver {
		return []string{msg.Sender}
	}

	return []string{msg.Sender, msg.Receiver}
}

func (cs *ChatServer) publish(identities []string, msg *ServerMessage) bool {
	select {
	case cs.publishChan <- publishRequest{identities: identities, msg: msg}:
		return true
	default:
		cs.log.Println("publish channel full, dropping message")
		return false
	}
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.RegisterChan <- c
}

func (cs *ChatServer) Shutdown() {
	cs.log.Println("received shutdown signal")
	close(cs.stop)

	<-cs.done
}

// Package devserver is a loopback stand-in for the production call
// gateway: it serves the bootstrap endpoint and relays signaling events
// between the two legs of a call. Used by the demo binary and the
// integration tests; it implements just enough of the gateway protocol
// for one 1:1 call.
package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/cicare/callsdk/internal/domain"
)

var errBackpressure = errors.New("backpressure")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type peer struct {
	token string
	conn  *websocket.Conn
	send  chan []byte

	mu     sync.Mutex
	closed bool
}

func (p *peer) trySend(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("connection closed")
	}
	select {
	case p.send <- data:
	default:
		return errBackpressure
	}
	return nil
}

func (p *peer) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.send)
	_ = p.conn.Close()
	p.mu.Unlock()
}

type Server struct {
	mu    sync.Mutex
	peers map[string]*peer
}

func New() *Server {
	return &Server{peers: make(map[string]*peer)}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.POST("/sdk-call/one2one", s.handleSession)
	r.GET("/ws/signal", s.handleSignal)
	return r
}

func (s *Server) handleSession(c *gin.Context) {
	var req struct {
		CallerID string `json:"callerId"`
		CalleeID string `json:"calleeId"`
		CheckSum string `json:"checkSum"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	log.Info().
		Str("module", "devserver").
		Str("caller", req.CallerID).
		Str("callee", req.CalleeID).
		Msg("session requested")
	c.JSON(http.StatusOK, domain.SessionGrant{
		Server: "http://" + c.Request.Host + "/ws/signal",
		Token:  uuid.NewString(),
	})
}

func (s *Server) handleSignal(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "devserver").Msg("ws upgrade")
		return
	}

	p := &peer{
		token: token,
		conn:  ws,
		send:  make(chan []byte, 32),
	}
	s.register(p)
	log.Info().Str("module", "devserver").Str("token", token).Msg("peer connected")

	go s.writePump(p)
	s.readPump(p)
}

func (s *Server) register(p *peer) {
	s.mu.Lock()
	s.peers[p.token] = p
	s.mu.Unlock()
}

func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	delete(s.peers, p.token)
	s.mu.Unlock()
}

func (s *Server) others(p *peer) []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*peer, 0, len(s.peers))
	for _, other := range s.peers {
		if other != p {
			out = append(out, other)
		}
	}
	return out
}

func (s *Server) writePump(p *peer) {
	for data := range p.send {
		if err := p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			return
		}
		if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "devserver").Msg("write error")
			return
		}
	}
}

func (s *Server) readPump(p *peer) {
	defer func() {
		s.unregister(p)
		// The other leg learns about the drop as a hangup.
		s.broadcast(p, domain.EventHangup, nil)
		p.close()
		log.Info().Str("module", "devserver").Str("token", p.token).Msg("peer disconnected")
	}()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleFrame(p, data)
	}
}

func (s *Server) handleFrame(p *peer, data []byte) {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "devserver").Msg("bad json")
		return
	}

	switch env.Event {
	case domain.EventInitCall:
		var p2 domain.InitCallPayload
		if err := json.Unmarshal(env.Data, &p2); err != nil {
			log.Error().Err(err).Str("module", "devserver").Msg("bad init payload")
			return
		}
		// The caller's offer reaches the callee as SDP_OFFER; the
		// caller hears ringing while the callee decides.
		s.broadcast(p, domain.EventSDPOffer, domain.SDPPayload{SDP: p2.SDP.SDP})
		s.sendTo(p, domain.EventRinging, nil)
	case domain.EventSDPAnswer:
		s.relay(p, data)
		s.broadcast(p, domain.EventAccepted, nil)
	case domain.EventSDPOffer, domain.EventICECandidate, domain.EventHangup:
		s.relay(p, data)
	default:
		log.Warn().Str("module", "devserver").Str("event", env.Event).Msg("unknown signal")
	}
}

// relay forwards the raw frame to every other connected peer.
func (s *Server) relay(p *peer, data []byte) {
	for _, other := range s.others(p) {
		if err := other.trySend(data); err != nil {
			log.Warn().Err(err).Str("module", "devserver").Str("token", other.token).Msg("relay dropped")
		}
	}
}

func (s *Server) broadcast(p *peer, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "devserver").Msg("encode")
		return
	}
	for _, other := range s.others(p) {
		if err := other.trySend(data); err != nil {
			log.Warn().Err(err).Str("module", "devserver").Str("token", other.token).Msg("send dropped")
		}
	}
}

func (s *Server) sendTo(p *peer, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "devserver").Msg("encode")
		return
	}
	if err := p.trySend(data); err != nil {
		log.Warn().Err(err).Str("module", "devserver").Str("token", p.token).Msg("send dropped")
	}
}

func encode(event string, payload any) ([]byte, error) {
	env := struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{Event: event, Data: payload}
	return json.Marshal(env)
}

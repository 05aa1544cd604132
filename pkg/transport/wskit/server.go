package wskit

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/fgrzl/hubkit/pkg/auth/jwtkit"
	"github.com/fgrzl/hubkit/pkg/callbag"
	"github.com/fgrzl/hubkit/pkg/codec"
	"github.com/fgrzl/hubkit/pkg/pubsub"
	"github.com/fgrzl/mux"
	"github.com/fgrzl/timestamp"
	"golang.org/x/net/websocket"
)

// DefaultPath is where ConfigureWebSocketServer mounts the bridge.
const DefaultPath = "/pubsub"

var ErrUnauthorized = errors.New("wskit: missing or invalid bearer token")

// Server bridges websocket clients onto a local PubSub.
type Server struct {
	bus       pubsub.PubSub
	validator jwtkit.Validator
}

// NewServer authenticates clients with validator. A nil validator accepts
// everyone with full access.
func NewServer(bus pubsub.PubSub, validator jwtkit.Validator) *Server {
	return &Server{bus: bus, validator: validator}
}

func ConfigureWebSocketServer(router *mux.Router, server *Server) {
	router.GET(DefaultPath, server.connect)
}

func (s *Server) connect(c *mux.RouteContext) {
	session, err := s.authenticate(c.Request)
	if err != nil && c.User != nil {
		session, err = NewPrincipalSession(c.User)
	}
	if err != nil {
		slog.Debug("wskit: rejected connection", slog.String("error", err.Error()))
		c.Unauthorized()
		return
	}
	s.upgrade(c.Response, c.Request, session)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session, err := s.authenticate(r)
	if err != nil {
		slog.Debug("wskit: rejected connection", slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	s.upgrade(w, r, session)
}

func (s *Server) authenticate(r *http.Request) (Session, error) {
	if s.validator == nil {
		return NewClientSession(), nil
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := s.validator.Validate(token)
	if err != nil {
		return nil, errors.Join(ErrUnauthorized, err)
	}
	return NewServerSession(jwtkit.Scopes(claims))
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request, session Session) {
	handler := &webSocketHandler{session: session, bus: s.bus}
	websocket.Handler(handler.handle).ServeHTTP(w, r)
}

type webSocketHandler struct {
	session Session
	bus     pubsub.PubSub
}

func (h *webSocketHandler) handle(ws *websocket.Conn) {
	ws.PayloadType = websocket.BinaryFrame
	peer := &peer{
		conn:    newConn("server", ws),
		session: h.session,
		bus:     h.bus,
		subs:    make(map[string]callbag.Subscription[any]),
	}
	slog.Debug("wskit: client connected", slog.String("id", peer.conn.ID.String()))
	peer.conn.readLoop(peer.handle)
	peer.release()
}

// peer is the server side of one client connection.
type peer struct {
	conn    *Conn
	session Session
	bus     pubsub.PubSub

	mu   sync.Mutex
	subs map[string]callbag.Subscription[any]
}

func (p *peer) handle(msg any) {
	switch m := msg.(type) {
	case *Subscribe:
		if !p.allowed(m.Channel) {
			return
		}
		p.subscribe(m.Channel)
	case *Unsubscribe:
		p.mu.Lock()
		sub, ok := p.subs[m.Channel]
		delete(p.subs, m.Channel)
		p.mu.Unlock()
		if ok {
			sub.Unsubscribe()
		}
	case *Publish:
		if !p.allowed(m.Channel) {
			return
		}
		data, err := decodeData(m.Data)
		if err != nil {
			p.fault(m.Channel, err.Error())
			return
		}
		p.bus.Publish(m.Channel, data)
	default:
		slog.Warn("wskit: unexpected message", slog.String("type", typeName(msg)))
	}
}

func (p *peer) allowed(channel string) bool {
	if p.session.CanAccess(channel) {
		return true
	}
	p.fault(channel, "access denied")
	return false
}

func (p *peer) subscribe(channel string) {
	p.mu.Lock()
	if _, ok := p.subs[channel]; ok {
		p.mu.Unlock()
		return
	}
	sub := p.bus.Subscribe(channel)
	p.subs[channel] = sub
	p.mu.Unlock()

	callbag.ForEach(func(v any) { p.forward(channel, v) })(sub.Start)
}

func (p *peer) forward(channel string, v any) {
	encoded, err := codec.ToJSON(v, 0)
	if err != nil {
		slog.Warn("wskit: cannot encode message", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	msg := &Publish{Channel: channel, Data: []byte(encoded), Timestamp: timestamp.GetTimestamp()}
	if err := p.conn.Send(msg); err != nil {
		slog.Debug("wskit: forward failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

func (p *peer) fault(channel, message string) {
	if err := p.conn.Send(&Fault{Channel: channel, Message: message}); err != nil {
		slog.Debug("wskit: fault not delivered", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

func (p *peer) release() {
	p.mu.Lock()
	subs := p.subs
	p.subs = make(map[string]callbag.Subscription[any])
	p.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	slog.Debug("wskit: client disconnected", slog.String("id", p.conn.ID.String()))
}

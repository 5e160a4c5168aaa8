package push

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"

	"github.com/caredesk/clinic-booking/internal/auth"
	"github.com/caredesk/clinic-booking/internal/metrics"
	redisclient "github.com/caredesk/clinic-booking/internal/redis"
	"github.com/caredesk/clinic-booking/internal/schedule"
)

// TokenVerifier checks the bearer token clients pass on the websocket URL.
type TokenVerifier interface {
	VerifyToken(token string) (auth.Session, error)
}

// Handler upgrades connections, authenticates them and feeds their messages
// into the hub.
type Handler struct {
	hub     *Hub
	verify  TokenVerifier
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewHandler(hub *Hub, verify TokenVerifier, m *metrics.Metrics, log zerolog.Logger) *Handler {
	return &Handler{hub: hub, verify: verify, metrics: m, log: log}
}

// conn is one websocket connection. Sends are serialized because
// websocket.JSON.Send is not safe for concurrent writers.
type conn struct {
	ws      *websocket.Conn
	session string

	mu       sync.Mutex
	doctorID uuid.UUID
	date     string
	inRoom   bool
}

func (c *conn) send(msg ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = websocket.JSON.Send(c.ws, msg)
}

func (c *conn) room() (uuid.UUID, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doctorID, c.date, c.inRoom
}

func (c *conn) setRoom(doctorID uuid.UUID, date string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doctorID, c.date, c.inRoom = doctorID, date, true
}

// newSessionToken identifies a connection for lock ownership. Random rather
// than the user ID so two tabs of the same user contend like anyone else.
func newSessionToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// ServeHTTP handles GET /ws/schedules?token=...
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(ws *websocket.Conn) {
		h.serve(ws, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serve(ws *websocket.Conn, r *http.Request) {
	token := r.URL.Query().Get("token")
	sess, err := h.verify.VerifyToken(token)
	if err != nil {
		_ = websocket.JSON.Send(ws, ServerMessage{Type: TypeError, Message: "authentication required"})
		return
	}

	c := &conn{ws: ws, session: newSessionToken()}
	h.metrics.ConnOpened()
	h.log.Debug().
		Str("user_id", sess.UserID.String()).
		Str("session", c.session).
		Msg("push connection opened")

	defer func() {
		if doctorID, date, ok := c.room(); ok {
			h.hub.Leave(r.Context(), doctorID, date, c.session)
		}
		h.metrics.ConnClosed()
		h.log.Debug().Str("session", c.session).Msg("push connection closed")
	}()

	for {
		var msg ClientMessage
		if err := websocket.JSON.Receive(ws, &msg); err != nil {
			return
		}
		h.dispatch(r, c, msg)
	}
}

func (h *Handler) dispatch(r *http.Request, c *conn, msg ClientMessage) {
	ctx := r.Context()

	switch msg.Type {
	case TypePing:
		c.send(ServerMessage{Type: TypePong})

	case TypeJoinRoom:
		doctorID, err := uuid.Parse(msg.DoctorID)
		if err != nil || msg.Date == "" {
			c.send(ServerMessage{Type: TypeError, Message: "join-room needs doctorId and date"})
			return
		}
		if prevDoctor, prevDate, ok := c.room(); ok {
			h.hub.Leave(ctx, prevDoctor, prevDate, c.session)
		}
		snapshot, err := h.hub.Join(ctx, doctorID, msg.Date, c.session, c.send)
		if err != nil {
			if errors.Is(err, schedule.ErrScheduleNotFound) {
				c.send(ServerMessage{Type: TypeError, Message: "no schedule for that day"})
				return
			}
			h.log.Error().Err(err).Msg("room join failed")
			c.send(ServerMessage{Type: TypeError, Message: "could not join room"})
			return
		}
		c.setRoom(doctorID, msg.Date)
		c.send(snapshot)

	case TypeLockRequest:
		doctorID, date, ok := c.room()
		if !ok {
			c.send(ServerMessage{Type: TypeError, Message: "join a room first"})
			return
		}
		err := h.hub.Lock(ctx, doctorID, date, c.session, msg.Slot)
		switch {
		case err == nil:
			c.send(ServerMessage{Type: TypeLockConfirmed, Slot: msg.Slot})
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			c.send(ServerMessage{Type: TypeLockRejected, Slot: msg.Slot})
		case errors.Is(err, ErrSlotUnknown):
			c.send(ServerMessage{Type: TypeError, Message: "unknown slot"})
		default:
			h.log.Error().Err(err).Str("slot", msg.Slot).Msg("lock request failed")
			c.send(ServerMessage{Type: TypeLockRejected, Slot: msg.Slot})
		}

	case TypeUnlockRequest:
		doctorID, date, ok := c.room()
		if !ok {
			return
		}
		if err := h.hub.Unlock(ctx, doctorID, date, c.session, msg.Slot); err != nil &&
			!errors.Is(err, redisclient.ErrNotLockOwner) {
			h.log.Warn().Err(err).Str("slot", msg.Slot).Msg("unlock request failed")
		}

	default:
		c.send(ServerMessage{Type: TypeError, Message: "unknown message type"})
	}
}

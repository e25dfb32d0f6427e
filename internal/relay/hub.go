package relay

import (
	"net/http"
	"time"

	"github.com/pqmsg/pqmsg/internal/delivery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"
)

// Default limits.
const (
	DefaultQueueSize  = 256
	DefaultSendBuffer = 64
)

// Config configures a Hub.
type Config struct {
	// QueueSize bounds frames held for one offline DID.
	QueueSize int
	// Logger receives routing events.
	Logger logrus.FieldLogger
}

// Stats is a snapshot of the hub's routing table.
type Stats struct {
	Online int
	Queued int
}

type client struct {
	conn delivery.Conn
	did  string
	send chan []byte
}

type routed struct {
	from  *client
	frame *delivery.Frame
}

// Hub routes frames between announced DIDs.
type Hub struct {
	queueSize int
	logger    logrus.FieldLogger

	announceCh   chan *client
	unregisterCh chan *client
	routeCh      chan routed
	statsCh      chan chan Stats
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// NewHub returns a hub. Call Start before serving connections.
func NewHub(cfg Config) *Hub {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Hub{
		queueSize:    cfg.QueueSize,
		logger:       cfg.Logger.WithField("component", "relay"),
		announceCh:   make(chan *client, 16),
		unregisterCh: make(chan *client, 16),
		routeCh:      make(chan routed, 256),
		statsCh:      make(chan chan Stats),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start begins the hub's event loop.
func (h *Hub) Start() {
	go h.run()
}

// Stop shuts down the hub and closes every client's send queue.
func (h *Hub) Stop() {
	close(h.stopCh)
	<-h.doneCh
}

// Stats returns the number of online DIDs and queued frames.
func (h *Hub) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case h.statsCh <- reply:
		return <-reply
	case <-h.doneCh:
		return Stats{}
	}
}

// run is the main event loop and the only owner of the routing table.
func (h *Hub) run() {
	defer close(h.doneCh)

	online := make(map[string]*client)
	queued := make(map[string][][]byte)

	for {
		select {
		case c := <-h.announceCh:
			if prev, ok := online[c.did]; ok && prev != c {
				h.logger.WithField("peer", c.did).Info("replacing connection")
				close(prev.send)
			}
			online[c.did] = c
			for _, data := range queued[c.did] {
				h.push(c, data)
			}
			if n := len(queued[c.did]); n > 0 {
				h.logger.WithFields(logrus.Fields{"peer": c.did, "frames": n}).Debug("flushed queue")
			}
			delete(queued, c.did)

		case c := <-h.unregisterCh:
			if cur, ok := online[c.did]; ok && cur == c {
				delete(online, c.did)
				close(c.send)
			}

		case r := <-h.routeCh:
			to := r.frame.Peer
			out := (&delivery.Frame{Kind: delivery.FrameEnvelope, Peer: r.from.did, Payload: r.frame.Payload}).Marshal()
			log := h.logger.WithFields(logrus.Fields{"from": r.from.did, "peer": to})

			if dst, ok := online[to]; ok {
				h.push(dst, out)
				log.Debug("forwarded envelope")
				continue
			}
			if len(queued[to]) >= h.queueSize {
				log.WithField("reason", "queue full").Warn("dropping envelope")
				continue
			}
			queued[to] = append(queued[to], out)
			log.Debug("queued envelope for offline peer")

		case reply := <-h.statsCh:
			s := Stats{Online: len(online)}
			for _, q := range queued {
				s.Queued += len(q)
			}
			reply <- s

		case <-h.stopCh:
			for _, c := range online {
				close(c.send)
			}
			return
		}
	}
}

func (h *Hub) push(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.WithFields(logrus.Fields{"peer": c.did, "reason": "slow client"}).Warn("dropping envelope")
	}
}

// Handler returns the HTTP handler serving WebSocket connections.
func (h *Hub) Handler() http.Handler {
	return websocket.Server{Handler: func(ws *websocket.Conn) {
		h.Serve(delivery.WrapWebSocket(ws))
	}}
}

// Serve handles one connection until it fails. The first frame must be an
// announce.
func (h *Hub) Serve(conn delivery.Conn) {
	defer conn.Close()

	data, err := conn.Receive()
	if err != nil {
		return
	}
	first, err := delivery.UnmarshalFrame(data)
	if err != nil || first.Kind != delivery.FrameAnnounce {
		h.logger.WithField("reason", "no announce").Warn("rejecting connection")
		return
	}

	c := &client{conn: conn, did: first.Peer, send: make(chan []byte, h.queueSize+DefaultSendBuffer)}
	select {
	case h.announceCh <- c:
	case <-h.stopCh:
		return
	}
	h.logger.WithField("peer", c.did).Info("peer connected")

	go h.writeLoop(c)
	defer func() {
		select {
		case h.unregisterCh <- c:
		case <-h.stopCh:
		}
		h.logger.WithField("peer", c.did).Info("peer disconnected")
	}()

	for {
		data, err := conn.Receive()
		if err != nil {
			return
		}
		f, err := delivery.UnmarshalFrame(data)
		if err != nil {
			h.logger.WithError(err).WithFields(logrus.Fields{"peer": c.did, "reason": "frame"}).Warn("dropping frame")
			continue
		}
		if f.Kind != delivery.FrameEnvelope {
			continue
		}
		select {
		case h.routeCh <- routed{from: c, frame: f}:
		case <-h.stopCh:
			return
		}
	}
}

// writeLoop sends queued frames to the client until its queue is closed.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.Close()
				return
			}
			if err := c.conn.Send(data); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			notice := (&delivery.Frame{Kind: delivery.FrameNotice, Payload: []byte("ping")}).Marshal()
			if err := c.conn.Send(notice); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

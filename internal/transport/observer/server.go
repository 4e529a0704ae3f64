// Package observer streams live run state to local viewers over
// websockets. One Server serves one run; the sim loop pushes snapshots in
// via Publish and slow clients drop frames rather than stall the sim.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"walkabout.dev/internal/observerproto"
	"walkabout.dev/internal/sim/engine"
)

const maxSessions = 64

// RunInfo is the static description of the run being streamed, served to
// clients via the bootstrap endpoint.
type RunInfo struct {
	Scenario    string
	RunID       string
	Seed        int64
	Ticks       int
	TickRateHz  int
	Interaction string

	Zones     []observerproto.ZoneInfo
	Obstacles []observerproto.RectInfo
	Gates     []observerproto.GateInfo
}

type session struct {
	id    string
	out   chan []byte
	every int
}

type Server struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       sync.Mutex
	info     RunInfo
	tick     uint64
	walkers  []observerproto.WalkerState
	sessions map[string]*session
}

// NewServer builds a server for one run. initial is the pre-run engine
// state, served to clients that connect before the first tick.
func NewServer(info RunInfo, initial engine.Snapshot, logger *log.Logger) *Server {
	return &Server{
		log:      logger,
		info:     info,
		walkers:  WalkerStates(initial),
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// RunInfoFor derives the bootstrap description from a configured engine.
func RunInfoFor(scenarioName, runID string, seed int64, ticks, tickRateHz int, eng *engine.Engine) RunInfo {
	info := RunInfo{
		Scenario:    scenarioName,
		RunID:       runID,
		Seed:        seed,
		Ticks:       ticks,
		TickRateHz:  tickRateHz,
		Interaction: eng.Mode().String(),
	}
	terr := eng.Terrain()
	for _, z := range terr.Zones() {
		info.Zones = append(info.Zones, observerproto.ZoneInfo{
			Kind: z.Kind.String(),
			Min:  [2]float64{z.Rect.Min.X, z.Rect.Min.Y},
			Max:  [2]float64{z.Rect.Max.X, z.Rect.Max.Y},
		})
	}
	for _, o := range terr.Obstacles() {
		info.Obstacles = append(info.Obstacles, observerproto.RectInfo{
			Min: [2]float64{o.Min.X, o.Min.Y},
			Max: [2]float64{o.Max.X, o.Max.Y},
		})
	}
	for _, g := range terr.Gates() {
		info.Gates = append(info.Gates, observerproto.GateInfo{
			Entrance: observerproto.RectInfo{
				Min: [2]float64{g.Entrance.Min.X, g.Entrance.Min.Y},
				Max: [2]float64{g.Entrance.Max.X, g.Entrance.Max.Y},
			},
			Exit: [2]float64{g.Exit.X, g.Exit.Y},
		})
	}
	return info
}

// WalkerStates converts an engine snapshot to its wire form.
func WalkerStates(snap engine.Snapshot) []observerproto.WalkerState {
	out := make([]observerproto.WalkerState, len(snap.Walkers))
	for i, w := range snap.Walkers {
		out[i] = observerproto.WalkerState{
			ID:   w.ID,
			Name: w.Name,
			Kind: w.Kind.String(),
			X:    w.Pos.X,
			Y:    w.Pos.Y,
			Mult: w.Mult,
		}
	}
	return out
}

// Publish fans one committed tick out to subscribers. Called from the sim
// loop; never blocks on a slow client.
func (s *Server) Publish(snap engine.Snapshot, digest string) {
	msg := observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		Tick:            snap.Tick,
		Walkers:         WalkerStates(snap),
		Digest:          digest,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = snap.Tick
	s.walkers = msg.Walkers

	final := s.info.Ticks > 0 && snap.Tick >= uint64(s.info.Ticks)
	for _, sess := range s.sessions {
		if !final && sess.every > 1 && snap.Tick%uint64(sess.every) != 0 {
			continue
		}
		select {
		case sess.out <- b:
		default:
			// Drop frames for slow clients; the stream is advisory.
		}
	}
}

// SessionCount reports connected observers for the status endpoint.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		s.mu.Lock()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Scenario:        s.info.Scenario,
			RunID:           s.info.RunID,
			Tick:            s.tick,
			Params: observerproto.RunParams{
				Seed:        s.info.Seed,
				Ticks:       s.info.Ticks,
				TickRateHz:  s.info.TickRateHz,
				Interaction: s.info.Interaction,
			},
			Zones:     s.info.Zones,
			Obstacles: s.info.Obstacles,
			Gates:     s.info.Gates,
			Walkers:   append([]observerproto.WalkerState(nil), s.walkers...),
		}
		s.mu.Unlock()

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		normalizeSubscribe(&sub)

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		sess := &session{
			id:    sid,
			out:   make(chan []byte, 256),
			every: sub.EveryTicks,
		}
		if !s.addSession(sess) {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		defer s.removeSession(sid)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-sess.out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
				continue
			}
			normalizeSubscribe(&sub)
			s.updateSession(sid, sub.EveryTicks)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) addSession(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= maxSessions {
		return false
	}
	s.sessions[sess.id] = sess
	return true
}

func (s *Server) removeSession(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
}

func (s *Server) updateSession(sid string, every int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sid]; ok {
		sess.every = every
	}
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.EveryTicks <= 0 {
		sub.EveryTicks = 1
	}
	if sub.EveryTicks > 600 {
		sub.EveryTicks = 600
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

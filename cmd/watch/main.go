package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"

	"walkabout.dev/internal/observerproto"
)

// Viewer renders the observer stream on a terminal grid. The viewport is
// origin-centered, one cell per world unit, north up.
type Viewer struct {
	screen tcell.Screen

	boot  observerproto.BootstrapResponse
	every int

	last      observerproto.TickMsg
	streamErr error
}

func NewViewer(boot observerproto.BootstrapResponse, every int) (*Viewer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	v := &Viewer{screen: screen, boot: boot, every: every}
	v.last = observerproto.TickMsg{Tick: boot.Tick, Walkers: boot.Walkers}
	return v, nil
}

func (v *Viewer) draw() {
	v.screen.Clear()
	w, h := v.screen.Size()
	cx, cy := w/2, h/2

	for sy := 1; sy < h-1; sy++ {
		for sx := 0; sx < w; sx++ {
			wx, wy := float64(sx-cx), float64(cy-sy)
			if r, st, ok := v.cellAt(wx, wy); ok {
				v.screen.SetContent(sx, sy, r, nil, st)
			}
		}
	}

	// Gate exits sit on top of terrain.
	for _, g := range v.boot.Gates {
		sx, sy := cx+round(g.Exit[0]), cy-round(g.Exit[1])
		if sx >= 0 && sx < w && sy >= 1 && sy < h-1 {
			v.screen.SetContent(sx, sy, '*', nil, tcell.StyleDefault.Foreground(tcell.ColorFuchsia))
		}
	}

	if cx >= 0 && cx < w && cy >= 1 && cy < h-1 {
		v.screen.SetContent(cx, cy, '+', nil, tcell.StyleDefault.Foreground(tcell.ColorGray))
	}

	for _, ws := range v.last.Walkers {
		sx, sy := cx+round(ws.X), cy-round(ws.Y)
		if sx < 0 || sx >= w || sy < 1 || sy >= h-1 {
			continue
		}
		st := tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
		if ws.Kind == "memory" {
			st = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
		}
		v.screen.SetContent(sx, sy, walkerGlyph(ws.ID), nil, st)
	}

	hud := fmt.Sprintf(" %s  run %s  tick %d/%d  walkers %d  seed %d  %s ",
		v.boot.Scenario, shortID(v.boot.RunID), v.last.Tick, v.boot.Params.Ticks,
		len(v.last.Walkers), v.boot.Params.Seed, shortDigest(v.last.Digest))
	drawText(v.screen, 0, 0, hud, tcell.StyleDefault.Bold(true))

	footer := fmt.Sprintf(" q to quit  every=%d ", v.every)
	style := tcell.StyleDefault.Foreground(tcell.ColorGray)
	if v.streamErr != nil {
		footer = fmt.Sprintf(" stream closed: %v  (q to quit) ", v.streamErr)
		style = tcell.StyleDefault.Foreground(tcell.ColorRed)
	}
	drawText(v.screen, 0, h-1, footer, style)

	v.screen.Show()
}

func (v *Viewer) cellAt(wx, wy float64) (rune, tcell.Style, bool) {
	for _, o := range v.boot.Obstacles {
		if rectHas(o, wx, wy) {
			return '#', tcell.StyleDefault.Foreground(tcell.ColorDarkGray), true
		}
	}
	for _, g := range v.boot.Gates {
		if rectHas(g.Entrance, wx, wy) {
			return '▒', tcell.StyleDefault.Foreground(tcell.ColorFuchsia), true
		}
	}
	for _, z := range v.boot.Zones {
		if !rectHas(observerproto.RectInfo{Min: z.Min, Max: z.Max}, wx, wy) {
			continue
		}
		switch z.Kind {
		case "water":
			return '~', tcell.StyleDefault.Foreground(tcell.ColorBlue), true
		case "sand":
			return '.', tcell.StyleDefault.Foreground(tcell.ColorYellow), true
		case "grass":
			return '"', tcell.StyleDefault.Foreground(tcell.ColorGreen), true
		}
	}
	return 0, tcell.StyleDefault, false
}

func (v *Viewer) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
			(ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q')) {
			return false
		}
	case *tcell.EventResize:
		v.screen.Sync()
		v.draw()
	}
	return true
}

func (v *Viewer) run(ticks <-chan observerproto.TickMsg, errs <-chan error) {
	events := make(chan tcell.Event, 100)
	go func() {
		for {
			events <- v.screen.PollEvent()
		}
	}()

	v.draw()
	for {
		select {
		case ev := <-events:
			if !v.handleInput(ev) {
				return
			}
		case msg := <-ticks:
			v.last = msg
			v.draw()
		case err := <-errs:
			v.streamErr = err
			v.draw()
		}
	}
}

func (v *Viewer) cleanup() {
	v.screen.Fini()
}

func main() {
	var (
		addr  = flag.String("addr", "127.0.0.1:8080", "server host:port")
		every = flag.Int("every", 1, "render every Nth tick")
	)
	flag.Parse()

	boot, err := fetchBootstrap(*addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap:", err)
		os.Exit(1)
	}

	conn, err := subscribe(*addr, *every)
	if err != nil {
		fmt.Fprintln(os.Stderr, "subscribe:", err)
		os.Exit(1)
	}
	defer conn.Close()

	ticks := make(chan observerproto.TickMsg, 64)
	errs := make(chan error, 1)
	go streamTicks(conn, ticks, errs)

	v, err := NewViewer(boot, *every)
	if err != nil {
		fmt.Fprintln(os.Stderr, "terminal:", err)
		os.Exit(1)
	}
	defer v.cleanup()

	v.run(ticks, errs)
}

func fetchBootstrap(addr string) (observerproto.BootstrapResponse, error) {
	var boot observerproto.BootstrapResponse
	u := url.URL{Scheme: "http", Host: addr, Path: "/observer/v1/bootstrap"}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(u.String())
	if err != nil {
		return boot, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return boot, fmt.Errorf("status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		return boot, err
	}
	return boot, nil
}

func subscribe(addr string, every int) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/observer/v1/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}
	sub := observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		EveryTicks:      every,
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func streamTicks(conn *websocket.Conn, ticks chan<- observerproto.TickMsg, errs chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			errs <- err
			return
		}
		var msg observerproto.TickMsg
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "TICK" {
			continue
		}
		select {
		case ticks <- msg:
		default:
			// Renderer is behind; drop the frame.
		}
	}
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	w, h := s.Size()
	if y < 0 || y >= h {
		return
	}
	col := x
	for _, r := range text {
		if col >= w {
			return
		}
		s.SetContent(col, y, r, nil, style)
		col++
	}
}

func rectHas(r observerproto.RectInfo, x, y float64) bool {
	return x >= r.Min[0] && x <= r.Max[0] && y >= r.Min[1] && y <= r.Max[1]
}

func round(x float64) int { return int(math.Round(x)) }

func walkerGlyph(id int) rune { return 'A' + rune(id%26) }

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ZacxDev/pagesgen/output"
	"github.com/coder/websocket"
)

const (
	LiveReloadPath = "/__livereload"
	reloadMessage  = "reload"
	writeWait      = 5 * time.Second
)

const liveReloadScript = `<script>(function(){var ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"` + LiveReloadPath + `");ws.onmessage=function(){location.reload()};})();</script>`

// ReloadHub keeps the open live reload sockets and tells every browser to
// reload when the watcher reports a change.
type ReloadHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewReloadHub() *ReloadHub {
	return &ReloadHub{clients: map[*websocket.Conn]struct{}{}}
}

func (h *ReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		output.Debug("live reload upgrade failed", "err", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	output.Debug("live reload client connected", "clients", h.Len())

	// Browsers never send anything; this only waits for the close.
	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()

	h.remove(conn)
	conn.Close(websocket.StatusNormalClosure, "")
}

// Broadcast sends a reload to every client. Clients that cannot be written
// to are dropped.
func (h *ReloadHub) Broadcast(ctx context.Context) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		wctx, cancel := context.WithTimeout(ctx, writeWait)
		err := conn.Write(wctx, websocket.MessageText, []byte(reloadMessage))
		cancel()
		if err != nil {
			output.Debug("dropping live reload client", "err", err)
			h.remove(conn)
			conn.CloseNow()
		}
	}
}

func (h *ReloadHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *ReloadHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// injectLiveReload adds the reload client just before </body>, or at the
// end when the page has none.
func injectLiveReload(html string) string {
	if i := strings.LastIndex(html, "</body>"); i >= 0 {
		return html[:i] + liveReloadScript + html[i:]
	}
	return html + liveReloadScript
}

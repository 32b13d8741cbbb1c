// Package web serves the HTTP command endpoint, strategy state, the transaction stream and metrics.
package web

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vadiminshakov/rsibot/internal/command"
	"github.com/vadiminshakov/rsibot/internal/domain"
	"github.com/vadiminshakov/rsibot/internal/engine"
	"github.com/vadiminshakov/rsibot/internal/storage/journal"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const (
	journalPollInterval = 2 * time.Second
	heartbeatInterval   = 30 * time.Second
	maxCommandBytes     = 4 << 10
	webSession          = "web"
)

type transactionReader interface {
	RecordsAfter(index uint64) ([]journal.Record, error)
}

type commandHandler interface {
	HandleText(ctx context.Context, session, text string) string
}

type strategyLister interface {
	Managers() []*engine.Manager
}

// Config holds the listener settings.
type Config struct {
	Addr string
	// AutocertDomains enables ACME TLS for the listed hosts.
	AutocertDomains  []string
	AutocertCacheDir string
	// Token is the bearer token required by /command. Without it only loopback callers may send commands.
	Token string
}

// Server exposes the HTTP surface.
type Server struct {
	cfg        Config
	commands   commandHandler
	strategies strategyLister
	journal    transactionReader
	gatherer   prometheus.Gatherer
	l          *zap.Logger

	// streamFrom is the journal index the SSE stream starts after.
	streamFrom   uint64
	pollInterval time.Duration
}

// NewServer creates a server. txs and gatherer may be nil to disable their endpoints.
func NewServer(l *zap.Logger, cfg Config, commands commandHandler, strategies strategyLister,
	txs transactionReader, streamFrom uint64, gatherer prometheus.Gatherer) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{
		cfg:          cfg,
		commands:     commands,
		strategies:   strategies,
		journal:      txs,
		streamFrom:   streamFrom,
		gatherer:     gatherer,
		l:            l.With(zap.String("transport", "web")),
		pollInterval: journalPollInterval,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/command", s.handleCommand)
	mux.HandleFunc("/strategies", s.handleStrategies)
	mux.HandleFunc("/transactions/stream", s.handleTransactionStream)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	var err error
	if len(s.cfg.AutocertDomains) > 0 {
		server.TLSConfig = s.tlsConfig()
		s.l.Info("web server listening with autocert", zap.String("addr", s.cfg.Addr), zap.Strings("domains", s.cfg.AutocertDomains))
		err = server.ListenAndServeTLS("", "")
	} else {
		s.l.Info("web server listening", zap.String("addr", s.cfg.Addr))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) tlsConfig() *tls.Config {
	cacheDir := s.cfg.AutocertCacheDir
	if cacheDir == "" {
		cacheDir = "certs"
	}
	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(s.cfg.AutocertDomains...),
		Cache:      autocert.DirCache(cacheDir),
	}
	return m.TLSConfig()
}

type commandResponse struct {
	Messages []string `json:"messages"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		s.l.Warn("rejected unauthorized command", zap.String("remote", r.RemoteAddr))
		w.Header().Set("WWW-Authenticate", `Bearer realm="rsibot"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	line := strings.TrimSpace(string(body))
	if line == "" {
		http.Error(w, "empty command", http.StatusBadRequest)
		return
	}

	reply := s.commands.HandleText(r.Context(), webSession, line)
	writeJSON(w, commandResponse{Messages: command.Chunk(reply, command.MaxMessageLength)})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.Token != "" {
		got := r.Header.Get("Authorization")
		want := "Bearer " + s.cfg.Token
		return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type strategyView struct {
	engine.Status
	Pair     string          `json:"pair"`
	Balances domain.Balances `json:"balances"`
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	managers := s.strategies.Managers()
	views := make([]strategyView, 0, len(managers))
	for _, m := range managers {
		t := m.Trader()
		views = append(views, strategyView{
			Status:   m.Snapshot(),
			Pair:     t.Pair().String(),
			Balances: t.Balances(),
		})
	}
	writeJSON(w, views)
}

func (s *Server) handleTransactionStream(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "transaction journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastIndex := s.streamFrom
	if from := r.URL.Query().Get("after"); from != "" {
		idx, err := strconv.ParseUint(from, 10, 64)
		if err != nil || idx < s.streamFrom {
			http.Error(w, "invalid after index", http.StatusBadRequest)
			return
		}
		lastIndex = idx
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	sendTransactions := func() error {
		records, err := s.journal.RecordsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Transaction)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: transaction\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			lastIndex = record.Index
		}
		flusher.Flush()
		return nil
	}

	if err := sendTransactions(); err != nil {
		http.Error(w, "failed to load transactions", http.StatusInternalServerError)
		s.l.Error("transaction stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendTransactions(); err != nil {
				s.l.Warn("transaction stream poll", zap.Error(err))
			}
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>RSI paper bot</title>
  <style>
    body { font-family:'Space Mono',monospace; margin:2rem; color:#111; }
    table { border-collapse:collapse; margin-bottom:2rem; }
    td, th { border:2px solid #111; padding:.4rem .8rem; text-align:left; }
    #log { border:2px dashed #9c9c9c; padding:1rem; white-space:pre; font-size:.8rem; }
    form { margin-bottom:2rem; }
  </style>
</head>
<body>
  <h1>Strategies</h1>
  <table id="strategies"><tr><th>Name</th><th>Pair</th><th>Running</th><th>Balances</th><th>Last error</th></tr></table>
  <form id="cmd"><input name="line" size="48" placeholder="/strategy_start rsi-simple" /> <input name="token" type="password" placeholder="token" /> <button>Send</button></form>
  <pre id="reply"></pre>
  <h2>Transactions</h2>
  <div id="log"></div>
  <script>
    async function refresh() {
      const res = await fetch('/strategies');
      const rows = await res.json();
      const table = document.getElementById('strategies');
      table.querySelectorAll('tr.row').forEach(r => r.remove());
      for (const s of rows) {
        const tr = document.createElement('tr');
        tr.className = 'row';
        const bal = Object.entries(s.balances || {}).map(([k, v]) => k + ' ' + v).join(', ');
        [s.name, s.pair, s.running ? 'yes' : 'no', bal, s.last_error || ''].forEach(v => {
          const td = document.createElement('td');
          td.textContent = v;
          tr.appendChild(td);
        });
        table.appendChild(tr);
      }
    }
    document.getElementById('cmd').addEventListener('submit', async e => {
      e.preventDefault();
      const line = e.target.line.value;
      const token = e.target.token.value;
      const headers = token ? { 'Authorization': 'Bearer ' + token } : {};
      const res = await fetch('/command', { method: 'POST', body: line, headers });
      if (!res.ok) {
        document.getElementById('reply').textContent = res.status + ' ' + (await res.text());
        return;
      }
      const body = await res.json();
      document.getElementById('reply').textContent = (body.messages || []).join('');
      refresh();
    });
    const stream = new EventSource('/transactions/stream');
    stream.addEventListener('transaction', e => {
      const tx = JSON.parse(e.data);
      const line = '[' + tx.ts + '][' + tx.strategy + '] ' + tx.outcome + ' ' + tx.amount + ' @ ' + tx.price + '\n';
      document.getElementById('log').textContent = line + document.getElementById('log').textContent;
      refresh();
    });
    refresh();
    setInterval(refresh, 10000);
  </script>
</body>
</html>`

package discord

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"
)

const maxInteractionBody = 1 << 20

// Webhook accepts interactions over HTTP. Requests are authenticated with the
// application's Ed25519 key; the source address is read from the trusted
// proxy header when one is configured.
type Webhook struct {
	adapter     *Adapter
	dispatcher  Dispatcher
	publicKey   ed25519.PublicKey
	proxyHeader string
	logger      *slog.Logger
}

// NewWebhook builds the handler. publicKey is the hex encoded application key.
func NewWebhook(adapter *Adapter, d Dispatcher, publicKey, proxyHeader string, logger *slog.Logger) (*Webhook, error) {
	if adapter == nil {
		return nil, errors.New("adapter is required")
	}
	if d == nil {
		return nil, errors.New("dispatcher is required")
	}
	key, err := hex.DecodeString(publicKey)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return nil, errors.New("public key must be a hex encoded ed25519 key")
	}
	return &Webhook{
		adapter:     adapter,
		dispatcher:  d,
		publicKey:   ed25519.PublicKey(key),
		proxyHeader: proxyHeader,
		logger:      logger,
	}, nil
}

// Register implements httpserver.Routes.
func (w *Webhook) Register(r chi.Router) {
	r.Post("/interactions", w.ServeHTTP)
}

func (w *Webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInteractionBody))
	if err != nil {
		http.Error(rw, "unreadable body", http.StatusBadRequest)
		return
	}
	if !w.verify(r.Header.Get("X-Signature-Ed25519"), r.Header.Get("X-Signature-Timestamp"), body) {
		http.Error(rw, "invalid request signature", http.StatusUnauthorized)
		return
	}

	var raw discordgo.Interaction
	if err := json.Unmarshal(body, &raw); err != nil {
		http.Error(rw, "malformed interaction", http.StatusBadRequest)
		return
	}
	if raw.Type == discordgo.InteractionPing {
		writeJSON(rw, &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong})
		return
	}

	in, ok := FromInteraction(&raw, time.Now())
	if !ok {
		http.Error(rw, "unsupported interaction", http.StatusBadRequest)
		return
	}
	in.SourceAddr = w.sourceAddr(r)

	p := w.adapter.track(in.ID, true)
	done := w.adapter.dispatch(w.dispatcher, in, p)
	timer := time.NewTimer(w.adapter.deadline)
	defer timer.Stop()

	select {
	case resp := <-p.http:
		writeJSON(rw, resp)
		return
	case <-done:
		select {
		case resp := <-p.http:
			writeJSON(rw, resp)
			return
		default:
		}
	case <-timer.C:
	}
	w.adapter.pending.Delete(in.ID)
	http.Error(rw, "no response", http.StatusServiceUnavailable)
}

func (w *Webhook) verify(signature, timestamp string, body []byte) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize || timestamp == "" {
		return false
	}
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	return ed25519.Verify(w.publicKey, msg, sig)
}

// sourceAddr returns the first address of the trusted proxy header, or "" when
// no header is configured.
func (w *Webhook) sourceAddr(r *http.Request) string {
	if w.proxyHeader == "" {
		return ""
	}
	v := r.Header.Get(w.proxyHeader)
	first, _, _ := strings.Cut(v, ",")
	first = strings.TrimSpace(first)
	if host, _, err := net.SplitHostPort(first); err == nil {
		return host
	}
	return first
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"papertrade/internal/application/port"
)

// WsFeed streams price ticks from a websocket endpoint. The server is
// expected to push JSON frames shaped like port.Tick. The feed reconnects
// with a capped backoff until its context is cancelled.
type WsFeed struct {
	wsURL string
}

func NewWsFeed(wsURL string) *WsFeed {
	return &WsFeed{wsURL: strings.TrimSpace(wsURL)}
}

func (f *WsFeed) Name() string { return "marketdata-ws" }

func (f *WsFeed) Subscribe(ctx context.Context, symbols []string) (<-chan port.Tick, error) {
	if f.wsURL == "" {
		return nil, errors.New("marketdata ws url empty")
	}
	want := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			want[s] = struct{}{}
		}
	}

	out := make(chan port.Tick, 1024)
	go f.run(ctx, want, out)
	return out, nil
}

func (f *WsFeed) run(ctx context.Context, want map[string]struct{}, out chan<- port.Tick) {
	defer close(out)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := f.readLoop(ctx, want, out); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("url", f.wsURL).Msg("ws feed disconnected, retrying")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (f *WsFeed) readLoop(ctx context.Context, want map[string]struct{}, out chan<- port.Tick) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// unblock ReadMessage when ctx is cancelled; the watcher exits with
	// the connection so reconnects do not pile up goroutines
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	log.Info().Str("url", f.wsURL).Msg("ws feed connected")

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var tick port.Tick
		if err := json.Unmarshal(msg, &tick); err != nil {
			log.Debug().Err(err).Msg("skip malformed tick")
			continue
		}
		tick.Symbol = strings.ToUpper(tick.Symbol)
		if tick.Symbol == "" || tick.Price <= 0 {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[tick.Symbol]; !ok {
				continue
			}
		}
		if tick.Ts == 0 {
			tick.Ts = time.Now().UnixMilli()
		}
		select {
		case out <- tick:
		default:
			// drop when the consumer is behind; prices are superseded anyway
		}
	}
}

var _ port.PriceFeed = (*WsFeed)(nil)

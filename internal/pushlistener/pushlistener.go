// Package pushlistener supplies the optional real-time transport for push
// notifications: a websocket connection to the remote service's
// push-notification stream, decoded into
// provider.PushNotification and handed to Provider.ProcessPushNotification.
// The core PushIntake logic in internal/provider is transport-agnostic;
// this package only owns the socket and its reconnect loop.
package pushlistener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/kptl-dev/remoteconfig-go/internal/provider"
)

// Processor is the subset of Provider a Listener depends on.
type Processor interface {
	ProcessPushNotification(n provider.PushNotification) error
}

// frame is the wire shape of a push-notification message, decoded directly
// into a provider.PushNotification.
type frame struct {
	SyncToken   string         `json:"syncToken"`
	EventType   string         `json:"eventType"`
	ResourceURI string         `json:"resourceUri"`
	MaxDelay    *time.Duration `json:"maxDelay"`
}

// Listener maintains a websocket connection to a push-notification
// endpoint, reconnecting with a shared BackoffSchedule on any read or
// dial failure, and forwards every decoded frame to a Processor.
type Listener struct {
	url       string
	processor Processor
	backoff   *provider.BackoffSchedule
	logger    *slog.Logger
}

// New constructs a Listener. backoff is shared with the rest of the
// provider so reconnect pacing follows the same policy as replica
// failover.
func New(url string, processor Processor, backoff *provider.BackoffSchedule, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}

	if backoff == nil {
		backoff = provider.NewBackoffSchedule()
	}

	return &Listener{url: url, processor: processor, backoff: backoff, logger: logger}
}

// Run connects and reads frames until ctx is canceled, reconnecting after
// every failure with the configured backoff. Run only returns once ctx is
// done.
func (l *Listener) Run(ctx context.Context) {
	attempt := 0
	start := l.backoff.Now()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := l.connectAndRead(ctx); err != nil {
			attempt++
			l.logger.Warn("push listener disconnected",
				slog.String("url", l.url),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)

			delay := l.backoff.StartupDelay(l.backoff.Now().Sub(start), attempt)
			if sleepErr := provider.Sleep(ctx, delay); sleepErr != nil {
				return
			}

			continue
		}

		// A clean read loop exit (server closed normally) still warrants a
		// reconnect; reset the attempt counter since this wasn't a failure.
		attempt = 0
		start = l.backoff.Now()
	}
}

// connectAndRead dials the endpoint and reads frames until the connection
// ends, forwarding each to the processor. Returns the error that ended the
// connection, or nil if ctx was canceled mid-read.
func (l *Listener) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("pushlistener: dial: %w", err)
	}
	defer conn.CloseNow() //nolint:errcheck // best-effort on an already-failed or ctx-canceled connection

	l.logger.Info("push listener connected", slog.String("url", l.url))

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")

				return nil
			}

			return fmt.Errorf("pushlistener: read: %w", err)
		}

		n := provider.PushNotification{
			SyncToken:   f.SyncToken,
			EventType:   f.EventType,
			ResourceURI: f.ResourceURI,
			MaxDelay:    f.MaxDelay,
		}

		if err := l.processor.ProcessPushNotification(n); err != nil {
			l.logger.Warn("push notification rejected",
				slog.String("resource_uri", n.ResourceURI),
				slog.String("error", err.Error()),
			)
		}
	}
}

// decodeFrame is exposed for tests that exercise malformed-payload
// handling without a real socket.
func decodeFrame(raw []byte) (frame, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return frame{}, errors.New("pushlistener: malformed frame: " + err.Error())
	}

	return f, nil
}

package dahua

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// reconnectDelay is the fixed pause between attach attempts when the stream
// drops.
const reconnectDelay = 5 * time.Second

// FaceEventCodes are the attach codes that can carry a face sighting.
var FaceEventCodes = []string{
	"FaceDetection",
	"FaceRecognition",
	"AccessControl",
	"VideoAnalyse",
	"FaceAnalysis",
}

var faceCodeSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(FaceEventCodes))
	for _, code := range FaceEventCodes {
		set[code] = struct{}{}
	}
	return set
}()

// IsFaceEvent reports whether the code signals a possible face in frame.
func IsFaceEvent(code string) bool {
	_, ok := faceCodeSet[code]
	return ok
}

// Event is one parsed line from the eventManager attach stream.
type Event struct {
	Code   string
	Action string
	Index  int
	Fields map[string]string
	Raw    string
}

// EventClient holds the long-lived attach connection. It reconnects forever
// until the context is canceled, so a camera reboot only costs a few
// seconds of events.
type EventClient struct {
	http *resty.Client
	log  *slog.Logger
}

func NewEventClient(cfg Config, log *slog.Logger) *EventClient {
	// No timeout here: the attach response is an endless multipart stream.
	c := resty.New().SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	if cfg.Username != "" {
		c.SetDigestAuth(cfg.Username, cfg.Password)
	}
	return &EventClient{http: c, log: log}
}

// Subscribe attaches to the event stream and calls handler for every parsed
// event whose code is in codes. It blocks until ctx is canceled.
func (c *EventClient) Subscribe(ctx context.Context, codes []string, handler func(Event)) error {
	subscribed := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		subscribed[code] = struct{}{}
	}

	for {
		err := c.attach(ctx, codes, subscribed, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("event stream dropped, reconnecting",
			slog.Duration("delay", reconnectDelay),
			slog.Any("error", err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *EventClient) attach(ctx context.Context, codes []string, subscribed map[string]struct{}, handler func(Event)) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetQueryParams(map[string]string{
			"action": "attach",
			"codes":  "[" + strings.Join(codes, ",") + "]",
		}).
		Get("/cgi-bin/eventManager.cgi")
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		return fmt.Errorf("attach: status %d", resp.StatusCode())
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		event, ok := parseEventLine(scanner.Text())
		if !ok {
			continue
		}
		// Cameras interleave lines for codes outside the subscription,
		// KeepAlive pulses included. Those never reach the handler.
		if _, ok := subscribed[event.Code]; !ok {
			continue
		}
		handler(event)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("attach: stream closed")
}

// parseEventLine parses a `Code=X;action=Y;index=N;...` line. Multipart
// boundaries, headers and keepalive lines all fail the Code= check and are
// dropped.
func parseEventLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "Code=") {
		return Event{}, false
	}

	event := Event{Fields: make(map[string]string), Raw: line}
	for _, part := range strings.Split(line, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		event.Fields[key] = value
		switch key {
		case "Code":
			event.Code = value
		case "action":
			event.Action = value
		case "index":
			if n, err := strconv.Atoi(value); err == nil {
				event.Index = n
			}
		}
	}

	if event.Code == "" {
		return Event{}, false
	}
	return event, true
}

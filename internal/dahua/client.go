// Package dahua implements the CGI API of Dahua-compatible cameras:
// snapshot capture, device configuration and the long-lived event stream.
package dahua

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks to a single camera over HTTP with digest auth.
type Client struct {
	http *resty.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout)
	if cfg.Username != "" {
		c.SetDigestAuth(cfg.Username, cfg.Password)
	}
	return &Client{http: c}
}

// Snapshot captures one JPEG frame from the given channel.
func (c *Client) Snapshot(ctx context.Context, channel int) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("channel", fmt.Sprintf("%d", channel)).
		Get("/cgi-bin/snapshot.cgi")
	if err != nil {
		return nil, domain.ErrCameraUnreachable.WithError(err)
	}
	if resp.IsError() {
		return nil, domain.ErrCameraUnreachable.WithError(fmt.Errorf("snapshot: status %d", resp.StatusCode()))
	}
	if len(resp.Body()) == 0 {
		return nil, domain.ErrCameraUnreachable.WithError(fmt.Errorf("snapshot: empty body"))
	}
	return resp.Body(), nil
}

// SystemInfo returns the device identification block from magicBox.
func (c *Client) SystemInfo(ctx context.Context) (map[string]string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("action", "getSystemInfo").
		Get("/cgi-bin/magicBox.cgi")
	if err != nil {
		return nil, domain.ErrCameraUnreachable.WithError(err)
	}
	if resp.IsError() {
		return nil, domain.ErrCameraUnreachable.WithError(fmt.Errorf("magicBox: status %d", resp.StatusCode()))
	}
	return parseKeyValues(string(resp.Body())), nil
}

// TestConnection verifies the camera answers and identifies itself.
func (c *Client) TestConnection(ctx context.Context) error {
	info, err := c.SystemInfo(ctx)
	if err != nil {
		return err
	}
	if info["deviceType"] == "" && info["serialNumber"] == "" {
		return domain.ErrCameraUnreachable.WithError(fmt.Errorf("magicBox: no device identity in response"))
	}
	return nil
}

// GetConfig fetches one named configuration table.
func (c *Client) GetConfig(ctx context.Context, name string) (map[string]string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"action": "getConfig", "name": name}).
		Get("/cgi-bin/configManager.cgi")
	if err != nil {
		return nil, domain.ErrCameraUnreachable.WithError(err)
	}
	if resp.IsError() {
		return nil, domain.ErrCameraUnreachable.WithError(fmt.Errorf("getConfig %s: status %d", name, resp.StatusCode()))
	}
	return parseKeyValues(string(resp.Body())), nil
}

// SetConfig applies configuration values. The camera answers a bare "OK" on
// success.
func (c *Client) SetConfig(ctx context.Context, params map[string]string) error {
	req := c.http.R().SetContext(ctx).SetQueryParam("action", "setConfig")
	for k, v := range params {
		req.SetQueryParam(k, v)
	}

	resp, err := req.Get("/cgi-bin/configManager.cgi")
	if err != nil {
		return domain.ErrCameraUnreachable.WithError(err)
	}
	if resp.IsError() {
		return domain.ErrCameraUnreachable.WithError(fmt.Errorf("setConfig: status %d", resp.StatusCode()))
	}
	if !strings.Contains(string(resp.Body()), "OK") {
		return domain.ErrCameraUnreachable.WithError(fmt.Errorf("setConfig: %s", strings.TrimSpace(string(resp.Body()))))
	}
	return nil
}

// EnableFaceDetection turns the on-camera face analysis rule on so the
// device emits face events on the attach stream.
func (c *Client) EnableFaceDetection(ctx context.Context, channel int) error {
	return c.SetConfig(ctx, map[string]string{
		fmt.Sprintf("FaceDetection[%d].Enable", channel): "true",
	})
}

// SetOSD toggles the channel title overlay. Overlays burned into frames
// degrade recognition, so monitors disable them on startup.
func (c *Client) SetOSD(ctx context.Context, channel int, enabled bool) error {
	return c.SetConfig(ctx, map[string]string{
		fmt.Sprintf("VideoWidget[%d].ChannelTitle.EncodeBlend", channel): fmt.Sprintf("%t", enabled),
		fmt.Sprintf("VideoWidget[%d].TimeTitle.EncodeBlend", channel):    fmt.Sprintf("%t", enabled),
	})
}

// parseKeyValues parses the newline-separated key=value body the CGI API
// answers with. Lines without an equals sign are skipped.
func parseKeyValues(body string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}

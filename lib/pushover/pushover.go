package pushover

import (
	"context"
	"fmt"
	"time"

	"sphnotify/lib/restyutil"
	"sphnotify/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseUrl = "https://api.pushover.net"

var tracer = telemetry.Tracer("sphnotify.lib.pushover")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}

// Client is a minimal Pushover message client: one form-encoded POST per
// delivery, any 2xx counts as success.
type Client struct {
	http *resty.Client
}

func NewClient(baseUrl string) *Client {
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.SetTimeout(time.Second * 30)
	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{http: client}
}

func (c *Client) Send(ctx context.Context, apiToken, userKey, message string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"token":   apiToken,
			"user":    userKey,
			"message": message,
		}).
		Post("/1/messages.json")
	if err != nil {
		return fmt.Errorf("pushover delivery failed: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("pushover delivery failed: status %d", res.StatusCode())
	}
	return nil
}

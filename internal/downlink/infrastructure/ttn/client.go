package ttn

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	downlinkapp "frostguard/internal/downlink/application"
)

var (
	ErrInvalidPayload = errors.New("ttn: invalid payload hex")
	errNotFound       = errors.New("ttn: not found")
)

const priorityNormal = "NORMAL"

// Client is a minimal The Things Stack application server client.
type Client struct {
	baseURL string
	appID   string
	apiKey  string
	client  *http.Client
}

// NewClient constructs a TTN client.
func NewClient(baseURL, appID, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("ttn: empty base url")
	}
	if appID == "" {
		return nil, errors.New("ttn: empty application id")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type downlinkQueue struct {
	Downlinks []queuedDownlink `json:"downlinks"`
}

type queuedDownlink struct {
	FPort      int    `json:"f_port"`
	FRMPayload string `json:"frm_payload"`
	Confirmed  bool   `json:"confirmed"`
	Priority   string `json:"priority"`
}

// Push submits a single downlink. Operation "replace" swaps the device queue,
// "push" appends to it.
func (c *Client) Push(ctx context.Context, d downlinkapp.Downlink) error {
	if d.DeviceID == "" {
		return errors.New("ttn: empty device id")
	}
	payload, err := decodeHex(d.PayloadHex)
	if err != nil {
		return err
	}
	operation := d.Operation
	if operation == "" {
		operation = "replace"
	}
	if operation != "replace" && operation != "push" {
		return fmt.Errorf("ttn: unsupported queue operation %q", operation)
	}
	body := downlinkQueue{Downlinks: []queuedDownlink{{
		FPort:      d.FPort,
		FRMPayload: base64.StdEncoding.EncodeToString(payload),
		Confirmed:  d.Confirmed,
		Priority:   priorityNormal,
	}}}
	path := fmt.Sprintf("/api/v3/as/applications/%s/devices/%s/down/%s",
		url.PathEscape(c.appID), url.PathEscape(d.DeviceID), operation)
	return c.doJSON(ctx, http.MethodPost, path, body, nil)
}

func decodeHex(value string) ([]byte, error) {
	if value == "" || len(value)%2 != 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPayload, value)
	}
	payload, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPayload, value)
	}
	return payload, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader = bytes.NewReader(nil)
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ttn: http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package ttn

import (
	"bytes"
	"encoding/json"
	"time"

	ingestapp "frostguard/internal/ingest/application"
)

type webhookMessage struct {
	EndDeviceIDs   endDeviceIDs     `json:"end_device_ids"`
	ReceivedAt     *time.Time       `json:"received_at"`
	UplinkMessage  *uplinkMessage   `json:"uplink_message"`
	DownlinkAck    *json.RawMessage `json:"downlink_ack"`
	DownlinkFailed *downlinkFailed  `json:"downlink_failed"`
}

type endDeviceIDs struct {
	DeviceID string `json:"device_id"`
	DevEUI   string `json:"dev_eui"`
}

type uplinkMessage struct {
	FPort          int             `json:"f_port"`
	FCnt           int64           `json:"f_cnt"`
	DecodedPayload json.RawMessage `json:"decoded_payload"`
	RxMetadata     []rxMetadata    `json:"rx_metadata"`
	ReceivedAt     *time.Time      `json:"received_at"`
}

type rxMetadata struct {
	GatewayIDs struct {
		GatewayID string `json:"gateway_id"`
		EUI       string `json:"eui"`
	} `json:"gateway_ids"`
	RSSI float64 `json:"rssi"`
	SNR  float64 `json:"snr"`
}

type downlinkFailed struct {
	Error struct {
		Name          string `json:"name"`
		MessageFormat string `json:"message_format"`
	} `json:"error"`
}

func (f *downlinkFailed) reason() string {
	if f == nil {
		return ""
	}
	if f.Error.MessageFormat != "" {
		return f.Error.MessageFormat
	}
	return f.Error.Name
}

// toUplink converts the webhook body. The gateway with the strongest signal
// is taken as the serving gateway.
func (m webhookMessage) toUplink() ingestapp.Uplink {
	up := ingestapp.Uplink{
		DevEUI:   m.EndDeviceIDs.DevEUI,
		DeviceID: m.EndDeviceIDs.DeviceID,
	}
	if m.ReceivedAt != nil {
		up.ReceivedAt = m.ReceivedAt.UTC()
	}
	msg := m.UplinkMessage
	if msg == nil {
		return up
	}
	up.FPort = msg.FPort
	up.FCnt = msg.FCnt
	if msg.ReceivedAt != nil {
		up.NetworkReceivedAt = msg.ReceivedAt.UTC()
	}
	var bestRSSI float64
	for _, rx := range msg.RxMetadata {
		if rx.GatewayIDs.GatewayID == "" {
			continue
		}
		if up.GatewayID == "" || rx.RSSI > bestRSSI {
			up.GatewayID = rx.GatewayIDs.GatewayID
			bestRSSI = rx.RSSI
		}
	}
	trimmed := bytes.TrimSpace(msg.DecodedPayload)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		var decoded map[string]any
		if err := json.Unmarshal(trimmed, &decoded); err == nil {
			up.DecodedPayload = decoded
			up.RawPayload = json.RawMessage(trimmed)
		}
	}
	return up
}

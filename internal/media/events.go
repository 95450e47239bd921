package media

import (
	"encoding/json"
	"math"
)

// Webhook event types handled by the service
const (
	EventAssetCreated    = "video.asset.created"
	EventAssetReady      = "video.asset.ready"
	EventAssetErrored    = "video.asset.errored"
	EventAssetDeleted    = "video.asset.deleted"
	EventAssetTrackReady = "video.asset.track.ready"
)

// WebhookEvent is the envelope of a media-host webhook
type WebhookEvent struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// PlaybackID is a public playback handle of an asset
type PlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

// EventData covers the asset and track payloads. For asset events ID is
// the asset id; for track events ID is the track id and AssetID its asset.
type EventData struct {
	ID          string       `json:"id"`
	UploadID    string       `json:"upload_id"`
	AssetID     string       `json:"asset_id"`
	Status      string       `json:"status"`
	Duration    *float64     `json:"duration"`
	PlaybackIDs []PlaybackID `json:"playback_ids"`
	Passthrough string       `json:"passthrough"`
}

// ParseWebhookEvent decodes a webhook body
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// FirstPlaybackID returns the first playback id, or "" when there is none
func (d *EventData) FirstPlaybackID() string {
	if len(d.PlaybackIDs) == 0 {
		return ""
	}
	return d.PlaybackIDs[0].ID
}

// DurationMillis converts the reported duration in seconds to whole
// milliseconds. A missing duration is 0.
func (d *EventData) DurationMillis() int64 {
	if d.Duration == nil {
		return 0
	}
	return int64(math.Round(*d.Duration * 1000))
}

package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ChannelTopic is the channel the connector joins for issue and upvote changes
const ChannelTopic = "realtime:issues"

const (
	eventJoin            = "phx_join"
	eventReply           = "phx_reply"
	eventError           = "phx_error"
	eventClose           = "phx_close"
	eventHeartbeat       = "heartbeat"
	eventPostgresChanges = "postgres_changes"

	heartbeatTopic = "phoenix"
)

// channelMessage is one frame of the realtime socket's channel protocol
type channelMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []changeFilter `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

func encodeMessage(topic, event, ref string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return json.Marshal(channelMessage{Topic: topic, Event: event, Payload: raw, Ref: &ref})
}

// joinMessage subscribes to every change on the issues and issue_upvotes tables
func joinMessage(ref, accessToken string) ([]byte, error) {
	var p joinPayload
	p.Config.PostgresChanges = []changeFilter{
		{Event: "*", Schema: "public", Table: TableIssues},
		{Event: "*", Schema: "public", Table: TableUpvotes},
	}
	p.AccessToken = accessToken
	return encodeMessage(ChannelTopic, eventJoin, ref, p)
}

func heartbeatMessage(ref string) ([]byte, error) {
	return encodeMessage(heartbeatTopic, eventHeartbeat, ref, struct{}{})
}

// change decodes the payload.data of a postgres_changes message
func (m channelMessage) change() (Change, error) {
	var payload struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(m.Payload, &payload); err != nil {
		return Change{}, fmt.Errorf("failed to parse postgres_changes payload: %w", err)
	}
	if len(payload.Data) == 0 {
		return Change{}, errors.New("postgres_changes frame without data")
	}
	return DecodeChange(payload.Data)
}

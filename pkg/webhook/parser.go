package webhook

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Known source identifiers.
const (
	SourceGitHub  = "github"
	SourceSlack   = "slack"
	SourceJira    = "jira"
	SourceUnknown = "unknown"
)

// Header fingerprints used for source detection, checked in order. The
// x-webhook-source header is a passthrough used by custom integrations.
const (
	headerGitHubEvent    = "x-github-event"
	headerGitHubSig      = "x-hub-signature-256"
	headerSlackSig       = "x-slack-signature"
	headerSlackTimestamp = "x-slack-request-timestamp"
	headerJiraIdentifier = "x-atlassian-webhook-identifier"
	headerJiraSig        = "x-hub-signature"
	headerCustomSource   = "x-webhook-source"
	headerCustomSig      = "x-webhook-signature"
)

// ParsedWebhook is the result of decoding a raw webhook request.
type ParsedWebhook struct {
	Source  string
	Event   string
	Payload map[string]interface{}
	// Headers holds the request headers with lowercased keys.
	Headers    map[string]string
	ReceivedAt time.Time
	Valid      bool
	// ValidationError is set when Valid is false.
	ValidationError string
}

// normalizeHeaders lowercases header names so lookups are
// case-insensitive regardless of the transport's canonical form.
func normalizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[strings.ToLower(k)] = v
	}
	return out
}

// detectSource identifies the webhook origin from header fingerprints.
// Detection is ordered, so a request carrying several fingerprints
// resolves to the first match.
func detectSource(headers map[string]string) string {
	if _, ok := headers[headerGitHubEvent]; ok {
		return SourceGitHub
	}
	if _, ok := headers[headerSlackSig]; ok {
		return SourceSlack
	}
	if _, ok := headers[headerJiraIdentifier]; ok {
		return SourceJira
	}
	if src, ok := headers[headerCustomSource]; ok && src != "" {
		return strings.ToLower(src)
	}
	return SourceUnknown
}

// extractEventType pulls the event name out of wherever the source puts
// it: GitHub uses a header, Slack nests it under the event envelope, Jira
// uses the webhookEvent field. Unrecognized sources fall back to common
// top-level fields.
func extractEventType(source string, headers map[string]string, payload map[string]interface{}) string {
	switch source {
	case SourceGitHub:
		if ev := headers[headerGitHubEvent]; ev != "" {
			return ev
		}
	case SourceSlack:
		if inner, ok := payload["event"].(map[string]interface{}); ok {
			if t, ok := inner["type"].(string); ok && t != "" {
				return t
			}
		}
		if t, ok := payload["type"].(string); ok && t != "" {
			return t
		}
	case SourceJira:
		if ev, ok := payload["webhookEvent"].(string); ok && ev != "" {
			return ev
		}
	}

	if ev, ok := payload["event"].(string); ok && ev != "" {
		return ev
	}
	if t, ok := payload["type"].(string); ok && t != "" {
		return t
	}
	return "unknown"
}

// Parse decodes a raw webhook body and classifies its source and event
// type. A malformed body yields Valid=false rather than an error so the
// caller can report the outcome uniformly.
func Parse(raw []byte, headers map[string]string) ParsedWebhook {
	normalized := normalizeHeaders(headers)

	parsed := ParsedWebhook{
		Source:     detectSource(normalized),
		Headers:    normalized,
		ReceivedAt: now(),
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		parsed.ValidationError = "invalid JSON payload: " + err.Error()
		return parsed
	}

	parsed.Payload = payload
	parsed.Event = extractEventType(parsed.Source, normalized, payload)
	parsed.Valid = true
	return parsed
}

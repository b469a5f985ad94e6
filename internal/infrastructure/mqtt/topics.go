package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "flashlight"

// Topics builds the service's MQTT topics under a prefix.
//
//	topics := mqtt.NewTopics("flashlight")
//	topics.State()  // "flashlight/state"
//	topics.Status() // "flashlight/system/status"
type Topics struct {
	prefix string
}

// NewTopics returns topic builders for prefix. Trailing slashes are
// trimmed; an empty prefix uses DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// State returns the retained topic carrying the current flashlight state.
//
// Example: flashlight/state
func (t Topics) State() string {
	return t.prefix + "/state"
}

// Status returns the retained online/offline status topic, also used for
// the Last Will and Testament.
//
// Example: flashlight/system/status
func (t Topics) Status() string {
	return t.prefix + "/system/status"
}

// All returns a pattern matching every topic under the prefix.
//
// Pattern: flashlight/#
func (t Topics) All() string {
	return t.prefix + "/#"
}

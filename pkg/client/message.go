package client

import (
	"encoding/json"
	"strings"
)

// Command is a verb from the camera's wire vocabulary.
type Command string

const (
	CmdUp          Command = "up"
	CmdDown        Command = "down"
	CmdLeft        Command = "left"
	CmdRight       Command = "right"
	CmdCenter      Command = "center"
	CmdGetPos      Command = "get_pos"
	CmdGetLimits   Command = "get_limits"
	CmdClientCount Command = "client_count"
	CmdLightOn     Command = "light_on"
	CmdLightOff    Command = "light_off"
)

// Message is a text unit handed to the message handler. Data holds the
// decoded JSON value when Parsed is true; otherwise only Raw is set.
type Message struct {
	Raw    string
	Data   any
	Parsed bool
}

// Object returns Data as a JSON object, if it is one.
func (m Message) Object() (map[string]any, bool) {
	obj, ok := m.Data.(map[string]any)
	return obj, ok
}

func (m Message) String() string {
	return m.Raw
}

func parseMessage(text string) Message {
	msg := Message{Raw: text}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return msg
	}
	var data any
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return msg
	}
	msg.Data = data
	msg.Parsed = true
	return msg
}

var (
	limitsKeys = []string{"x_min", "x_max", "y_min", "y_max"}
	countKeys  = []string{"clients", "client_count", "count"}
)

// replyKind reports which query a parsed text unit answers, judged by shape.
// Objects carrying an "event" field are broadcasts, never replies.
func replyKind(msg Message) (Command, bool) {
	if !msg.Parsed {
		return "", false
	}
	switch data := msg.Data.(type) {
	case float64:
		return CmdClientCount, true
	case map[string]any:
		if _, ok := data["event"]; ok {
			return "", false
		}
		if hasAll(data, limitsKeys...) {
			return CmdGetLimits, true
		}
		if hasAll(data, "x", "y") {
			return CmdGetPos, true
		}
		for _, k := range countKeys {
			if _, ok := data[k].(float64); ok {
				return CmdClientCount, true
			}
		}
	}
	return "", false
}

func hasAll(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k].(float64); !ok {
			return false
		}
	}
	return true
}

func intField(obj map[string]any, key string) (int, bool) {
	v, ok := obj[key].(float64)
	if !ok {
		return 0, false
	}
	return int(v), true
}

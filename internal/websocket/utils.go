// internal/websocket/utils.go
package websocket

import "encoding/json"

func unmarshalMessage(data []byte, target *Message) error {
	return json.Unmarshal(data, target)
}

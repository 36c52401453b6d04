package testutil

import (
	"encoding/json"

	"github.com/castlegate/castlegate/internal/model"
)

// UnmarshalPayload decodes a message's payload into the given struct
func UnmarshalPayload(msg model.Message, into any) error {
	return json.Unmarshal(msg.Payload, into)
}

package picstream

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// cursorToken is the decoded form of a pagination cursor: the sort key of the
// last item on the previous page.
type cursorToken struct {
	LastID string `json:"last_id"`
}

// EncodeCursor produces an opaque continuation token resuming after lastID.
func EncodeCursor(lastID string) string {
	raw, _ := json.Marshal(cursorToken{LastID: lastID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor unpacks a continuation token. A token that does not decode is
// rejected with ErrInvalidCursor, never silently reinterpreted. The empty
// token means "start from the beginning".
func DecodeCursor(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var t cursorToken
	if err := json.Unmarshal(raw, &t); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if t.LastID == "" {
		return "", fmt.Errorf("%w: empty resume key", ErrInvalidCursor)
	}
	return t.LastID, nil
}

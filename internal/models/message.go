package models

import (
	"strings"
	"time"
)

// Role represents the author of a message.
type Role string

const (
	// RoleUser marks a message typed by the person using the app. A message with this role is
	// immutable once created.
	RoleUser Role = "user"
	// RoleBot marks a message produced by the assistant. A message with this role starts empty
	// and grows in place while its completion stream is running.
	RoleBot Role = "bot"
)

// Message represents an individual entry within the conversation. ID, Role, Timestamp and Image
// never change after creation. Content is replaced with the full accumulated value on every
// streamed fragment, and Streaming/Error record the message's terminal state.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time

	// Image is an optional inline attachment. User messages only.
	Image *ImageAttachment

	// Streaming is true while the message is still receiving fragments.
	Streaming bool
	// Error marks a static failure message. A message never has both Error and Streaming set.
	Error bool
}

// ImageAttachment is an inline image payload with its declared media type.
type ImageAttachment struct {
	// Data is the base64 body, without the data URL prefix.
	Data      string
	MediaType string
}

// DefaultImageMediaType is assumed when an uploaded image doesn't declare one.
const DefaultImageMediaType = "image/jpeg"

// ParseImageAttachment extracts the media type and base64 payload from a data URL of the form
// "data:<media-type>;base64,<payload>". Strings that don't match that shape keep their full
// value as payload and fall back to DefaultImageMediaType.
func ParseImageAttachment(raw string) ImageAttachment {
	if rest, ok := strings.CutPrefix(raw, "data:"); ok {
		if mediaType, payload, found := strings.Cut(rest, ";base64,"); found {
			if mediaType == "" {
				mediaType = DefaultImageMediaType
			}
			return ImageAttachment{
				Data:      payload,
				MediaType: mediaType,
			}
		}
	}
	return ImageAttachment{
		Data:      raw,
		MediaType: DefaultImageMediaType,
	}
}

// DataURL reassembles the attachment into a data URL suitable for an img src attribute.
func (i ImageAttachment) DataURL() string {
	return "data:" + i.MediaType + ";base64," + i.Data
}

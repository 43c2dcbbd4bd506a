package model

import (
	"fmt"
	"strings"
)

// Channel is a delivery medium. The set is closed: see AllChannels.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Channel string

const (
	// ChannelEmail delivers through the email provider.
	ChannelEmail Channel = "email"
	// ChannelSMS delivers through the SMS provider.
	ChannelSMS Channel = "sms"
	// ChannelChat delivers a pre-registered template through the chat messaging provider.
	ChannelChat Channel = "chat"
	// ChannelInApp writes a row into the in-app notification store.
	ChannelInApp Channel = "in_app"
)

// AllChannels lists every channel the dispatcher must be able to serve.
func AllChannels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS, ChannelChat, ChannelInApp}
}

// Valid reports whether c is a member of the closed channel set.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelChat, ChannelInApp:
		return true
	}
	return false
}

// ParseChannel normalises a channel code. Legacy aliases used by upstream
// producers ("whatsapp", "in-app", "inapp") map onto the closed set.
func ParseChannel(code string) (Channel, error) {
	v := strings.ToLower(strings.TrimSpace(code))
	switch v {
	case "whatsapp":
		return ChannelChat, nil
	case "in-app", "inapp":
		return ChannelInApp, nil
	}
	c := Channel(v)
	if !c.Valid() {
		return "", fmt.Errorf("invalid channel: %q", code)
	}
	return c, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Channel) UnmarshalText(text []byte) error {
	parsed, err := ParseChannel(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

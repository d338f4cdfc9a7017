// Package notify delivers messages such as one-time codes and verification
// proofs to their recipients.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Channels a Message can be delivered on
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Message is a notification for a single recipient
type Message struct {
	Channel        string `json:"channel"`
	To             string `json:"to"`
	Subject        string `json:"subject,omitempty"`
	Body           string `json:"body"`
	Purpose        string `json:"purpose,omitempty"`
	AttachmentName string `json:"attachment_name,omitempty"`
	Attachment     []byte `json:"attachment,omitempty"`
}

// Notifier delivers messages
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// DeliveryFailedError is returned when a Notifier could not hand a message
// over to its transport
type DeliveryFailedError struct {
	Channel string
	To      string
	Err     error
}

// Error implements the error interface
func (e *DeliveryFailedError) Error() string {
	return fmt.Sprintf("delivery via %s to '%s' failed: %v", e.Channel, e.To, e.Err)
}

// Unwrap returns the underlying error
func (e *DeliveryFailedError) Unwrap() error {
	return e.Err
}

func deliveryFailed(msg Message, err error) error {
	return &DeliveryFailedError{
		Channel: msg.Channel,
		To:      msg.To,
		Err:     err,
	}
}

// ChannelFor returns the channel an address is reached on: E.164 phone
// numbers go out as SMS, everything else as email
func ChannelFor(address string) string {
	address = strings.TrimSpace(address)
	if strings.HasPrefix(address, "+") && !strings.Contains(address, "@") {
		return ChannelSMS
	}
	return ChannelEmail
}

// Dispatcher routes messages to a Notifier per channel
type Dispatcher struct {
	Email Notifier
	SMS   Notifier
}

// Notify implements the Notifier interface
func (d Dispatcher) Notify(ctx context.Context, msg Message) error {
	if msg.Channel == "" {
		msg.Channel = ChannelFor(msg.To)
	}
	var n Notifier
	switch msg.Channel {
	case ChannelEmail:
		n = d.Email
	case ChannelSMS:
		n = d.SMS
	}
	if n == nil {
		return deliveryFailed(msg, fmt.Errorf("no notifier configured for channel '%s'", msg.Channel))
	}
	return n.Notify(ctx, msg)
}

// Recorder is a Notifier that keeps all messages in memory; Err, if set,
// is returned as delivery failure instead
type Recorder struct {
	Err error

	mu       sync.Mutex
	messages []Message
}

// Notify implements the Notifier interface
func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return deliveryFailed(msg, r.Err)
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of all delivered messages
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the last delivered message
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

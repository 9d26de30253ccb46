// Package bridge implements the JSON envelope protocol spoken between the
// embedded web content and the native mobile shell. Envelopes ride the
// realtime connection; unknown types are logged and ignored so old shells
// keep working against newer web content. There is no ack or retry: a
// dropped envelope is silently lost.
package bridge

import (
	"encoding/json"
	"errors"
	"log"
)

// Web -> native request types.
const (
	TypeRequestLocation               = "REQUEST_LOCATION"
	TypeRequestCamera                 = "REQUEST_CAMERA"
	TypeRequestNotificationPermission = "REQUEST_NOTIFICATION_PERMISSION"
	TypeSendNotification              = "SEND_NOTIFICATION"
)

// Native -> web response types.
const (
	TypeLocationResponse               = "LOCATION_RESPONSE"
	TypeCameraResponse                 = "CAMERA_RESPONSE"
	TypeNotificationPermissionResponse = "NOTIFICATION_PERMISSION_RESPONSE"
)

var ErrMissingType = errors.New("bridge envelope has no type")

// Envelope is a decoded web -> native message: a type plus whatever payload
// fields rode along with it. There is no version field; forward
// compatibility is carried by ignoring unknown types.
type Envelope struct {
	Type    string
	Payload map[string]json.RawMessage
}

// Notification is the payload of a SEND_NOTIFICATION envelope.
type Notification struct {
	Title string          `json:"title"`
	Body  string          `json:"body"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Response is a native -> web envelope, delivered by invoking the web
// content's registered global handler.
type Response struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Granted *bool       `json:"granted,omitempty"`
}

// Decode parses a raw envelope. Everything besides "type" stays in Payload.
func Decode(raw []byte) (Envelope, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, err
	}
	rawType, ok := fields["type"]
	if !ok {
		return Envelope{}, ErrMissingType
	}
	envelope := Envelope{Payload: fields}
	if err := json.Unmarshal(rawType, &envelope.Type); err != nil {
		return Envelope{}, err
	}
	delete(envelope.Payload, "type")
	return envelope, nil
}

// Notification extracts the SEND_NOTIFICATION payload fields.
func (e Envelope) Notification() (Notification, error) {
	n := Notification{}
	if raw, ok := e.Payload["title"]; ok {
		if err := json.Unmarshal(raw, &n.Title); err != nil {
			return n, err
		}
	}
	if raw, ok := e.Payload["body"]; ok {
		if err := json.Unmarshal(raw, &n.Body); err != nil {
			return n, err
		}
	}
	n.Data = e.Payload["data"]
	return n, nil
}

// Handler reacts to one recognized envelope type.
type Handler func(Envelope)

// Dispatcher routes decoded envelopes to registered handlers, exactly one
// invocation per recognized envelope.
type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: map[string]Handler{}}
}

// Handle registers the handler for a type, replacing any previous one.
func (d *Dispatcher) Handle(envelopeType string, handler Handler) {
	d.handlers[envelopeType] = handler
}

// Dispatch decodes a raw envelope and invokes its handler. Unknown types are
// logged and dropped; only malformed JSON is an error.
func (d *Dispatcher) Dispatch(raw []byte) error {
	envelope, err := Decode(raw)
	if err != nil {
		return err
	}
	handler, ok := d.handlers[envelope.Type]
	if !ok {
		log.Printf("bridge: ignoring unknown envelope type %q", envelope.Type)
		return nil
	}
	handler(envelope)
	return nil
}

// Encode serializes a native -> web response envelope.
func Encode(r Response) ([]byte, error) {
	return json.Marshal(r)
}

// Granted is a convenience for permission responses.
func Granted(v bool) *bool { return &v }

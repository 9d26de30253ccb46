package bridge

import (
	"encoding/json"
	"testing"
)

func TestEachRecognizedTypeInvokesHandlerExactlyOnce(t *testing.T) {
	d := NewDispatcher()
	calls := map[string]int{}
	for _, envelopeType := range []string{
		TypeRequestLocation,
		TypeRequestCamera,
		TypeRequestNotificationPermission,
		TypeSendNotification,
	} {
		envelopeType := envelopeType
		d.Handle(envelopeType, func(e Envelope) {
			if e.Type != envelopeType {
				t.Fatalf("handler for %s got %s", envelopeType, e.Type)
			}
			calls[envelopeType]++
		})
	}

	payloads := []string{
		`{"type":"REQUEST_LOCATION"}`,
		`{"type":"REQUEST_CAMERA"}`,
		`{"type":"REQUEST_NOTIFICATION_PERMISSION"}`,
		`{"type":"SEND_NOTIFICATION","title":"Oi","body":"Nova mensagem","data":{"conversation":12}}`,
	}
	for _, p := range payloads {
		if err := d.Dispatch([]byte(p)); err != nil {
			t.Fatalf("dispatch %s: %v", p, err)
		}
	}
	for envelopeType, n := range calls {
		if n != 1 {
			t.Fatalf("%s invoked %d times", envelopeType, n)
		}
	}
	if len(calls) != 4 {
		t.Fatalf("handlers invoked: %d", len(calls))
	}
}

func TestUnknownTypeIgnored(t *testing.T) {
	d := NewDispatcher()
	invoked := false
	d.Handle(TypeRequestLocation, func(Envelope) { invoked = true })

	if err := d.Dispatch([]byte(`{"type":"REQUEST_BLUETOOTH","foo":1}`)); err != nil {
		t.Fatalf("unknown type should not error: %v", err)
	}
	if invoked {
		t.Fatal("unknown type must not invoke other handlers")
	}
	if err := d.Dispatch([]byte(`{"foo":1}`)); err != ErrMissingType {
		t.Fatalf("missing type: got %v", err)
	}
	if err := d.Dispatch([]byte(`not json`)); err == nil {
		t.Fatal("malformed payload should error")
	}
}

func TestNotificationPayload(t *testing.T) {
	e, err := Decode([]byte(`{"type":"SEND_NOTIFICATION","title":"Oi","body":"corpo","data":{"k":"v"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	n, err := e.Notification()
	if err != nil {
		t.Fatalf("notification: %v", err)
	}
	if n.Title != "Oi" || n.Body != "corpo" {
		t.Fatalf("payload: %+v", n)
	}
	if string(n.Data) != `{"k":"v"}` {
		t.Fatalf("data: %s", n.Data)
	}
}

func TestResponseEnvelopeShape(t *testing.T) {
	raw, err := Encode(Response{Type: TypeNotificationPermissionResponse, Granted: Granted(true)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded := map[string]interface{}{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != TypeNotificationPermissionResponse || decoded["granted"] != true {
		t.Fatalf("response: %v", decoded)
	}
	if _, ok := decoded["data"]; ok {
		t.Fatal("empty data should be omitted")
	}

	raw, _ = Encode(Response{Type: TypeLocationResponse, Data: map[string]float64{"lat": -23.55, "lng": -46.63}})
	decoded = map[string]interface{}{}
	json.Unmarshal(raw, &decoded)
	if _, ok := decoded["granted"]; ok {
		t.Fatal("granted should be omitted when unset")
	}
	if decoded["type"] != TypeLocationResponse {
		t.Fatalf("response: %v", decoded)
	}
}

package wsserver

import (
	"strings"
	"testing"

	"homepin/internal/ipc"
)

func TestDecodeFrame(t *testing.T) {
	req, err := decodeFrame([]byte(`{"id":"9","method":"pin","args":{"label":"x"}}`))
	if err != nil {
		t.Fatalf("decodeFrame() error = %v", err)
	}
	if req.ID != "9" || req.Method != "pin" || string(req.Args) != `{"label":"x"}` {
		t.Fatalf("decodeFrame() = %+v", req)
	}

	for _, bad := range []string{"", "[]", `{"method":"pin"}`, `{"id":"1"}`} {
		if _, err := decodeFrame([]byte(bad)); err == nil {
			t.Errorf("decodeFrame(%q) succeeded", bad)
		}
	}
}

func TestEncodeFrame(t *testing.T) {
	raw, err := encodeFrame(ipc.Response{ID: "4", OK: true, Result: false})
	if err != nil {
		t.Fatalf("encodeFrame() error = %v", err)
	}
	// A false result is a non-nil interface and must survive omitempty.
	if !strings.Contains(string(raw), `"id":"4"`) || !strings.Contains(string(raw), `"result":false`) {
		t.Fatalf("encodeFrame() = %s", raw)
	}
}

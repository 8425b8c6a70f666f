package ipc

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"id":"7","method":"pin","args":{"label":"x"}}` + "\n"))
	if err != nil {
		t.Fatalf("DecodeRequest() error = %v", err)
	}
	if req.ID != "7" || req.Method != "pin" || string(req.Args) != `{"label":"x"}` {
		t.Fatalf("request = %+v", req)
	}

	for _, raw := range []string{`{"args":{}}`, `{"method":"  "}`, `not json`} {
		if _, err := DecodeRequest([]byte(raw)); err == nil {
			t.Errorf("DecodeRequest(%q) error = nil, want error", raw)
		}
	}
}

func TestResponseEncodingKeepsFalseResult(t *testing.T) {
	raw, err := EncodeResponse(Response{OK: true, Result: false})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"ok":true,"result":false}` {
		t.Fatalf("encoded = %s", raw)
	}
	resp, err := decodeResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := resp.Bool(); err != nil || v {
		t.Fatalf("Bool() = %v, %v; want false, nil", v, err)
	}
}

func TestResponseBool(t *testing.T) {
	if v, err := (Response{OK: true, Result: true}).Bool(); err != nil || !v {
		t.Fatalf("Bool() = %v, %v", v, err)
	}

	_, err := ErrorResponse("1", "pin-unsupported", "no launcher").Bool()
	var respErr *ResponseError
	if !errors.As(err, &respErr) || respErr.Code != "pin-unsupported" {
		t.Fatalf("Bool() error = %v, want pin-unsupported", err)
	}
	if _, err := (Response{OK: false}).Bool(); err == nil {
		t.Fatal("failed response without body must error")
	}
	if _, err := (Response{OK: true, Result: "yes"}).Bool(); err == nil {
		t.Fatal("non-bool result must error")
	}
}

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		max     int
		want    string
		wantErr error
	}{
		{name: "newline terminated", input: "abc\nrest", max: 16, want: "abc\n"},
		{name: "eof terminated", input: "abc", max: 16, want: "abc"},
		{name: "empty", input: "", max: 16, wantErr: io.EOF},
		{name: "larger than reader buffer", input: strings.Repeat("x", 100) + "\n", max: 200, want: strings.Repeat("x", 100) + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readFrame(bufio.NewReaderSize(strings.NewReader(tt.input), 16), tt.max)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("readFrame() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || string(got) != tt.want {
				t.Fatalf("readFrame() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}

	if _, err := readFrame(bufio.NewReaderSize(strings.NewReader(strings.Repeat("y", 64)+"\n"), 16), 32); err == nil {
		t.Fatal("oversized frame must fail")
	}
}

func TestIsConnectionError(t *testing.T) {
	if IsConnectionError(nil) || IsConnectionError(errors.New("x")) {
		t.Fatal("plain errors are not connection errors")
	}
}

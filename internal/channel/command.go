// Package channel decodes the shortcut command surface and dispatches each
// command to the shortcut builder.
package channel

import (
	"encoding/json"
	"log/slog"

	"homepin/internal/shortcut"
)

// Method names on the wire.
const (
	MethodCanPin = "canPin"
	MethodPin    = "pin"
)

// Command is one of CanPinCommand, PinCommand or UnknownCommand.
type Command interface {
	Method() string
	isCommand()
}

// CanPinCommand asks whether the host accepts pin requests.
type CanPinCommand struct{}

// PinCommand asks for a shortcut to be built and submitted.
type PinCommand struct {
	Request shortcut.PinRequest
}

// UnknownCommand is any method this channel does not implement.
type UnknownCommand struct {
	Name string
}

func (CanPinCommand) Method() string    { return MethodCanPin }
func (PinCommand) Method() string       { return MethodPin }
func (c UnknownCommand) Method() string { return c.Name }

func (CanPinCommand) isCommand()  {}
func (PinCommand) isCommand()     {}
func (UnknownCommand) isCommand() {}

// pinArgs mirrors shortcut.PinRequest on the wire. iconBytes is base64 and
// decoded separately, so a bad icon never costs the label and filters.
type pinArgs struct {
	Label     *string         `json:"label"`
	IconBytes json.RawMessage `json:"iconBytes"`
	Filters   *[]string       `json:"filters"`
}

// Decode turns a method name and its raw JSON arguments into a Command.
// Pin arguments that cannot be parsed yield a PinCommand with an empty
// request, which then fails validation with a missing-arguments error. An
// iconBytes value that is not base64 is dropped like any unusable image, and
// the shortcut gets the fallback icon.
func Decode(method string, args json.RawMessage) Command {
	switch method {
	case MethodCanPin:
		return CanPinCommand{}
	case MethodPin:
		var parsed pinArgs
		if len(args) > 0 {
			if err := json.Unmarshal(args, &parsed); err != nil {
				slog.Debug("[DEBUG-CHANNEL] pin arguments not decodable", "error", err)
				return PinCommand{}
			}
		}
		var req shortcut.PinRequest
		if parsed.Label != nil {
			req.Label = *parsed.Label
		}
		if parsed.Filters != nil {
			req.Filters = *parsed.Filters
		}
		req.IconBytes = decodeIconBytes(parsed.IconBytes)
		return PinCommand{Request: req}
	default:
		return UnknownCommand{Name: method}
	}
}

func decodeIconBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var icon []byte
	if err := json.Unmarshal(raw, &icon); err != nil {
		slog.Debug("[DEBUG-CHANNEL] iconBytes not decodable, using fallback icon", "error", err)
		return nil
	}
	return icon
}

// EncodePinArgs is the client-side counterpart of Decode for pin.
func EncodePinArgs(req shortcut.PinRequest) (json.RawMessage, error) {
	icon, err := json.Marshal(req.IconBytes)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pinArgs{
		Label:     &req.Label,
		IconBytes: icon,
		Filters:   &req.Filters,
	})
}

package buffer

import (
	"fmt"

	"diffmerge/engine"
	"diffmerge/keys"
	"diffmerge/types"
)

// DecodeEvent turns a diffmerge_event RPC call into an engine event.
//
//	generation  {text, instruction, final}
//	accept      {mode}           mode is "replace" (default) or "append"
//	reject      {}
//	cancel      {}
//	key         {key}            Vim notation, e.g. "<M-CR>"
func DecodeEvent(name string, args map[string]any) (engine.Event, error) {
	eventType := engine.EventTypeFromString(name)
	switch eventType {
	case engine.EventGenerationComplete:
		gen := types.Generation{
			GeneratedText:   getString(args, "text"),
			UserInstruction: getString(args, "instruction"),
			Final:           true,
		}
		if v, ok := args["final"].(bool); ok {
			gen.Final = v
		}
		return engine.Event{Type: eventType, Data: gen}, nil

	case engine.EventAccept:
		mode, err := types.ParseApplyMode(getString(args, "mode"))
		if err != nil {
			return engine.Event{}, err
		}
		return engine.Event{Type: eventType, Data: mode}, nil

	case engine.EventReject, engine.EventCancel:
		return engine.Event{Type: eventType}, nil

	case engine.EventKey:
		k, err := keys.ParseKey(getString(args, "key"))
		if err != nil {
			return engine.Event{}, err
		}
		return engine.Event{Type: eventType, Data: k}, nil

	default:
		// auto_apply_timeout is internal and never accepted from the editor
		return engine.Event{}, fmt.Errorf("unknown event %q", name)
	}
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

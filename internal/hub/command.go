package hub

import "fmt"

// CommandKind enumerates the command vocabulary.
type CommandKind string

const (
	CmdTeleop   CommandKind = "teleop"
	CmdInfer    CommandKind = "infer"
	CmdIdle     CommandKind = "idle"
	CmdData     CommandKind = "data"
	CmdShutdown CommandKind = "shutdown"
	CmdRaw      CommandKind = "raw"
)

// Command is one decoded hub command.
type Command struct {
	Kind        CommandKind
	Provider    string         // teleop target
	Instruction string         // infer text
	DataCommand string         // data sub-command
	Raw         map[string]any // raw passthrough payload
}

// DecodeCommand translates a decoded request body into a Command. The body
// selects exactly one verb:
//
//	{"teleop": "leader"}
//	{"infer": "fold the towel"}
//	{"idle": ""}
//	{"data": {"command": "start"}}  or  {"data": "start"}
//	{"shutdown": ""}
//	{"raw": {...}}
//
// Anything else is a malformed command.
func DecodeCommand(body map[string]any) (Command, error) {
	if v, ok := body["teleop"]; ok {
		name, ok := v.(string)
		if !ok || name == "" {
			return Command{}, ErrMalformedCommand("teleop requires a provider name")
		}
		return Command{Kind: CmdTeleop, Provider: name}, nil
	}
	if v, ok := body["infer"]; ok {
		text, ok := v.(string)
		if !ok || text == "" {
			return Command{}, ErrMalformedCommand("infer requires an instruction")
		}
		return Command{Kind: CmdInfer, Instruction: text}, nil
	}
	if _, ok := body["idle"]; ok {
		return Command{Kind: CmdIdle}, nil
	}
	if v, ok := body["data"]; ok {
		switch payload := v.(type) {
		case string:
			if payload == "" {
				return Command{}, ErrMalformedCommand("data requires a sub-command")
			}
			return Command{Kind: CmdData, DataCommand: payload}, nil
		case map[string]any:
			sub, _ := payload["command"].(string)
			if sub == "" {
				return Command{}, ErrMalformedCommand("data requires a sub-command")
			}
			return Command{Kind: CmdData, DataCommand: sub}, nil
		default:
			return Command{}, ErrMalformedCommand(fmt.Sprintf("data payload must be a string or object, got %T", v))
		}
	}
	if _, ok := body["shutdown"]; ok {
		return Command{Kind: CmdShutdown}, nil
	}
	if v, ok := body["raw"]; ok {
		payload, ok := v.(map[string]any)
		if !ok {
			return Command{}, ErrMalformedCommand("raw payload must be an object")
		}
		return Command{Kind: CmdRaw, Raw: payload}, nil
	}
	return Command{}, ErrMalformedCommand("no recognized command key")
}

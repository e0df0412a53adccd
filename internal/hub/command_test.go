package hub

import "testing"

func TestDecodeCommand(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
		want Command
	}{
		{"teleop", map[string]any{"teleop": "leader"}, Command{Kind: CmdTeleop, Provider: "leader"}},
		{"infer", map[string]any{"infer": "fold the towel"}, Command{Kind: CmdInfer, Instruction: "fold the towel"}},
		{"idle", map[string]any{"idle": ""}, Command{Kind: CmdIdle}},
		{"data string", map[string]any{"data": "start"}, Command{Kind: CmdData, DataCommand: "start"}},
		{"data object", map[string]any{"data": map[string]any{"command": "next"}}, Command{Kind: CmdData, DataCommand: "next"}},
		{"shutdown", map[string]any{"shutdown": ""}, Command{Kind: CmdShutdown}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeCommand(tc.body)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Kind != tc.want.Kind || got.Provider != tc.want.Provider ||
				got.Instruction != tc.want.Instruction || got.DataCommand != tc.want.DataCommand {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDecodeCommandRaw(t *testing.T) {
	got, err := DecodeCommand(map[string]any{"raw": map[string]any{"op": "calibrate"}})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Kind != CmdRaw || got.Raw["op"] != "calibrate" {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeCommandMalformed(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
	}{
		{"empty body", map[string]any{}},
		{"unknown key", map[string]any{"dance": "now"}},
		{"teleop without name", map[string]any{"teleop": ""}},
		{"teleop non-string", map[string]any{"teleop": 7}},
		{"infer without text", map[string]any{"infer": ""}},
		{"data empty sub", map[string]any{"data": ""}},
		{"data object without command", map[string]any{"data": map[string]any{}}},
		{"data bad type", map[string]any{"data": 3}},
		{"raw non-object", map[string]any{"raw": "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeCommand(tc.body); !IsMalformedCommand(err) {
				t.Fatalf("expected malformed command, got %v", err)
			}
		})
	}
}

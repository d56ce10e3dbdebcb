package instruments

import "context"

// Instrument kinds.
const (
	KindSynth   = "synth"
	KindTemp    = "temp"
	KindVoltage = "voltage"
	KindShutter = "shutter"
)

// Metadata is the contract for instrument identity and display data.
type Metadata struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Addr        string `json:"addr,omitempty"`
}

// OperationSpec defines one supported instrument action.
type OperationSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Idempotent  bool   `json:"idempotent"`
}

// Result is the outcome of one action. Output is a short human readable
// summary; Data carries the typed values.
type Result struct {
	Status string         `json:"status"`
	Output string         `json:"output,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// OK builds a successful Result.
func OK(output string, data map[string]any) Result {
	return Result{Status: "ok", Output: output, Data: data}
}

// Instrument is the dispatch boundary used by the control server.
type Instrument interface {
	Metadata() Metadata
	Operations() []OperationSpec
	Execute(ctx context.Context, action string, args map[string]string) (Result, error)
	Ping(ctx context.Context) bool
	Close() error
}

// Transport is the command channel to one device.
type Transport interface {
	Send(ctx context.Context, cmd string) error
	Ask(ctx context.Context, cmd string) (string, error)
	AskN(ctx context.Context, cmd string, n int) (string, error)
	Close() error
}

// SupportsAction reports whether ops lists action.
func SupportsAction(ops []OperationSpec, action string) bool {
	for _, op := range ops {
		if op.Name == action {
			return true
		}
	}
	return false
}

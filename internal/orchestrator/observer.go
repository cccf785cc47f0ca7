package orchestrator

import (
	"github.com/MrWong99/scholar/internal/tools"
	"github.com/MrWong99/scholar/pkg/types"
)

// Observer receives progress events while a query is being answered. The
// orchestrator invokes the callbacks synchronously from the turn loop, so
// implementations should return quickly and must not call back into the
// orchestrator.
//
// A nil Observer is valid and disables event delivery.
type Observer interface {
	// OnToolCall fires when the model requests a tool invocation, before the
	// tool executes.
	OnToolCall(call types.ToolCall)

	// OnToolResult fires after the tool finished, with the structured result
	// that will be fed back to the model.
	OnToolResult(call types.ToolCall, result tools.Result)
}

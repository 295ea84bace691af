package patch

import "context"

// Invocation carries the parameters for applying one patch file.
type Invocation struct {
	// Strip is the number of leading path components to remove.
	Strip int
	// PatchFile is the resolved path of the patch to apply.
	PatchFile string
	// WorkDir is the directory the patch is applied to.
	WorkDir string
}

// Outcome is the exit status and captured output of a tool run.
type Outcome struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Success reports whether the run exited with status zero.
func (o Outcome) Success() bool {
	return o.ExitCode == 0
}

// Tool applies a single patch file. A non-zero exit status is reported through
// the Outcome; the error is reserved for runs that could not happen at all.
type Tool interface {
	Run(ctx context.Context, inv Invocation) (Outcome, error)
}

// ToolFunc adapts a plain function to the Tool interface.
type ToolFunc func(ctx context.Context, inv Invocation) (Outcome, error)

// Run calls f(ctx, inv).
func (f ToolFunc) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	return f(ctx, inv)
}

// ToolProvider hands out the patch tool. An error means the tool cannot be
// located and fails the batch.
type ToolProvider interface {
	PatchTool() (Tool, error)
}

package session

// ReusableValidatorsMode controls whether synthesized validator helpers are
// hoisted to file-level `const` declarations and reused by hash, inlined
// every time, or decided automatically per occurrence.
type ReusableValidatorsMode string

const (
	ReusableValidatorsAuto   ReusableValidatorsMode = "auto"
	ReusableValidatorsAlways ReusableValidatorsMode = "true"
	ReusableValidatorsNever  ReusableValidatorsMode = "false"
)

// DefaultMaxGeneratedFunctions caps the number of hoisted helper functions a
// single file may generate before Transform fails with a generated-
// functions limit error.
const DefaultMaxGeneratedFunctions = 50

// SourceMapConfig controls how Transform emits source maps alongside
// generated code.
type SourceMapConfig struct {
	Enabled        bool
	IncludeContent bool
	// Inline, when set, base64-encodes the source map into a trailing
	// `//# sourceMappingURL=` comment instead of returning it as a separate
	// value.
	Inline bool
}

// DebugConfig gates developer-only diagnostics that are never part of the
// wire protocol's normal response shape.
type DebugConfig struct {
	// WriteIntermediateFiles writes the planned sites for a file (kind,
	// name, span, type hash and decision) to <file>.boundarycheck-debug.json
	// next to the source, for troubleshooting a transform that produced
	// unexpected output. The synthesized fragments are not written.
	WriteIntermediateFiles bool
}

// Config is the host-level configuration object: it governs which
// site kinds are transformed, how validators are synthesized and hoisted,
// and how the resulting edits are mapped back to source.
type Config struct {
	ValidateParameters     bool
	ValidateReturns        bool
	ValidateCasts          bool
	TransformJSONParse     bool
	TransformJSONStringify bool

	ReusableValidators    ReusableValidatorsMode
	MaxGeneratedFunctions int

	// IgnoreTypes are glob patterns (path.Match syntax) matched against a
	// type's declared name; a match degrades that type's sites to a
	// pass-through (no check emitted).
	IgnoreTypes []string

	// Include/Exclude are glob patterns (relative to the project root)
	// restricting which files Transform/Analyze will act on; both default
	// to empty, meaning "every file the project's program resolves".
	Include []string
	Exclude []string

	SourceMap SourceMapConfig
	Debug     DebugConfig
}

// DefaultConfig returns every validation enabled, auto-hoisting, and source
// maps on with embedded content — the configuration a bare `boundarycheckd`
// invocation runs with.
func DefaultConfig() Config {
	return Config{
		ValidateParameters:     true,
		ValidateReturns:        true,
		ValidateCasts:          true,
		TransformJSONParse:     true,
		TransformJSONStringify: true,
		ReusableValidators:     ReusableValidatorsAuto,
		MaxGeneratedFunctions:  DefaultMaxGeneratedFunctions,
		SourceMap: SourceMapConfig{
			Enabled:        true,
			IncludeContent: true,
		},
	}
}

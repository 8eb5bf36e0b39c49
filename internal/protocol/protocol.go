// Package protocol implements the host-side wire format: a
// length-prefixed, MessagePack-framed envelope carrying a JSON payload
// for each request and response.
package protocol

// MessageType is the first framed field, identifying request/response/error
// messages.
type MessageType uint8

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeRequest
	MessageTypeCallResponse
	MessageTypeCallError
	MessageTypeResponse
	MessageTypeError
	MessageTypeCall
)

func (m MessageType) IsValid() bool {
	return m >= MessageTypeRequest && m <= MessageTypeCall
}

func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "request"
	case MessageTypeCallResponse:
		return "call-response"
	case MessageTypeCallError:
		return "call-error"
	case MessageTypeResponse:
		return "response"
	case MessageTypeError:
		return "error"
	case MessageTypeCall:
		return "call"
	default:
		return "unknown"
	}
}

// MessagePackType tags the handful of MessagePack primitives this framing
// actually uses: a fixed 3-element array header, a u8, and the three bin
// width variants.
type MessagePackType uint8

const (
	MessagePackTypeFixedArray3 MessagePackType = 0x93
	MessagePackTypeBin8        MessagePackType = 0xC4
	MessagePackTypeBin16       MessagePackType = 0xC5
	MessagePackTypeBin32       MessagePackType = 0xC6
	MessagePackTypeU8          MessagePackType = 0xCC
)

// Method names dispatched by the host loop.
const (
	MethodEcho            = "echo"
	MethodLoadProject     = "loadProject"
	MethodTransform       = "transform"
	MethodTransformSource = "transformSource"
	MethodAnalyze         = "analyze"
	MethodRelease         = "close"
)

// LoadProjectParams opens a tsconfig.json-rooted project and, optionally,
// overrides the default Config for every Transform/
// Analyze call made against the returned handle.
type LoadProjectParams struct {
	ConfigFileName          string   `json:"configFileName"`
	ValidateCasts           *bool    `json:"validateCasts,omitempty"`
	ReusableValidators      *string  `json:"reusableValidators,omitempty"`
	IgnoreTypes             []string `json:"ignoreTypes,omitempty"`
	MaxGeneratedFunctions   int      `json:"maxGeneratedFunctions,omitempty"`
	Include                 []string `json:"include,omitempty"`
	Exclude                 []string `json:"exclude,omitempty"`
	SourceMapEnabled        *bool    `json:"sourceMapEnabled,omitempty"`
	SourceMapIncludeContent *bool    `json:"sourceMapIncludeContent,omitempty"`
	SourceMapInline         *bool    `json:"sourceMapInline,omitempty"`
	WriteIntermediateFiles  bool     `json:"writeIntermediateFiles,omitempty"`
}

// ProjectResponse answers loadProject with a handle the caller threads
// through subsequent transform/analyze/close requests.
type ProjectResponse struct {
	Id         string   `json:"id"`
	ConfigFile string   `json:"configFile"`
	RootFiles  []string `json:"rootFiles"`
}

// TransformParams names the target file within an already-open project
// handle.
type TransformParams struct {
	Project  string `json:"project"`
	FileName string `json:"fileName"`
	Flavor   string `json:"flavor,omitempty"`
}

// TransformResponse carries the rewritten code and, when enabled, its
// source map.
type TransformResponse struct {
	Code      string `json:"code"`
	SourceMap any    `json:"sourceMap,omitempty"`
}

// TransformSourceParams transforms a standalone source string without an
// open project handle: the server materialises a throwaway project around
// it so the oracle can still type-check.
type TransformSourceParams struct {
	FileName string `json:"fileName"`
	Source   string `json:"source"`
	Flavor   string `json:"flavor,omitempty"`
}

// AnalyzeParams mirrors TransformParams for the analyze-only command.
type AnalyzeParams struct {
	Project  string `json:"project"`
	FileName string `json:"fileName"`
}

// AnalyzeResponse lists the candidate sites found in one file.
type AnalyzeResponse struct {
	Items []ValidationItem `json:"items"`
}

// ValidationItem is the wire form of session.ValidationItem.
type ValidationItem struct {
	StartLine   int    `json:"startLine"`
	StartColumn int    `json:"startColumn"`
	EndLine     int    `json:"endLine"`
	EndColumn   int    `json:"endColumn"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	TypeString  string `json:"typeString"`
	SkipReason  string `json:"skipReason,omitempty"`
}

// ReleaseParams closes a previously loaded project handle.
type ReleaseParams struct {
	Project string `json:"project"`
}

// Package session owns the oracle's project.Session and hands each
// Transform/Analyze call through siteplanner, synth and editapply in turn.
package session

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/go-json-experiment/json"

	"github.com/microsoft/typescript-go/shim/bundled"
	"github.com/microsoft/typescript-go/shim/lsp/lsproto"
	"github.com/microsoft/typescript-go/shim/project"
	"github.com/microsoft/typescript-go/shim/tspath"
	"github.com/microsoft/typescript-go/shim/vfs"
	"github.com/microsoft/typescript-go/shim/vfs/osvfs"

	"github.com/basilisk-labs/boundarycheck/internal/editapply"
	"github.com/basilisk-labs/boundarycheck/internal/siteplanner"
	"github.com/basilisk-labs/boundarycheck/internal/synth"
	"github.com/basilisk-labs/boundarycheck/internal/typemodel"
)

var debug = os.Getenv("BOUNDARYCHECK_DEBUG") == "1"

func debugf(format string, args ...any) {
	if debug {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// TransformResult is what Transform returns for one file.
type TransformResult struct {
	Code      string
	SourceMap *editapply.RawSourceMap
}

// ValidationItem describes one planned site for the analyze-only host
// command, independent of whether Transform would actually emit a
// check for it.
type ValidationItem struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
	Kind        string
	Name        string
	Status      string // "validated" or "skipped"
	TypeString  string
	SkipReason  string
}

// Session is a single project.Session plus the configuration and request
// bookkeeping for it. Each Transform and Analyze call builds its own
// TypeModel Resolver, so the Resolver's LRU does not outlive the call, and
// CallGraph/FunctionScope state is likewise rebuilt per file since escape
// analysis is intra-procedural.
type Session struct {
	config Config
	fs     vfs.FS
	cwd    string

	oracle *project.Session

	mu         sync.Mutex
	proj       *project.Project
	configFile string

	// ctx is cancelled by Close; a Transform racing a Close observes the
	// cancellation instead of an oracle torn down underneath it.
	ctx    context.Context
	cancel context.CancelFunc

	transformGroup singleflight.Group
}

// Open loads the project rooted at configPath (a tsconfig.json) and returns
// a Session ready for Transform/Analyze calls against any file the project
// resolves.
func Open(configPath string, config Config) (*Session, error) {
	cwd := filepath.Dir(configPath)
	fs := bundled.WrapFS(osvfs.FS())

	oracle := project.NewSession(&project.SessionInit{
		FS: fs,
		Options: &project.SessionOptions{
			CurrentDirectory:   cwd,
			DefaultLibraryPath: bundled.LibPath(),
			PositionEncoding:   lsproto.PositionEncodingKindUTF8,
		},
	})

	absConfigPath := tspath.GetNormalizedAbsolutePath(configPath, cwd)
	ctx := context.Background()
	proj, err := oracle.OpenProject(ctx, absConfigPath)
	if err != nil {
		return nil, configError(configPath, "failed to open project", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	return &Session{
		config:     config,
		fs:         fs,
		cwd:        cwd,
		oracle:     oracle,
		proj:       proj,
		configFile: absConfigPath,
		ctx:        sctx,
		cancel:     cancel,
	}, nil
}

// RootFiles returns the project's configured input files.
func (s *Session) RootFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proj.CommandLine.FileNames()
}

func (s *Session) toAbsolutePath(path string) string {
	return tspath.GetNormalizedAbsolutePath(path, s.cwd)
}

// Transform produces validator-injected code (and, if configured, a source
// map) for absPath, deduplicating concurrent calls for the same path and
// flavor via singleflight — a Transform already in flight is shared rather
// than redone, since Transform is idempotent for a given project snapshot.
// flavor is "ts" or "js"; empty defaults to "ts".
func (s *Session) Transform(absPath, flavor string) (*TransformResult, error) {
	absPath = s.toAbsolutePath(absPath)
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if !s.fileAllowed(absPath) {
		return nil, projectError(absPath, "source file not found", nil)
	}

	v, err, _ := s.transformGroup.Do(absPath+"\x00"+flavor, func() (any, error) {
		return s.transformLocked(absPath, flavor)
	})
	if err != nil {
		return nil, err
	}
	return v.(*TransformResult), nil
}

// checkOpen surfaces Close racing an in-flight request as a cancellation
// error rather than letting the request observe a torn-down oracle.
func (s *Session) checkOpen() error {
	if err := s.ctx.Err(); err != nil {
		return internalError("", "session closed", err)
	}
	return nil
}

// fileAllowed applies the include/exclude path patterns. Patterns
// match the path relative to the project root; an empty include list means
// every file the program resolves.
func (s *Session) fileAllowed(absPath string) bool {
	rel, err := filepath.Rel(s.cwd, absPath)
	if err != nil {
		rel = absPath
	}
	rel = filepath.ToSlash(rel)
	for _, pat := range s.config.Exclude {
		if ok, _ := path.Match(pat, rel); ok {
			return false
		}
	}
	if len(s.config.Include) == 0 {
		return true
	}
	for _, pat := range s.config.Include {
		if ok, _ := path.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func (s *Session) transformLocked(absPath, flavor string) (*TransformResult, error) {
	s.mu.Lock()
	proj := s.proj
	s.mu.Unlock()

	program := proj.GetProgram()
	sourceFile := program.GetSourceFile(absPath)
	if sourceFile == nil {
		return nil, projectError(absPath, "source file not found", nil)
	}

	c, release := program.GetTypeChecker(s.ctx)
	defer release()

	text := sourceFile.Text()
	resolver := typemodel.NewResolver(c)
	planner := siteplanner.New(c, resolver, s.plannerConfig())
	sites := planner.Plan(sourceFile, text)

	synthesizer := synth.New(string(s.config.ReusableValidators), 0, s.config.IgnoreTypes, flavor != "js")
	for _, site := range sites {
		if site.Decision.Validate {
			synthesizer.CountUsage(site.Type)
		}
	}

	planned := make([]editapply.PlannedFragment, 0, len(sites))
	generatedFunctions := 0
	for _, site := range sites {
		if !site.Decision.Validate {
			planned = append(planned, editapply.PlannedFragment{Site: site})
			continue
		}
		mode := synth.Assert
		switch site.Kind {
		case siteplanner.KindJSONParse:
			mode = synth.ParseFilter
		case siteplanner.KindJSONStringify:
			mode = synth.StringifyProjection
		}
		frag := synthesizer.Synthesize(site.Type, mode, site.Name)
		generatedFunctions += len(frag.Helpers)
		if max := s.config.MaxGeneratedFunctions; max > 0 && generatedFunctions > max {
			return nil, internalError(absPath, fmt.Sprintf("generated function count exceeds configured maximum of %d", max), nil)
		}
		planned = append(planned, editapply.PlannedFragment{Site: site, Fragment: &frag})
	}

	result := editapply.Apply(text, planned, editapply.Options{
		FileName:                filepath.Base(absPath),
		SourceMapEnabled:        s.config.SourceMap.Enabled,
		SourceMapIncludeContent: s.config.SourceMap.IncludeContent,
		Flavor:                  flavor,
	})

	if s.config.Debug.WriteIntermediateFiles {
		s.writeIntermediateFile(absPath, sites)
	}

	out := &TransformResult{Code: result.Code}
	if s.config.SourceMap.Enabled {
		if s.config.SourceMap.Inline {
			comment, err := result.SourceMap.InlineComment()
			if err != nil {
				return nil, internalError(absPath, "failed to encode inline source map", err)
			}
			out.Code += "\n" + comment + "\n"
		} else {
			out.SourceMap = result.SourceMap
		}
	}
	return out, nil
}

// Analyze reports every candidate site siteplanner finds for absPath,
// whether or not Transform would emit a check for it, for the host's
// editor-decoration use case.
func (s *Session) Analyze(absPath string) ([]ValidationItem, error) {
	absPath = s.toAbsolutePath(absPath)
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if !s.fileAllowed(absPath) {
		return nil, projectError(absPath, "source file not found", nil)
	}

	s.mu.Lock()
	proj := s.proj
	s.mu.Unlock()

	program := proj.GetProgram()
	sourceFile := program.GetSourceFile(absPath)
	if sourceFile == nil {
		return nil, projectError(absPath, "source file not found", nil)
	}

	c, release := program.GetTypeChecker(s.ctx)
	defer release()

	text := sourceFile.Text()
	resolver := typemodel.NewResolver(c)
	planner := siteplanner.New(c, resolver, s.plannerConfig())
	sites := planner.Plan(sourceFile, text)

	lineStarts := editapply.LineStarts(text)
	items := make([]ValidationItem, 0, len(sites))
	for _, site := range sites {
		startLine, startCol := editapply.PosToLineCol(site.ExprStart, lineStarts)
		endLine, endCol := editapply.PosToLineCol(site.ExprEnd, lineStarts)
		status := "skipped"
		if site.Decision.Validate {
			status = "validated"
		}
		items = append(items, ValidationItem{
			StartLine:   startLine + 1,
			StartColumn: startCol,
			EndLine:     endLine + 1,
			EndColumn:   endCol,
			Kind:        site.Kind.String(),
			Name:        site.Name,
			Status:      status,
			TypeString:  site.Type.String(),
			SkipReason:  site.Decision.Reason,
		})
	}
	return items, nil
}

func (s *Session) plannerConfig() siteplanner.Config {
	return siteplanner.Config{
		ValidateParameters:     s.config.ValidateParameters,
		ValidateReturns:        s.config.ValidateReturns,
		ValidateCasts:          s.config.ValidateCasts,
		TransformJSONParse:     s.config.TransformJSONParse,
		TransformJSONStringify: s.config.TransformJSONStringify,
		IgnoreTypes:            s.config.IgnoreTypes,
	}
}

// debugSite is the JSON shape written by writeIntermediateFile: enough to
// reconstruct what a transform run decided without re-running the
// analysis.
type debugSite struct {
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	ExprStart  int    `json:"exprStart"`
	ExprEnd    int    `json:"exprEnd"`
	TypeHash   string `json:"typeHash"`
	Validate   bool   `json:"validate"`
	SkipReason string `json:"skipReason,omitempty"`
}

// writeIntermediateFile persists the planned sites for absPath to
// <path>.boundarycheck-debug.json alongside the transformed output, for
// offline inspection when debug.writeIntermediateFiles is set.
func (s *Session) writeIntermediateFile(absPath string, sites []siteplanner.Site) {
	debugf("[DEBUG] %s produced %d candidate sites\n", absPath, len(sites))

	out := make([]debugSite, len(sites))
	for i, site := range sites {
		out[i] = debugSite{
			Kind:       site.Kind.String(),
			Name:       site.Name,
			ExprStart:  site.ExprStart,
			ExprEnd:    site.ExprEnd,
			TypeHash:   fmt.Sprintf("%x", site.Type.Hash()),
			Validate:   site.Decision.Validate,
			SkipReason: site.Decision.Reason,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		debugf("[DEBUG] failed to marshal debug sites for %s: %v\n", absPath, err)
		return
	}
	debugPath := absPath + ".boundarycheck-debug.json"
	if err := os.WriteFile(debugPath, data, 0o644); err != nil {
		debugf("[DEBUG] failed to write %s: %v\n", debugPath, err)
	}
}

// Close cancels the session context, so a pending or later Transform/Analyze
// reports cancellation. It does not otherwise shut down the underlying
// oracle session. A Session is not usable after Close.
func (s *Session) Close() error {
	s.cancel()
	return nil
}

package protocol

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/basilisk-labs/boundarycheck/internal/session"
)

// API is the host-facing dispatcher: it owns every open session by handle
// and turns the JSON request shapes into Session calls.
type API struct {
	cwd string

	mu       sync.Mutex
	sessions map[string]*session.Session
	nextID   int
}

func NewAPI(cwd string) *API {
	return &API{cwd: cwd, sessions: make(map[string]*session.Session)}
}

func (a *API) LoadProject(p LoadProjectParams) (*ProjectResponse, error) {
	cfg := session.DefaultConfig()
	if p.ValidateCasts != nil {
		cfg.ValidateCasts = *p.ValidateCasts
	}
	if p.ReusableValidators != nil {
		cfg.ReusableValidators = session.ReusableValidatorsMode(*p.ReusableValidators)
	}
	if len(p.IgnoreTypes) > 0 {
		cfg.IgnoreTypes = p.IgnoreTypes
	}
	if p.MaxGeneratedFunctions > 0 {
		cfg.MaxGeneratedFunctions = p.MaxGeneratedFunctions
	}
	cfg.Include = p.Include
	cfg.Exclude = p.Exclude
	if p.SourceMapEnabled != nil {
		cfg.SourceMap.Enabled = *p.SourceMapEnabled
	}
	if p.SourceMapIncludeContent != nil {
		cfg.SourceMap.IncludeContent = *p.SourceMapIncludeContent
	}
	if p.SourceMapInline != nil {
		cfg.SourceMap.Inline = *p.SourceMapInline
	}
	cfg.Debug.WriteIntermediateFiles = p.WriteIntermediateFiles

	configPath := p.ConfigFileName
	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(a.cwd, configPath)
	}
	sess, err := session.Open(configPath, cfg)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	id := fmt.Sprintf("p%d", a.nextID)
	a.sessions[id] = sess

	return &ProjectResponse{
		Id:         id,
		ConfigFile: p.ConfigFileName,
		RootFiles:  sess.RootFiles(),
	}, nil
}

func (a *API) lookup(handle string) (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sess, ok := a.sessions[handle]
	if !ok {
		return nil, fmt.Errorf("project not found: %s", handle)
	}
	return sess, nil
}

func (a *API) Transform(p TransformParams) (*TransformResponse, error) {
	sess, err := a.lookup(p.Project)
	if err != nil {
		return nil, err
	}
	result, err := sess.Transform(p.FileName, p.Flavor)
	if err != nil {
		return nil, err
	}
	resp := &TransformResponse{Code: result.Code}
	if result.SourceMap != nil {
		resp.SourceMap = result.SourceMap
	}
	return resp, nil
}

// TransformSource transforms a standalone source string by materialising a
// temporary single-file project around it, so callers without a tsconfig
// (REPLs, editor scratch buffers) still get oracle-backed validation.
func (a *API) TransformSource(p TransformSourceParams) (*TransformResponse, error) {
	if p.FileName == "" {
		p.FileName = "input.ts"
	}

	tmpDir, err := os.MkdirTemp("", "boundarycheck-transform-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	tsconfigPath := filepath.Join(tmpDir, "tsconfig.json")
	tsconfigContent := `{"compilerOptions":{"strict":true,"target":"ES2020","module":"ESNext"},"include":["*.ts","*.tsx"]}`
	if err := os.WriteFile(tsconfigPath, []byte(tsconfigContent), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write tsconfig: %w", err)
	}
	sourcePath := filepath.Join(tmpDir, p.FileName)
	if err := os.WriteFile(sourcePath, []byte(p.Source), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write source file: %w", err)
	}

	sess, err := session.Open(tsconfigPath, session.DefaultConfig())
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	result, err := sess.Transform(sourcePath, p.Flavor)
	if err != nil {
		return nil, err
	}
	resp := &TransformResponse{Code: result.Code}
	if result.SourceMap != nil {
		resp.SourceMap = result.SourceMap
	}
	return resp, nil
}

func (a *API) Analyze(p AnalyzeParams) (*AnalyzeResponse, error) {
	sess, err := a.lookup(p.Project)
	if err != nil {
		return nil, err
	}
	items, err := sess.Analyze(p.FileName)
	if err != nil {
		return nil, err
	}
	out := make([]ValidationItem, len(items))
	for i, it := range items {
		out[i] = ValidationItem{
			StartLine:   it.StartLine,
			StartColumn: it.StartColumn,
			EndLine:     it.EndLine,
			EndColumn:   it.EndColumn,
			Kind:        it.Kind,
			Name:        it.Name,
			Status:      it.Status,
			TypeString:  it.TypeString,
			SkipReason:  it.SkipReason,
		}
	}
	return &AnalyzeResponse{Items: out}, nil
}

func (a *API) Release(p ReleaseParams) error {
	a.mu.Lock()
	sess, ok := a.sessions[p.Project]
	if ok {
		delete(a.sessions, p.Project)
	}
	a.mu.Unlock()

	if !ok {
		return fmt.Errorf("project not found: %s", p.Project)
	}
	return sess.Close()
}

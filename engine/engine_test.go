package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skekre98/galaxy/config"
	"github.com/skekre98/galaxy/core"
	"github.com/skekre98/galaxy/resource"
	"github.com/skekre98/galaxy/web"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func baseConfig(t *testing.T) config.Root {
	t.Helper()
	mgr, err := config.Load(context.Background(), "", "", []string{"--server.addr=127.0.0.1:0"})
	require.NoError(t, err)
	return mgr.Current()
}

func names(infos []core.ModuleInfo) []string {
	var out []string
	for _, i := range infos {
		out = append(out, i.Name)
	}
	return out
}

func TestNew_DefaultModules(t *testing.T) {
	ctx := context.Background()
	e, err := New(baseConfig(t), quiet())
	require.NoError(t, err)
	defer e.Manager.CleanupModules(ctx)

	infos := e.Manager.Modules()
	assert.Equal(t, []string{"scheduler", "memory", "resources", "web", "actuator"}, names(infos))
	assert.Equal(t, []string{"scheduler"}, infos[2].DependsOn)
	assert.Equal(t, []string{"web"}, infos[4].DependsOn)

	require.NoError(t, e.Manager.InitializeModules(ctx))
	assert.Len(t, e.Manager.Initialized(), 5)

	w := core.MustLookup[*web.Module](e.Services)
	resp, err := http.Get(fmt.Sprintf("http://%s/actuator/health", w.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_ServerDisabled(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Server.Enabled = false
	e, err := New(cfg, quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{"scheduler", "memory", "resources"}, names(e.Manager.Modules()))
}

func TestNew_BuildsInDependencyOrder(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig(t)
	cfg.Engine.Modules = []config.ModuleSpec{
		{Name: "assets", Kind: config.KindBuiltin, Type: "resources", DependsOn: []string{"jobs"}},
		{Name: "jobs", Kind: config.KindBuiltin, Type: "scheduler"},
		{Name: "heap", Kind: config.KindBuiltin, Type: "memory", Disabled: true},
	}
	e, err := New(cfg, quiet())
	require.NoError(t, err)
	defer e.Manager.CleanupModules(ctx)

	assert.Equal(t, []string{"jobs", "assets"}, names(e.Manager.Modules()))
	require.NoError(t, e.Manager.InitializeModules(ctx))

	dir := t.TempDir()
	path := filepath.Join(dir, "level.bin")
	require.NoError(t, os.WriteFile(path, []byte("tiles"), 0o644))

	res := core.MustLookup[*resource.Module](e.Services)
	done, err := res.Load(path, nil)
	require.NoError(t, err)
	require.NoError(t, <-done)
	data, ok := res.Cached(path)
	require.True(t, ok)
	assert.Equal(t, "tiles", string(data))
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		modules []config.ModuleSpec
		check   func(t *testing.T, err error)
	}{
		{
			name:    "unknown builtin",
			modules: []config.ModuleSpec{{Name: "x", Kind: config.KindBuiltin, Type: "warp-drive"}},
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrUnknownBuiltin) },
		},
		{
			name:    "missing collaborator",
			modules: []config.ModuleSpec{{Name: "assets", Kind: config.KindBuiltin, Type: "resources"}},
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, core.ErrUnknownService) },
		},
		{
			name: "cycle",
			modules: []config.ModuleSpec{
				{Name: "a", Kind: config.KindBuiltin, Type: "memory", DependsOn: []string{"b"}},
				{Name: "b", Kind: config.KindBuiltin, Type: "memory", DependsOn: []string{"a"}},
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, core.ErrCyclicDependency) },
		},
		{
			name:    "missing library",
			modules: []config.ModuleSpec{{Name: "physics", Kind: config.KindLibrary, Path: "/nonexistent/libphysics.so"}},
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, core.ErrLibraryLoad) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(t)
			cfg.Engine.Modules = tt.modules
			_, err := New(cfg, quiet())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestNew_UnlistedDependencyFailsAtInitialize(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Engine.Modules = []config.ModuleSpec{
		{Name: "heap", Kind: config.KindBuiltin, Type: "memory", DependsOn: []string{"ghost"}},
	}
	e, err := New(cfg, quiet())
	require.NoError(t, err)
	assert.ErrorIs(t, e.Manager.InitializeModules(context.Background()), core.ErrUnknownModule)
}

func TestNew_ScriptModule(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ai.lua")
	require.NoError(t, os.WriteFile(path, []byte(`
function CreateModule()
    local m = {}
    function m:initialize() galaxy.log("ai ready") end
    return m
end
`), 0o644))

	cfg := baseConfig(t)
	cfg.Engine.Modules = []config.ModuleSpec{
		{Name: "ai", Kind: config.KindScript, Path: path},
	}
	e, err := New(cfg, quiet())
	require.NoError(t, err)
	defer e.Manager.CleanupModules(ctx)

	infos := e.Manager.Modules()
	require.Len(t, infos, 1)
	assert.Equal(t, path, infos[0].Library)
	require.NoError(t, e.Manager.InitializeModules(ctx))
}

type stubLibrary struct{ path string }

func (l stubLibrary) Path() string { return l.path }
func (l stubLibrary) Close() error { return nil }
func (l stubLibrary) Factory(string) (core.Factory, error) {
	return nil, core.ErrSymbolNotFound
}

func TestLoaders_DispatchByExtension(t *testing.T) {
	var opened []string
	loader := func(tag string) core.Loader {
		return core.LoaderFunc(func(path string) (core.Library, error) {
			opened = append(opened, tag+":"+path)
			return stubLibrary{path}, nil
		})
	}
	l := Loaders(loader("native"), loader("script"))
	for _, p := range []string{"a.so", "b.lua", "C.LUA", "d.dll", "noext"} {
		_, err := l.Open(p)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"native:a.so", "script:b.lua", "script:C.LUA", "native:d.dll", "native:noext"}, opened)
}

func TestWithLoader(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Engine.Modules = []config.ModuleSpec{{Name: "p", Kind: config.KindLibrary, Path: "libp.so"}}
	fail := errors.New("no dlopen here")
	_, err := New(cfg, quiet(), WithLoader(core.LoaderFunc(func(string) (core.Library, error) {
		return nil, fail
	})))
	assert.ErrorIs(t, err, fail)
}

func TestNew_AppSettings(t *testing.T) {
	cfg := baseConfig(t)
	e, err := New(cfg, quiet(), WithCatalog(Catalog{}))
	assert.ErrorIs(t, err, ErrUnknownBuiltin)
	assert.Nil(t, e)

	cfg.Engine.Modules = []config.ModuleSpec{}
	cfg.Server.Enabled = false
	e, err = New(cfg, quiet())
	require.NoError(t, err)
	assert.Equal(t, cfg.Engine.UpdateInterval, e.App.UpdateInterval)
	assert.Equal(t, cfg.Engine.ShutdownTimeout, e.App.ShutdownTimeout)
}

func TestKnownEvents(t *testing.T) {
	cfg := baseConfig(t)
	assert.ElementsMatch(t, []string{"pause", "resume", "memory.trim", "resources.flush"}, KnownEvents(cfg))

	cfg.Observability.Metrics.Events = []string{"level.loaded"}
	assert.Contains(t, KnownEvents(cfg), "level.loaded")
}

package dynlib_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ebitengine/purego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skekre98/galaxy/core"
	"github.com/skekre98/galaxy/dynlib"
)

// moduleSource implements the galaxy_module ABI and records every call in
// a journal readable through galaxy_journal.
const moduleSource = `
#include <stdint.h>
#include <stddef.h>
#include <stdio.h>
#include <string.h>

typedef struct galaxy_module_vtable {
    int32_t (*initialize)(void *self);
    int32_t (*shutdown)(void *self);
    int32_t (*update)(void *self);
    int32_t (*on_event)(void *self, const char *event);
    int32_t (*process_task)(void *self, int32_t kind, const uint8_t *payload, size_t len);
    void    (*destroy)(void *self);
} galaxy_module_vtable;

typedef struct galaxy_module {
    const galaxy_module_vtable *vtable;
} galaxy_module;

static char journal[4096];

static void note(const char *s) {
    size_t n = strlen(journal);
    snprintf(journal + n, sizeof(journal) - n, "%s%s", n ? "," : "", s);
}

const char *galaxy_journal(void) { return journal; }

static int32_t initialize(void *self) { note("initialize"); return 0; }
static int32_t shutdown(void *self) { note("shutdown"); return 0; }
static int32_t update(void *self) { note("update"); return 0; }

static int32_t on_event(void *self, const char *event) {
    char buf[128];
    if (strcmp(event, "reject") == 0) return 7;
    snprintf(buf, sizeof buf, "event:%s", event);
    note(buf);
    return 0;
}

static int32_t process_task(void *self, int32_t kind, const uint8_t *payload, size_t len) {
    char buf[256];
    snprintf(buf, sizeof buf, "task:%d:%.*s", kind, (int)len, len ? (const char *)payload : "");
    note(buf);
    return 0;
}

static void destroy(void *self) { note("destroy"); }

static const galaxy_module_vtable vtable = {
    initialize,
    shutdown,
#ifdef WITHOUT_UPDATE
    NULL,
#else
    update,
#endif
    on_event,
    process_task,
    destroy,
};

static galaxy_module instance = { &vtable };

galaxy_module *CreateModule(void) {
    note("create");
    return &instance;
}
`

// buildModule compiles moduleSource into a shared library and returns its
// path. The test is skipped without a C compiler.
func buildModule(t *testing.T, name string, defines ...string) string {
	t.Helper()
	cc, err := exec.LookPath("cc")
	if err != nil {
		t.Skip("no C compiler available")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "module.c")
	require.NoError(t, os.WriteFile(src, []byte(moduleSource), 0o644))

	lib := filepath.Join(dir, name)
	args := []string{"-shared", "-fPIC", "-o", lib}
	for _, d := range defines {
		args = append(args, "-D"+d)
	}
	out, err := exec.Command(cc, append(args, src)...).CombinedOutput()
	require.NoError(t, err, "cc: %s", out)
	return lib
}

// journalOf keeps its own handle on the library so the journal stays
// readable after the manager releases the module.
func journalOf(t *testing.T, path string) func() []string {
	t.Helper()
	lib, err := dynlib.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Close() })

	sym, err := lib.FindSymbol("galaxy_journal")
	require.NoError(t, err)
	var journal func() string
	purego.RegisterFunc(&journal, sym)
	return func() []string {
		if s := journal(); s != "" {
			return strings.Split(s, ",")
		}
		return nil
	}
}

func TestNativeModule_ThroughManager(t *testing.T) {
	ctx := context.Background()
	path := buildModule(t, "libgood.so")
	journal := journalOf(t, path)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := core.NewManager(core.WithLogger(logger), core.WithLoader(dynlib.NewLoader(logger)))

	require.NoError(t, m.LoadModuleFromFile(path, "native"))
	assert.Equal(t, path, m.Modules()[0].Library)
	require.NoError(t, m.InitializeModules(ctx))

	assert.Equal(t, 1, m.OnEvent(ctx, "resize"))
	assert.Zero(t, m.OnEvent(ctx, "reject"), "non-zero status is a failed delivery")

	task := core.NewTask(core.KindCompute, []byte("spin"))
	require.NoError(t, m.ProcessTask(ctx, "native", task))
	require.NoError(t, m.ProcessTask(ctx, "native", core.NewTask(core.KindRenderFrame, nil)))
	assert.Equal(t, 1, m.Update(ctx))

	assert.True(t, m.UnloadModule(ctx, "native"))

	assert.Equal(t, []string{
		"create",
		"initialize",
		"event:resize",
		fmt.Sprintf("task:%d:spin", int32(core.KindCompute)),
		fmt.Sprintf("task:%d:", int32(core.KindRenderFrame)),
		"update",
		"shutdown",
		"destroy",
	}, journal())
}

func TestNativeModule_StatusFromCallback(t *testing.T) {
	ctx := context.Background()
	path := buildModule(t, "libstatus.so")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lib, err := dynlib.NewLoader(logger).Open(path)
	require.NoError(t, err)
	defer lib.Close()

	factory, err := lib.Factory(core.FactorySymbol)
	require.NoError(t, err)
	mod, err := factory()
	require.NoError(t, err)
	require.NoError(t, mod.Initialize(ctx))

	var se *dynlib.StatusError
	require.ErrorAs(t, mod.OnEvent(ctx, "reject"), &se)
	assert.Equal(t, "on_event", se.Op)
	assert.EqualValues(t, 7, se.Code)
	require.NoError(t, mod.Shutdown(ctx))
}

func TestNativeModule_IncompleteVtableIsDestroyed(t *testing.T) {
	path := buildModule(t, "libpartial.so", "WITHOUT_UPDATE")
	journal := journalOf(t, path)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := core.NewManager(core.WithLogger(logger), core.WithLoader(dynlib.NewLoader(logger)))

	err := m.LoadModuleFromFile(path, "native")
	require.ErrorIs(t, err, dynlib.ErrIncomplete)
	assert.ErrorContains(t, err, "update is null")
	assert.Empty(t, m.Modules())
	assert.Equal(t, []string{"create", "destroy"}, journal())
}

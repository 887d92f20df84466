package sink

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfob/keyfob/pkg/schema"
)

// recorder tracks the order of clipboard sets and spawns across fakes.
type recorder struct {
	events []string
}

type fakeClipboard struct {
	rec      *recorder
	contents string
	err      error
}

func (c *fakeClipboard) Set(_ context.Context, text string) error {
	if c.err != nil {
		return c.err
	}
	c.contents = text
	c.rec.events = append(c.rec.events, "clipboard:"+text)
	return nil
}

type fakeTyper struct {
	rec    *recorder
	pasted int
	err    error
}

func (t *fakeTyper) Paste(context.Context) error {
	if t.err != nil {
		return t.err
	}
	t.pasted++
	t.rec.events = append(t.rec.events, "paste")
	return nil
}

type fakeSpawner struct {
	rec   *recorder
	specs []EraseSpec
	err   error
}

func (s *fakeSpawner) Spawn(spec EraseSpec) error {
	if s.err != nil {
		return s.err
	}
	s.specs = append(s.specs, spec)
	s.rec.events = append(s.rec.events, "spawn:"+spec.Action)
	return nil
}

func testManager(t *testing.T) (*Manager, *bytes.Buffer, *fakeClipboard, *fakeTyper, *fakeSpawner, *recorder) {
	t.Helper()
	rec := &recorder{}
	out := &bytes.Buffer{}
	clip := &fakeClipboard{rec: rec}
	typer := &fakeTyper{rec: rec}
	spawner := &fakeSpawner{rec: rec}
	return NewManager(out, clip, typer, spawner, nil), out, clip, typer, spawner, rec
}

func TestDeliver_Stdout(t *testing.T) {
	m, out, _, _, spawner, _ := testManager(t)

	require.NoError(t, m.Deliver(context.Background(), "hunter2", Request{Stdout: true}))
	assert.Equal(t, "hunter2\n", out.String())
	assert.Empty(t, spawner.specs) // stdout needs no erasure
}

func TestDeliver_TempFile(t *testing.T) {
	m, _, _, _, spawner, rec := testManager(t)
	path := filepath.Join(t.TempDir(), "secret.txt")

	require.NoError(t, m.Deliver(context.Background(), "hunter2", Request{TempFile: path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.Len(t, spawner.specs, 1)
	assert.Equal(t, EraseSpec{Action: ActionFile, Target: path, Delay: TempFileEraseDelay}, spawner.specs[0])
	// Erasure is scheduled before the payload touches the sink.
	assert.Equal(t, []string{"spawn:file"}, rec.events)
}

func TestDeliver_Clipboard(t *testing.T) {
	m, _, clip, _, spawner, rec := testManager(t)

	require.NoError(t, m.Deliver(context.Background(), "hunter2", Request{Clipboard: true}))

	assert.Equal(t, "hunter2", clip.contents)
	require.Len(t, spawner.specs, 1)
	assert.Equal(t, EraseSpec{Action: ActionClipboard, Delay: ClipboardEraseDelay}, spawner.specs[0])
	assert.Equal(t, []string{"spawn:clipboard", "clipboard:hunter2"}, rec.events)
}

func TestDeliver_ClipboardWithPaste(t *testing.T) {
	m, _, clip, _, spawner, _ := testManager(t)

	require.NoError(t, m.Deliver(context.Background(), "hunter2", Request{Clipboard: true, Paste: true}))

	assert.Equal(t, "hunter2", clip.contents)
	require.Len(t, spawner.specs, 1)
	assert.Equal(t, EraseSpec{Action: ActionPaste, Delay: PasteDelay}, spawner.specs[0])
}

func TestDeliver_EmptyPayloadClearsClipboardImmediately(t *testing.T) {
	m, _, clip, _, spawner, _ := testManager(t)
	clip.contents = "stale-prior-secret"

	require.NoError(t, m.Deliver(context.Background(), "", Request{Clipboard: true}))

	assert.Equal(t, "", clip.contents)
	assert.Empty(t, spawner.specs) // cleared synchronously, nothing scheduled
}

func TestDeliver_DetachFailureIsFatalBeforeDelivery(t *testing.T) {
	m, _, clip, _, spawner, _ := testManager(t)
	spawner.err = schema.NewError(schema.ErrCodeDetachFailure, "fork refused")
	path := filepath.Join(t.TempDir(), "secret.txt")

	err := m.Deliver(context.Background(), "hunter2", Request{TempFile: path, Clipboard: true})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDetachFailure, schema.CodeOf(err))

	// The payload never reached either sink.
	assert.NoFileExists(t, path)
	assert.Empty(t, clip.contents)
}

func TestDeliver_SinkUnavailableDoesNotStopOtherSinks(t *testing.T) {
	m, out, clip, _, _, _ := testManager(t)
	clip.err = schema.NewError(schema.ErrCodeSinkUnavailable, "xclip not found")
	path := filepath.Join(t.TempDir(), "secret.txt")

	err := m.Deliver(context.Background(), "hunter2", Request{Stdout: true, TempFile: path, Clipboard: true})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeSinkUnavailable, schema.CodeOf(err))

	// stdout and tempfile still delivered.
	assert.Equal(t, "hunter2\n", out.String())
	assert.FileExists(t, path)
}

func TestRunErase_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	require.NoError(t, RunErase(EraseSpec{Action: ActionFile, Target: path}, nil, nil))
	assert.NoFileExists(t, path)

	// Already-absent target is not an error (idempotent clear).
	require.NoError(t, RunErase(EraseSpec{Action: ActionFile, Target: path}, nil, nil))
}

func TestRunErase_Clipboard(t *testing.T) {
	rec := &recorder{}
	clip := &fakeClipboard{rec: rec, contents: "hunter2"}

	require.NoError(t, RunErase(EraseSpec{Action: ActionClipboard}, clip, nil))
	assert.Equal(t, "", clip.contents)

	// Double-clear is harmless.
	require.NoError(t, RunErase(EraseSpec{Action: ActionClipboard}, clip, nil))
}

func TestRunErase_PasteThenClear(t *testing.T) {
	rec := &recorder{}
	clip := &fakeClipboard{rec: rec, contents: "hunter2"}
	typer := &fakeTyper{rec: rec}

	require.NoError(t, RunErase(EraseSpec{Action: ActionPaste}, clip, typer))
	assert.Equal(t, 1, typer.pasted)
	assert.Equal(t, "", clip.contents)
	assert.Equal(t, []string{"paste", "clipboard:"}, rec.events)
}

func TestRunErase_PasteFailureStillClears(t *testing.T) {
	rec := &recorder{}
	clip := &fakeClipboard{rec: rec, contents: "hunter2"}
	typer := &fakeTyper{rec: rec, err: schema.NewError(schema.ErrCodeSinkUnavailable, "xdotool not found")}

	err := RunErase(EraseSpec{Action: ActionPaste}, clip, typer)
	require.Error(t, err)
	assert.Equal(t, "", clip.contents)
}

func TestRunErase_UnknownAction(t *testing.T) {
	err := RunErase(EraseSpec{Action: "shred"}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeInvalidParameter, schema.CodeOf(err))
}

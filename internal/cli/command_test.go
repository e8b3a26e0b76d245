package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailmark/trailmark/internal/backup"
	"github.com/trailmark/trailmark/internal/entity"
	"github.com/trailmark/trailmark/internal/ledger"
	"github.com/trailmark/trailmark/internal/protocol"
	"github.com/trailmark/trailmark/internal/store"
)

// fakeApp wires a pipeline over a fake ledger, in-memory CAS, and a
// temp database. No closers, so one app serves several commands.
func fakeApp(t *testing.T) (*App, *ledger.Fake) {
	t.Helper()

	mappings, err := entity.Mappings()
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fake := ledger.NewFake()
	bc := backup.NewClient(backup.NewMemStore(), nil, nil)

	return &App{
		Pipeline: protocol.New(mappings, fake, bc, st, protocol.Options{}),
		Store:    st,
	}, fake
}

func fakeOpts(app *App) *RootOptions {
	return &RootOptions{
		Format: "json",
		BuildApp: func(ctx context.Context, opts *RootOptions) (*App, error) {
			return app, nil
		},
	}
}

const batchJSON = `{
	"productId": "4f8a2c10-0000-4000-8000-000000000001",
	"quantity": 120,
	"expiryDate": "2027-01-01",
	"manufacturerId": "4f8a2c10-0000-4000-8000-000000000002",
	"status": "CREATED"
}`

func TestCreateCommand(t *testing.T) {
	app, fake := fakeApp(t)
	opts := fakeOpts(app)
	id := uuid.NewString()

	cmd := NewCreateCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(batchJSON))
	cmd.SetArgs([]string{"batch", id})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	// anchored and persisted
	assert.Len(t, fake.Creates, 1)
	rec, err := app.Store.Get(context.Background(), entity.KindBatch, id)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Digest)
	assert.NotNil(t, rec.Backup)
}

func TestCreateCommandRejectsBadKind(t *testing.T) {
	app, _ := fakeApp(t)

	cmd := NewCreateCommand(fakeOpts(app))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(batchJSON))
	cmd.SetArgs([]string{"bundle", uuid.NewString()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUpdateCommand(t *testing.T) {
	app, _ := fakeApp(t)
	opts := fakeOpts(app)
	id := uuid.New()

	_, err := app.Pipeline.Create(context.Background(), entity.KindBatch, id,
		mustDecode(t, batchJSON), "test")
	require.NoError(t, err)

	cmd := NewUpdateCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(`{"status": "SHIPPED"}`))
	cmd.SetArgs([]string{"batch", id.String()})

	require.NoError(t, cmd.Execute())

	rec, err := app.Store.Get(context.Background(), entity.KindBatch, id.String())
	require.NoError(t, err)
	assert.Contains(t, string(mustMarshal(t, rec.Payload)), "SHIPPED")
}

func TestGetCommandGatesOnIntegrity(t *testing.T) {
	app, _ := fakeApp(t)
	opts := fakeOpts(app)
	id := uuid.New()

	_, err := app.Pipeline.Create(context.Background(), entity.KindBatch, id,
		mustDecode(t, batchJSON), "test")
	require.NoError(t, err)

	// clean read passes
	cmd := NewGetCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"batch", id.String()})
	require.NoError(t, cmd.Execute())

	// tamper with the stored digest: gated read now fails
	require.NoError(t, app.Store.OverwriteDigest(context.Background(), "batch", id.String(),
		"ab00000000000000000000000000000000000000000000000000000000000000"))

	cmd = NewGetCommand(opts)
	out = &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"batch", id.String()})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out.String(), ErrCodeIntegrity)

	// --no-verify skips the gate
	cmd = NewGetCommand(opts)
	out = &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"batch", id.String(), "--no-verify"})
	require.NoError(t, cmd.Execute())
}

func TestVerifyCommandFlagsTampered(t *testing.T) {
	app, fake := fakeApp(t)
	opts := fakeOpts(app)

	goodID := uuid.New()
	badID := uuid.New()
	for _, id := range []uuid.UUID{goodID, badID} {
		_, err := app.Pipeline.Create(context.Background(), entity.KindBatch, id,
			mustDecode(t, batchJSON), "test")
		require.NoError(t, err)
	}
	fake.Tamper(entity.KindBatch, badID,
		"cd00000000000000000000000000000000000000000000000000000000000000")

	cmd := NewVerifyCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"batch"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data := mustMarshal(t, resp.Data)
	assert.Contains(t, string(data), `"flagged":1`)
	assert.Contains(t, string(data), `"valid":1`)
}

func TestAuditCommandSummarizes(t *testing.T) {
	app, fake := fakeApp(t)
	opts := fakeOpts(app)

	goodID := uuid.New()
	badID := uuid.New()
	for _, id := range []uuid.UUID{goodID, badID} {
		_, err := app.Pipeline.Create(context.Background(), entity.KindBatch, id,
			mustDecode(t, batchJSON), "test")
		require.NoError(t, err)
	}
	fake.Tamper(entity.KindBatch, badID,
		"cd00000000000000000000000000000000000000000000000000000000000000")

	cmd := NewAuditCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	data := out.String()
	assert.Contains(t, data, `"valid":1`)
	assert.Contains(t, data, `"tampered":1`)
	assert.Contains(t, data, badID.String())
}

func TestVerifyCommandNoArgs(t *testing.T) {
	app, _ := fakeApp(t)

	cmd := NewVerifyCommand(fakeOpts(app))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func mustDecode(t *testing.T, s string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw map[string]any
	require.NoError(t, dec.Decode(&raw))
	return raw
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

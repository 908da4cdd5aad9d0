package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/signup-cli/api/schemas"
)

// -- Test Doubles --

type memoryFiles struct {
	data    map[string]map[string]interface{}
	loadErr error
	saveErr error
	saved   map[string]map[string]interface{}
}

func (m *memoryFiles) Load(path string) (map[string]interface{}, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.data[path], nil
}

func (m *memoryFiles) Save(path string, values map[string]interface{}) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.saved == nil {
		m.saved = make(map[string]map[string]interface{})
	}
	m.saved[path] = values
	return nil
}

type scriptedPrompter struct {
	answers []string
	asked   []string
	err     error
}

func (p *scriptedPrompter) Ask(_ context.Context, field, _ string) (string, error) {
	p.asked = append(p.asked, field)
	if p.err != nil {
		return "", p.err
	}
	if len(p.answers) == 0 {
		return "", errors.New("no scripted answer left")
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

func (p *scriptedPrompter) Confirm(context.Context, string) (bool, error) { return true, nil }

func envFrom(m map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func fullFile() map[string]interface{} {
	return map[string]interface{}{
		"first_name": "File",
		"last_name":  "Layer",
		"email":      "file@example.com",
		"company":    "FileCorp",
		"job_title":  "Data Engineer",
		"edition":    "Enterprise",
		"timeout":    30000,
	}
}

func newTestResolver(files *memoryFiles, env map[string]string, opts ...ResolverOption) *Resolver {
	base := []ResolverOption{WithFileStore(files), WithEnvLookup(envFrom(env))}
	return NewResolver(zap.NewNop(), append(base, opts...)...)
}

// -- Precedence --

func TestResolve_Precedence(t *testing.T) {
	files := &memoryFiles{data: map[string]map[string]interface{}{DefaultConfigFile: fullFile()}}
	env := map[string]string{
		"SNOWFLAKE_FIRST_NAME": "Env",
		"SNOWFLAKE_COMPANY":    "EnvCorp",
		"SNOWFLAKE_EDITION":    "Standard",
		"SNOWFLAKE_JOB_TITLE":  "",
	}
	r := newTestResolver(files, env)

	eff, err := r.Resolve(context.Background(), Request{
		Flags:  map[string]string{KeyFirstName: "Flag", KeyCloudProvider: "Google Cloud Platform"},
		Policy: FailMissing,
	})
	require.NoError(t, err)

	assert.Equal(t, "Flag", eff.Record.FirstName)
	assert.Equal(t, SourceFlag, eff.Sources[KeyFirstName])
	assert.Equal(t, "EnvCorp", eff.Record.Company)
	assert.Equal(t, SourceEnv, eff.Sources[KeyCompany])
	assert.Equal(t, schemas.EditionStandard, eff.Record.Edition)
	assert.Equal(t, "Layer", eff.Record.LastName)
	assert.Equal(t, SourceFile, eff.Sources[KeyLastName])
	// An empty environment variable does not shadow the file.
	assert.Equal(t, "Data Engineer", eff.Record.JobTitle)
	assert.Equal(t, SourceFile, eff.Sources[KeyJobTitle])
	assert.Equal(t, schemas.CloudGCP, eff.Record.CloudProvider)
	assert.Equal(t, 30*time.Second, eff.Timeout)
	assert.True(t, eff.Visible)
	assert.Equal(t, SourceDefault, eff.Sources[KeyVisible])
}

func TestResolve_FlagAlwaysWins(t *testing.T) {
	for _, key := range schemas.RequiredFields {
		t.Run(key, func(t *testing.T) {
			files := &memoryFiles{data: map[string]map[string]interface{}{DefaultConfigFile: fullFile()}}
			env := map[string]string{"SNOWFLAKE_" + strings.ToUpper(key): "from-env"}
			r := newTestResolver(files, env)

			eff, err := r.Resolve(context.Background(), Request{
				Flags:  map[string]string{key: "from-flag"},
				Policy: FailMissing,
			})
			require.NoError(t, err)
			assert.Equal(t, "from-flag", eff.Values()[key])
			assert.Equal(t, SourceFlag, eff.Sources[key])
		})
	}
}

func TestResolve_Defaults(t *testing.T) {
	r := newTestResolver(&memoryFiles{}, nil)
	eff, err := r.Resolve(context.Background(), Request{
		Flags: map[string]string{
			KeyFirstName: "A", KeyLastName: "B", KeyEmail: "a@b.com", KeyCompany: "C", KeyJobTitle: "D",
		},
		Policy: FailMissing,
	})
	require.NoError(t, err)
	assert.Equal(t, schemas.CloudAWS, eff.Record.CloudProvider)
	assert.Equal(t, schemas.EditionBusinessCritical, eff.Record.Edition)
	assert.Equal(t, DefaultTimeout, eff.Timeout)
	assert.True(t, eff.Visible)
	assert.Empty(t, eff.SavePath)
}

// -- Missing Fields --

func TestResolve_FailMissing(t *testing.T) {
	r := newTestResolver(&memoryFiles{}, map[string]string{"SNOWFLAKE_EMAIL": "x@y.io"})
	_, err := r.Resolve(context.Background(), Request{Policy: FailMissing})

	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{"first_name", "last_name", "company", "job_title"}, incomplete.Missing)
	assert.Contains(t, err.Error(), "first_name, last_name, company, job_title")
}

func TestResolve_PromptMissing(t *testing.T) {
	prompter := &scriptedPrompter{answers: []string{"", "  Ada ", "Lovelace"}}
	files := &memoryFiles{data: map[string]map[string]interface{}{DefaultConfigFile: {
		"email": "ada@example.com", "company": "Engines", "job_title": "Analyst",
	}}}
	r := newTestResolver(files, nil, WithPrompter(prompter))

	eff, err := r.Resolve(context.Background(), Request{Policy: PromptMissing})
	require.NoError(t, err)
	// The blank answer is asked again.
	assert.Equal(t, []string{"first_name", "first_name", "last_name"}, prompter.asked)
	assert.Equal(t, "Ada", eff.Record.FirstName)
	assert.Equal(t, "Lovelace", eff.Record.LastName)
	assert.Equal(t, SourcePrompt, eff.Sources[KeyFirstName])
}

func TestResolve_PromptCancelled(t *testing.T) {
	prompter := &scriptedPrompter{err: schemas.ErrCancelledByUser}
	r := newTestResolver(&memoryFiles{}, nil, WithPrompter(prompter))

	_, err := r.Resolve(context.Background(), Request{Policy: PromptMissing})
	assert.ErrorIs(t, err, schemas.ErrCancelledByUser)
}

func TestResolve_NoPrompterFallsBackToFailure(t *testing.T) {
	r := newTestResolver(&memoryFiles{}, nil)
	_, err := r.Resolve(context.Background(), Request{Policy: PromptMissing})
	var incomplete *IncompleteError
	assert.ErrorAs(t, err, &incomplete)
}

// -- File Handling --

func TestResolve_MalformedFileIsLoggedAndIgnored(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	files := &memoryFiles{loadErr: &FileError{Path: "bad.json", Err: errors.New("unexpected EOF")}}
	r := NewResolver(zap.New(core), WithFileStore(files), WithEnvLookup(envFrom(map[string]string{
		"SNOWFLAKE_FIRST_NAME": "A", "SNOWFLAKE_LAST_NAME": "B", "SNOWFLAKE_EMAIL": "a@b.com",
		"SNOWFLAKE_COMPANY": "C", "SNOWFLAKE_JOB_TITLE": "D",
	})))

	eff, err := r.Resolve(context.Background(), Request{Policy: FailMissing})
	require.NoError(t, err)
	assert.Equal(t, "A", eff.Record.FirstName)
	require.Equal(t, 1, logs.FilterMessage("Ignoring config file.").Len())
}

func TestResolve_AmbientSectionsInFileAreSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	file := fullFile()
	file["logger"] = map[string]interface{}{"level": "debug"}
	file["browser"] = map[string]interface{}{"signup_url": "https://example.com"}
	files := &memoryFiles{data: map[string]map[string]interface{}{DefaultConfigFile: file}}
	r := NewResolver(zap.New(core), WithFileStore(files), WithEnvLookup(envFrom(nil)))

	eff, err := r.Resolve(context.Background(), Request{Policy: FailMissing})
	require.NoError(t, err)
	assert.Equal(t, "Layer", eff.Record.LastName)
	assert.Equal(t, SourceFile, eff.Sources[KeyLastName])
	assert.Zero(t, logs.Len(), "nested sections must not produce warnings")
}

func TestResolveBrowser(t *testing.T) {
	t.Run("file and environment apply without record fields", func(t *testing.T) {
		files := &memoryFiles{data: map[string]map[string]interface{}{
			DefaultConfigFile: {"timeout": 30000, "visible": true},
		}}
		r := newTestResolver(files, map[string]string{"SNOWFLAKE_VISIBLE": "false"})

		eff := r.ResolveBrowser(Request{})
		assert.Equal(t, 30*time.Second, eff.Timeout)
		assert.False(t, eff.Visible)
		assert.Equal(t, SourceFile, eff.Sources[KeyTimeout])
		assert.Equal(t, SourceEnv, eff.Sources[KeyVisible])
	})

	t.Run("flags win", func(t *testing.T) {
		r := newTestResolver(&memoryFiles{}, map[string]string{"SNOWFLAKE_TIMEOUT": "5000"})
		eff := r.ResolveBrowser(Request{Flags: map[string]string{KeyTimeout: "2500", KeyVisible: "false"}})
		assert.Equal(t, 2500*time.Millisecond, eff.Timeout)
		assert.False(t, eff.Visible)
		assert.Equal(t, SourceFlag, eff.Sources[KeyTimeout])
	})

	t.Run("defaults", func(t *testing.T) {
		eff := newTestResolver(&memoryFiles{}, nil).ResolveBrowser(Request{})
		assert.Equal(t, DefaultTimeout, eff.Timeout)
		assert.True(t, eff.Visible)
		assert.Empty(t, eff.Record.FirstName)
	})
}

func TestResolve_InvalidTimeoutFallsBack(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	files := &memoryFiles{data: map[string]map[string]interface{}{DefaultConfigFile: fullFile()}}
	r := NewResolver(zap.New(core), WithFileStore(files), WithEnvLookup(envFrom(map[string]string{
		"SNOWFLAKE_TIMEOUT": "soon",
	})))

	eff, err := r.Resolve(context.Background(), Request{Policy: FailMissing})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, eff.Timeout)
	assert.Equal(t, SourceDefault, eff.Sources[KeyTimeout])
	assert.Equal(t, 1, logs.FilterMessage("Invalid timeout, using default.").Len())
}

func TestResolve_ConfigFileFromEnvironment(t *testing.T) {
	files := &memoryFiles{data: map[string]map[string]interface{}{"custom.json": fullFile()}}
	r := newTestResolver(files, map[string]string{"SNOWFLAKE_CONFIG_FILE": "custom.json"})

	eff, err := r.Resolve(context.Background(), Request{Policy: FailMissing})
	require.NoError(t, err)
	assert.Equal(t, "File", eff.Record.FirstName)

	// An explicit path beats the environment.
	assert.Equal(t, "explicit.json", r.ConfigFilePath("explicit.json"))
}

func TestResolve_Save(t *testing.T) {
	t.Run("writes merged values", func(t *testing.T) {
		files := &memoryFiles{data: map[string]map[string]interface{}{DefaultConfigFile: fullFile()}}
		r := newTestResolver(files, nil)

		eff, err := r.Resolve(context.Background(), Request{
			Flags:  map[string]string{KeyVisible: "false"},
			Save:   true,
			Policy: FailMissing,
		})
		require.NoError(t, err)
		assert.Equal(t, DefaultConfigFile, eff.SavePath)
		require.Contains(t, files.saved, DefaultConfigFile)
		saved := files.saved[DefaultConfigFile]
		assert.Equal(t, "File", saved[KeyFirstName])
		assert.Equal(t, false, saved[KeyVisible])
		assert.Equal(t, int64(30000), saved[KeyTimeout])
	})

	t.Run("failure is not fatal", func(t *testing.T) {
		files := &memoryFiles{
			data:    map[string]map[string]interface{}{DefaultConfigFile: fullFile()},
			saveErr: errors.New("read-only file system"),
		}
		r := newTestResolver(files, nil)

		eff, err := r.Resolve(context.Background(), Request{Save: true, Policy: FailMissing})
		require.NoError(t, err)
		assert.EqualError(t, eff.SaveErr, "read-only file system")
	})
}

// -- Flags --

func TestFlagOverrides(t *testing.T) {
	fs := pflag.NewFlagSet("signup", pflag.ContinueOnError)
	fs.String("first-name", "", "")
	fs.String("last-name", "", "")
	fs.String("cloud-provider", "", "")
	fs.Int("timeout", 60000, "")
	fs.Bool("headless", false, "")
	fs.Bool("save-config", false, "")

	require.NoError(t, fs.Parse([]string{"--first-name=Ada", "--cloud-provider", "GCP", "--headless", "--save-config"}))

	got := FlagOverrides(fs)
	assert.Equal(t, map[string]string{
		KeyFirstName:     "Ada",
		KeyCloudProvider: "GCP",
		KeyVisible:       "false",
	}, got)
}

// -- JSON File Store --

func TestJSONFileStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snowflake_config.json")
	store := JSONFileStore{}

	got, err := store.Load(path)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, os.WriteFile(path, []byte(`{"logger": {"level": "debug"}, "first_name": "Old"}`), 0o644))
	require.NoError(t, store.Save(path, map[string]interface{}{"first_name": "New", "timeout": 1000}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"first_name\": \"New\"")

	var doc map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(raw, &doc))
	assert.Equal(t, map[string]interface{}{"level": "debug"}, doc["logger"])

	loaded, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "New", loaded["first_name"])

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = store.Load(path)
	var fe *FileError
	assert.ErrorAs(t, err, &fe)
}

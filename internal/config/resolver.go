package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/signup-cli/api/schemas"
)

// Flat keys shared by the JSON config file, the environment
// (SNOWFLAKE_<KEY_UPPER>) and the CLI flags (dashes instead of underscores).
const (
	KeyFirstName     = "first_name"
	KeyLastName      = "last_name"
	KeyEmail         = "email"
	KeyCompany       = "company"
	KeyJobTitle      = "job_title"
	KeyCloudProvider = "cloud_provider"
	KeyEdition       = "edition"
	KeyTimeout       = "timeout"
	KeyVisible       = "visible"
)

// Keys lists every resolvable field in display order.
var Keys = []string{
	KeyFirstName, KeyLastName, KeyEmail, KeyCompany, KeyJobTitle,
	KeyCloudProvider, KeyEdition, KeyTimeout, KeyVisible,
}

// DefaultTimeout bounds every locate in the workflow except the CAPTCHA wait.
const DefaultTimeout = 60 * time.Second

var labels = map[string]string{
	KeyFirstName: "First name",
	KeyLastName:  "Last name",
	KeyEmail:     "Email",
	KeyCompany:   "Company name",
	KeyJobTitle:  "Job title",
}

// Label returns the human name of a record field.
func Label(key string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return key
}

// Source names the layer that supplied a resolved value.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
	SourcePrompt  Source = "prompt"
)

// MissingPolicy decides what happens when required fields are still empty.
type MissingPolicy int

const (
	// PromptMissing asks the operator for every missing field.
	PromptMissing MissingPolicy = iota
	// FailMissing returns an *IncompleteError.
	FailMissing
)

// Request carries the per-invocation inputs of Resolve.
type Request struct {
	// Flags holds values the operator set explicitly on the command line,
	// keyed by flag key. See FlagOverrides.
	Flags      map[string]string
	ConfigFile string
	Save       bool
	Policy     MissingPolicy
}

// EffectiveConfig is the merged configuration of one run.
type EffectiveConfig struct {
	Record   schemas.SignupRecord
	Timeout  time.Duration
	Visible  bool
	SavePath string
	Sources  map[string]Source
	// SaveErr is set when saving was requested and failed. It never fails
	// the resolution.
	SaveErr error
}

// Values flattens the configuration back into the file format.
func (e *EffectiveConfig) Values() map[string]interface{} {
	return map[string]interface{}{
		KeyFirstName:     e.Record.FirstName,
		KeyLastName:      e.Record.LastName,
		KeyEmail:         e.Record.Email,
		KeyCompany:       e.Record.Company,
		KeyJobTitle:      e.Record.JobTitle,
		KeyCloudProvider: string(e.Record.CloudProvider),
		KeyEdition:       string(e.Record.Edition),
		KeyTimeout:       e.Timeout.Milliseconds(),
		KeyVisible:       e.Visible,
	}
}

// EnvLookup has the signature of os.LookupEnv.
type EnvLookup func(key string) (string, bool)

// FileStore reads and writes the flat JSON config file.
type FileStore interface {
	// Load returns nil, nil when path does not exist.
	Load(path string) (map[string]interface{}, error)
	Save(path string, values map[string]interface{}) error
}

// Resolver merges defaults, the config file, the environment and CLI flags
// into an EffectiveConfig.
type Resolver struct {
	logger    *zap.Logger
	lookupEnv EnvLookup
	files     FileStore
	prompter  Prompter
	defaults  map[string]string
	validate  *validator.Validate
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEnvLookup replaces os.LookupEnv.
func WithEnvLookup(fn EnvLookup) ResolverOption {
	return func(r *Resolver) { r.lookupEnv = fn }
}

// WithFileStore replaces the JSON file on disk.
func WithFileStore(store FileStore) ResolverOption {
	return func(r *Resolver) { r.files = store }
}

// WithPrompter enables prompting for missing fields. Without a Prompter
// Resolve fails with *IncompleteError even under PromptMissing.
func WithPrompter(p Prompter) ResolverOption {
	return func(r *Resolver) { r.prompter = p }
}

// WithDefaults overrides individual built-in defaults.
func WithDefaults(values map[string]string) ResolverOption {
	return func(r *Resolver) {
		for k, v := range values {
			r.defaults[k] = v
		}
	}
}

// NewResolver returns a Resolver reading the real environment and files.
func NewResolver(logger *zap.Logger, opts ...ResolverOption) *Resolver {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	r := &Resolver{
		logger:    logger.Named("config"),
		lookupEnv: os.LookupEnv,
		files:     JSONFileStore{},
		defaults: map[string]string{
			KeyCloudProvider: string(schemas.DefaultCloudProvider),
			KeyEdition:       string(schemas.DefaultEdition),
			KeyTimeout:       cast.ToString(DefaultTimeout.Milliseconds()),
			KeyVisible:       "true",
		},
		validate: v,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConfigFilePath returns explicit when set, otherwise SNOWFLAKE_CONFIG_FILE,
// otherwise DefaultConfigFile.
func (r *Resolver) ConfigFilePath(explicit string) string {
	return ConfigFilePath(explicit, r.lookupEnv)
}

// ConfigFilePath is Resolver.ConfigFilePath for callers without a Resolver.
func ConfigFilePath(explicit string, lookupEnv EnvLookup) string {
	if explicit != "" {
		return explicit
	}
	if v, ok := lookupEnv(EnvPrefix + "_CONFIG_FILE"); ok && v != "" {
		return v
	}
	return DefaultConfigFile
}

// Resolve builds the EffectiveConfig for one run. Precedence, highest wins:
// explicit flag, SNOWFLAKE_<KEY> environment variable, config file, default.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*EffectiveConfig, error) {
	values, sources, path := r.merge(req)

	eff := &EffectiveConfig{Sources: sources}
	eff.Timeout = r.timeout(values, sources)
	eff.Visible = r.visible(values, sources)

	record := recordFrom(values)
	if missing := r.missing(record); len(missing) > 0 {
		if req.Policy == FailMissing || r.prompter == nil {
			return nil, &IncompleteError{Missing: missing}
		}
		for _, key := range missing {
			answer, err := r.ask(ctx, key)
			if err != nil {
				return nil, err
			}
			values[key] = answer
			sources[key] = SourcePrompt
		}
		record = recordFrom(values)
	}
	eff.Record = record.WithDefaults()

	if req.Save {
		eff.SavePath = path
		if err := r.files.Save(path, eff.Values()); err != nil {
			eff.SaveErr = err
			r.logger.Warn("Failed to save configuration.", zap.String("path", path), zap.Error(err))
		} else {
			r.logger.Info("Configuration saved.", zap.String("path", path))
		}
	}
	return eff, nil
}

// ResolveBrowser merges only the run settings, timeout and visible, through
// the same layers as Resolve. It never prompts and never saves; Policy and
// Save in req are ignored. Record fields in the result are left empty.
func (r *Resolver) ResolveBrowser(req Request) *EffectiveConfig {
	values, sources, _ := r.merge(req)
	return &EffectiveConfig{
		Timeout: r.timeout(values, sources),
		Visible: r.visible(values, sources),
		Sources: sources,
	}
}

// merge applies defaults, the config file, the environment and req.Flags,
// in that order, and returns the winning values, their sources and the
// expanded config file path.
func (r *Resolver) merge(req Request) (map[string]string, map[string]Source, string) {
	values := make(map[string]string, len(Keys))
	sources := make(map[string]Source, len(Keys))
	apply := func(layer map[string]string, src Source) {
		for _, key := range Keys {
			if v, ok := layer[key]; ok && strings.TrimSpace(v) != "" {
				values[key] = strings.TrimSpace(v)
				sources[key] = src
			}
		}
	}

	apply(r.defaults, SourceDefault)

	path := r.ConfigFilePath(req.ConfigFile)
	if expanded, err := homedir.Expand(path); err == nil {
		path = expanded
	}
	apply(r.fileLayer(path), SourceFile)
	apply(r.envLayer(), SourceEnv)
	apply(req.Flags, SourceFlag)
	return values, sources, path
}

func (r *Resolver) fileLayer(path string) map[string]string {
	raw, err := r.files.Load(path)
	if err != nil {
		var fe *FileError
		if !errors.As(err, &fe) {
			fe = &FileError{Path: path, Err: err}
		}
		r.logger.Warn("Ignoring config file.", zap.Error(fe))
		return nil
	}
	layer := make(map[string]string, len(raw))
	for key, v := range raw {
		key = strings.ToLower(key)
		// The same file carries the ambient logger/browser/batch/store sections.
		if !slices.Contains(Keys, key) {
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			r.logger.Warn("Ignoring config file value.", zap.String("key", key), zap.Error(err))
			continue
		}
		layer[key] = s
	}
	return layer
}

func (r *Resolver) envLayer() map[string]string {
	layer := make(map[string]string)
	for _, key := range Keys {
		if v, ok := r.lookupEnv(EnvPrefix + "_" + strings.ToUpper(key)); ok {
			layer[key] = v
		}
	}
	return layer
}

func (r *Resolver) timeout(values map[string]string, sources map[string]Source) time.Duration {
	ms, err := cast.ToInt64E(values[KeyTimeout])
	if err != nil || ms <= 0 {
		r.logger.Warn("Invalid timeout, using default.",
			zap.String("value", values[KeyTimeout]),
			zap.String("source", string(sources[KeyTimeout])),
			zap.Duration("default", DefaultTimeout))
		sources[KeyTimeout] = SourceDefault
		return DefaultTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

func (r *Resolver) visible(values map[string]string, sources map[string]Source) bool {
	b, err := cast.ToBoolE(values[KeyVisible])
	if err != nil {
		r.logger.Warn("Invalid visible flag, using default.",
			zap.String("value", values[KeyVisible]),
			zap.String("source", string(sources[KeyVisible])))
		sources[KeyVisible] = SourceDefault
		return true
	}
	return b
}

// missing lists empty required fields in form order.
func (r *Resolver) missing(record schemas.SignupRecord) []string {
	err := r.validate.Struct(record)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return append([]string(nil), schemas.RequiredFields...)
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field())
	}
	return out
}

func (r *Resolver) ask(ctx context.Context, key string) (string, error) {
	for {
		answer, err := r.prompter.Ask(ctx, key, Label(key))
		if err != nil {
			return "", err
		}
		if answer = strings.TrimSpace(answer); answer != "" {
			return answer, nil
		}
	}
}

func recordFrom(values map[string]string) schemas.SignupRecord {
	return schemas.SignupRecord{
		FirstName:     values[KeyFirstName],
		LastName:      values[KeyLastName],
		Email:         values[KeyEmail],
		Company:       values[KeyCompany],
		JobTitle:      values[KeyJobTitle],
		CloudProvider: schemas.ParseCloudProvider(values[KeyCloudProvider]),
		Edition:       schemas.ParseEdition(values[KeyEdition]),
	}
}

// FlagOverrides collects the flags the operator actually set. Record flags
// map "first-name" to first_name; --headless is the negation of visible.
func FlagOverrides(flags *pflag.FlagSet) map[string]string {
	out := make(map[string]string)
	flags.Visit(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		switch key {
		case "headless":
			out[KeyVisible] = cast.ToString(!cast.ToBool(f.Value.String()))
		case KeyFirstName, KeyLastName, KeyEmail, KeyCompany, KeyJobTitle,
			KeyCloudProvider, KeyEdition, KeyTimeout, KeyVisible:
			out[key] = f.Value.String()
		}
	})
	return out
}

// JSONFileStore is the FileStore backed by a flat JSON document.
type JSONFileStore struct{}

func (JSONFileStore) Load(path string) (map[string]interface{}, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return v.AllSettings(), nil
}

// Save merges values into whatever the file already holds, so nested
// ambient sections survive, and writes it back indented.
func (JSONFileStore) Save(path string, values map[string]interface{}) error {
	doc := make(map[string]interface{})
	if data, err := os.ReadFile(path); err == nil {
		if err := jsoniter.Unmarshal(data, &doc); err != nil {
			doc = make(map[string]interface{})
		}
	}
	for k, v := range values {
		doc[k] = v
	}
	data, err := jsoniter.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}

package config

// ConfigSource names the layer a value was read from. Later layers win:
// default, user, project, file, env, flag.
type ConfigSource string

const (
	SourceDefault ConfigSource = "default"
	SourceUser    ConfigSource = "user"    // ~/.hrdesk/config.yaml
	SourceProject ConfigSource = "project" // ./.hrdesk/config.yaml
	SourceFile    ConfigSource = "file"    // --config
	SourceEnv     ConfigSource = "env"     // HRDESK_*
	SourceFlag    ConfigSource = "flag"
)

// TrackedSource is a layer plus, for file layers, the file it came from.
type TrackedSource struct {
	Source ConfigSource
	Path   string
}

func (ts TrackedSource) String() string {
	if ts.Path != "" {
		return string(ts.Source) + ": " + ts.Path
	}
	return string(ts.Source)
}

// TrackedConfig is the merged configuration together with the origin of
// every value that is not a default.
type TrackedConfig struct {
	Config  *Config
	Sources map[string]TrackedSource
}

// NewTrackedConfig starts from the defaults with nothing overridden.
func NewTrackedConfig() *TrackedConfig {
	return &TrackedConfig{Config: Default(), Sources: map[string]TrackedSource{}}
}

// SetSource records that key was last set by source, read from file.
func (tc *TrackedConfig) SetSource(key string, source ConfigSource, file string) {
	tc.Sources[key] = TrackedSource{Source: source, Path: file}
}

// GetSource reports where key came from.
func (tc *TrackedConfig) GetSource(key string) TrackedSource {
	ts, ok := tc.Sources[key]
	if !ok {
		ts.Source = SourceDefault
	}
	return ts
}

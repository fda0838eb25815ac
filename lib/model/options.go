package model

// CompileOptions are the compiler settings of a compile task.
// It is a plain value: copying it copies all settings.
type CompileOptions struct {
	AdditionalParameters []string `cbor:"additional_parameters,omitempty" yaml:"additionalParameters,omitempty"`
	DebugLevel           string   `cbor:"debug_level,omitempty" yaml:"debugLevel,omitempty"`
	Encoding             string   `cbor:"encoding,omitempty" yaml:"encoding,omitempty"`
	FailOnError          bool     `cbor:"fail_on_error" yaml:"failOnError"`
	Deprecation          bool     `cbor:"deprecation" yaml:"deprecation"`
	Unchecked            bool     `cbor:"unchecked" yaml:"unchecked"`
	Optimize             bool     `cbor:"optimize" yaml:"optimize"`
	Force                bool     `cbor:"force" yaml:"force"`
	ListFiles            bool     `cbor:"list_files" yaml:"listFiles"`
	LoggingLevel         string   `cbor:"logging_level,omitempty" yaml:"loggingLevel,omitempty"`
	LoggingPhases        []string `cbor:"logging_phases,omitempty" yaml:"loggingPhases,omitempty"`
}

// DefaultCompileOptions returns the options a compile task starts with.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{
		Encoding:     "UTF-8",
		DebugLevel:   "vars",
		FailOnError:  true,
		Deprecation:  true,
		Unchecked:    true,
		LoggingLevel: "info",
	}
}

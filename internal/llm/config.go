package llm

// Config holds the model selection and sampling parameters for one call
// shape (decision or generation). Zero values mean "not set" and are not
// forwarded to the API.
type Config struct {
	Model            string   `yaml:"model"`
	APIToken         string   `yaml:"api_token"`
	BaseURL          string   `yaml:"base_url"`
	Temperature      *float32 `yaml:"temperature"`
	MaxTokens        int      `yaml:"max_tokens"`
	TopP             *float32 `yaml:"top_p"`
	FrequencyPenalty *float32 `yaml:"frequency_penalty"`
	PresencePenalty  *float32 `yaml:"presence_penalty"`
	Stop             []string `yaml:"stop"`
	N                int      `yaml:"n"`
}

// Default models mirror the service defaults: the decision call uses the
// stronger model, generation the cheaper one.
const (
	DefaultDecisionModel   = "gpt-4o"
	DefaultGenerationModel = "gpt-4o-mini"
)

// DecisionDefaults returns the default configuration for decision calls.
func DecisionDefaults() Config {
	return Config{Model: DefaultDecisionModel}
}

// GenerationDefaults returns the default configuration for generation calls.
func GenerationDefaults() Config {
	return Config{Model: DefaultGenerationModel}
}

// Clone returns a copy of the config with the given model substituted
// when non-empty.
func (c Config) Clone(model string) Config {
	out := c
	if model != "" {
		out.Model = model
	}
	return out
}

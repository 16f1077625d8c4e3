package operations

import (
	"maps"
	"time"

	"emsinv/internal/config"
)

// Config controls how the manager executes steps
type Config struct {
	StageTimeouts   map[string]time.Duration `json:"stage_timeouts"`
	DefaultTimeout  time.Duration            `json:"default_timeout"`
	RetryConfig     RetryConfig              `json:"retry_config"`
	ContinueOnError bool                     `json:"continue_on_error"`
}

// RetryConfig is an exponential backoff for retryable step failures
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewConfig returns the execution settings of the default configuration
func NewConfig() *Config {
	return ConfigFrom(config.Default().Pipeline)
}

// ConfigFrom translates the pipeline section of the application config
func ConfigFrom(p config.PipelineConfig) *Config {
	return &Config{
		StageTimeouts:  maps.Clone(p.StepTimeouts),
		DefaultTimeout: p.StepTimeout,
		RetryConfig: RetryConfig{
			MaxAttempts:  p.RetryAttempts,
			InitialDelay: p.RetryDelay,
			MaxDelay:     p.RetryMaxDelay,
			Multiplier:   2,
		},
		ContinueOnError: p.ContinueOnError,
	}
}

// NewRetryConfig returns the default backoff
func NewRetryConfig() RetryConfig {
	return NewConfig().RetryConfig
}

// GetStageTimeout returns the timeout for stageID
func (c *Config) GetStageTimeout(stageID string) time.Duration {
	if timeout := c.StageTimeouts[stageID]; timeout > 0 {
		return timeout
	}
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return config.DefaultStepTimeout
}

// SetStageTimeout overrides the timeout for stageID
func (c *Config) SetStageTimeout(stageID string, timeout time.Duration) {
	if c.StageTimeouts == nil {
		c.StageTimeouts = map[string]time.Duration{}
	}
	c.StageTimeouts[stageID] = timeout
}

// Delay returns the wait before the retry that follows attempt (1-based)
func (rc RetryConfig) Delay(attempt int) time.Duration {
	delay := rc.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * rc.Multiplier)
		if rc.MaxDelay > 0 && delay >= rc.MaxDelay {
			return rc.MaxDelay
		}
	}
	return delay
}

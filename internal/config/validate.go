package config

import (
	"fmt"
)

func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Receiver.Validate(); err != nil {
		return fmt.Errorf("receiver config: %w", err)
	}

	if err := c.Sender.Validate(); err != nil {
		return fmt.Errorf("sender config: %w", err)
	}

	if err := c.Sink.Redis.Validate(); err != nil {
		return fmt.Errorf("redis sink config: %w", err)
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output == "" {
		return fmt.Errorf("log output cannot be empty")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", m.Port)
		}

		if m.Path == "" {
			return fmt.Errorf("metrics path cannot be empty")
		}
	}

	return nil
}

func (r *ReceiverConfig) Validate() error {
	if r.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	if r.ReportEvery == 0 {
		return fmt.Errorf("report_every must be positive")
	}

	if r.ReadBufferSize < 0 {
		return fmt.Errorf("read_buffer_size cannot be negative")
	}

	if r.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	if r.RestartThreshold == 0 {
		return fmt.Errorf("restart_threshold must be positive")
	}

	return nil
}

func (s *SenderConfig) Validate() error {
	if s.ControlTOS < 0 || s.ControlTOS > 255 {
		return fmt.Errorf("control_tos must fit in one byte: %d", s.ControlTOS)
	}

	if s.LoggingTOS < 0 || s.LoggingTOS > 255 {
		return fmt.Errorf("logging_tos must fit in one byte: %d", s.LoggingTOS)
	}

	if s.WriteBufferSize < 0 {
		return fmt.Errorf("write_buffer_size cannot be negative")
	}

	return nil
}

func (r *RedisSinkConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	if r.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid Redis database number: %d", r.DB)
	}

	if r.Stream == "" {
		return fmt.Errorf("stream name cannot be empty")
	}

	if r.MaxLen < 0 {
		return fmt.Errorf("max_len cannot be negative")
	}

	return nil
}

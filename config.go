// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"time"

	"github.com/geckoboard/honeytrace/trace/tracer"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// DefaultWriteKey is used when no API key is given.
// When a collector such as Refinery aggregates events and sends them with its own key,
// services need no key of their own, but the exporter still wants a non-empty one.
const DefaultWriteKey = "apikey-placeholder"

// DefaultAPIHost is where events are sent unless told otherwise.
const DefaultAPIHost = "https://api.honeycomb.io:443"

// Config tells how events are sent.
// Fields can be loaded from HONEYCOMB_ prefixed environment variables, see LoadConfig.
type Config struct {
	APIKey         string `envconfig:"API_KEY"`
	APIHost        string `envconfig:"API_HOST"`
	TracingDataset string `envconfig:"TRACING_DATASET" validate:"required_unless=Mock true"`
	// DesiredSampleRate N keeps one in N traces. Zero means 1.
	DesiredSampleRate uint `envconfig:"SAMPLE_RATE" default:"1"`
	// GlobalMetadata is added to every event.
	GlobalMetadata map[string]string `envconfig:"GLOBAL_METADATA"`
	// Protocol is the OTLP protocol, "grpc" or "http/protobuf".
	Protocol string `envconfig:"OTLP_PROTOCOL" default:"grpc" validate:"omitempty,oneof=grpc http/protobuf"`
	// Propagators are the trace headers set on outgoing requests. Honeycomb header only if empty.
	Propagators []string `envconfig:"PROPAGATORS" default:"honeycomb" validate:"dive,oneof=honeycomb tracecontext b3 b3multi baggage"`
	Insecure    bool     `envconfig:"INSECURE"`
	// ProcessSampleInterval is how often process memory is sampled for events. 10s if zero.
	ProcessSampleInterval time.Duration `envconfig:"PROCESS_SAMPLE_INTERVAL" default:"10s" validate:"omitempty,gte=1s"`
	// Mock sends nothing. Events are kept in memory, see Beeline.SentEvents.
	Mock bool `envconfig:"MOCK"`

	// PresendHook is called last on every event before sending.
	PresendHook tracer.PresendHook `ignored:"true"`
}

// Mock is the configuration for tests: nothing is sent over the network.
var Mock = Config{Mock: true}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig loads configuration from environment variables, e.g. HONEYCOMB_API_KEY.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("HONEYCOMB", &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to load config")
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validate.Struct(c)
}

func (c Config) writeKey() string {
	if c.APIKey == "" {
		return DefaultWriteKey
	}
	return c.APIKey
}

func (c Config) apiHost() string {
	if c.APIHost == "" {
		return DefaultAPIHost
	}
	return c.APIHost
}

func (c Config) sampleRate() int64 {
	return int64(max(c.DesiredSampleRate, 1))
}

func (c Config) sampleFraction() float64 {
	return 1 / float64(c.sampleRate())
}

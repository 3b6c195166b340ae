// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import (
	"context"
	"time"

	"github.com/geckoboard/honeytrace/trace/tracer"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Event is a span as sent to Honeycomb.
type Event = tracer.Event

// PresendHook may modify an event before it is sent.
type PresendHook = tracer.PresendHook

// FieldSampleRate carries the N of keeping one in N traces, for the backend to re-weight counts.
const FieldSampleRate = "SampleRate"

// DefaultProcess is the process type unless told otherwise.
const DefaultProcess = "http"

// Beeline is the configured tracing client.
type Beeline struct {
	provider *sdktrace.TracerProvider
	recorder *tracetest.InMemoryExporter // Mock only.
	sampler  *ProcessSampler
}

// Setup configures tracing with our standard preferences and instruments the HTTP and HTTPS modules.
//   - name is the name of the service.
//   - gitSha is the version of the service, sent as app_sha.
//   - process is the type of process, e.g. "http" (default) or "worker", sent as service.process.
//
// May be called again, e.g. on reload. The new configuration replaces the old one; modules are instrumented once.
// The previous Beeline is to be closed by the caller.
func Setup(name, gitSha string, cfg Config, process ...string) (*Beeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	proc := DefaultProcess
	if len(process) > 0 && process[0] != "" {
		proc = process[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(name), semconv.ServiceVersionKey.String(gitSha)))
	if err != nil {
		return nil, errors.Wrap(err, "error in resource.New")
	}

	propagator, err := tracer.NewPropagator(cfg.Propagators...)
	if err != nil {
		return nil, errors.Wrap(err, "invalid propagators")
	}

	b := &Beeline{}
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Mock {
		b.recorder = tracetest.NewInMemoryExporter()
		opts = append(opts, sdktrace.WithSyncer(b.recorder), sdktrace.WithSampler(sdktrace.AlwaysSample()))
	} else {
		exporter, err := tracer.NewExporter(ctx, tracer.ExporterConfig{
			Protocol: cfg.Protocol,
			Endpoint: cfg.apiHost(),
			Headers: map[string]string{
				"x-honeycomb-team":    cfg.writeKey(),
				"x-honeycomb-dataset": cfg.TracingDataset,
			},
			Insecure: cfg.Insecure,
		})
		if err != nil {
			return nil, errors.Wrap(err, "error in NewExporter")
		}

		b.sampler = NewProcessSampler(cfg.ProcessSampleInterval)
		if err := b.sampler.Start(); err != nil {
			_ = exporter.Shutdown(ctx)
			return nil, err
		}

		hooks := []PresendHook{metadataHook(gitSha, proc, cfg.sampleRate(), cfg.GlobalMetadata, b.sampler)}
		if cfg.PresendHook != nil {
			hooks = append(hooks, cfg.PresendHook)
		}
		opts = append(opts,
			sdktrace.WithBatcher(tracer.NewPresendExporter(exporter, hooks...)),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.sampleFraction()))),
		)
	}

	tracer.SetPropagator(propagator)
	b.provider = sdktrace.NewTracerProvider(opts...)
	tracer.SetTraceProvider(b.provider)
	addSpanLogHook()
	Instrument()

	log.WithFields(logrus.Fields{"service": name, "process": proc, "mock": cfg.Mock}).Info("Tracing set up")
	return b, nil
}

// metadataHook adds the fields every event carries: version, process type, sample rate,
// process statistics and global metadata.
func metadataHook(gitSha, process string, sampleRate int64, metadata map[string]string, sampler *ProcessSampler) PresendHook {
	return func(ev *Event) {
		ev.Data["app_sha"] = gitSha
		ev.Data["service.process"] = process
		ev.Data[FieldSampleRate] = sampleRate
		if sampler != nil {
			for key, value := range sampler.Snapshot() {
				ev.Data[key] = value
			}
		}
		for key, value := range metadata {
			ev.Data[key] = value
		}
	}
}

// StartTrace starts a new trace. Spans of instrumented requests made with the returned context belong to it.
func (b *Beeline) StartTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return b.provider.Tracer(name).Start(ctx, name, trace.WithNewRoot())
}

// SentEvents returns the events sent so far in mock mode, oldest first. Nil if not mock.
func (b *Beeline) SentEvents() []Event {
	if b.recorder == nil {
		return nil
	}
	spans := b.recorder.GetSpans().Snapshots()
	events := make([]Event, 0, len(spans))
	for _, span := range spans {
		events = append(events, tracer.EventFromSpan(span))
	}
	return events
}

// ResetEvents forgets the events sent so far in mock mode.
func (b *Beeline) ResetEvents() {
	if b.recorder != nil {
		b.recorder.Reset()
	}
}

// Flush sends the events queued.
func (b *Beeline) Flush(ctx context.Context) error {
	return errors.Wrap(b.provider.ForceFlush(ctx), "error in ForceFlush")
}

// Close stops process sampling and flushes the events queued.
func (b *Beeline) Close(ctx context.Context) error {
	b.sampler.stop()
	if err := b.provider.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "error in tp.Shutdown")
	}
	return nil
}

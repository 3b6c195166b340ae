// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// tracecurl sends one HTTP request within a new trace, printing the response body.
// Configuration is read from HONEYCOMB_ environment variables. With --mock, nothing is
// sent to Honeycomb and the events are printed to stderr instead.
//
//	tracecurl [--method M] [--header K:V]... [--data BODY] [--mock] URL
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/geckoboard/honeytrace"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "tracecurl",
		Usage:     "send a traced HTTP request",
		Version:   Version,
		ArgsUsage: "URL",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "method", Aliases: []string{"X"}, Value: http.MethodGet, Usage: "request method"},
			&cli.StringSliceFlag{Name: "header", Aliases: []string{"H"}, Usage: "request header as Name:Value, may be repeated"},
			&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "request body"},
			&cli.BoolFlag{Name: "mock", Usage: "print events instead of sending them"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "request timeout"},
		},
		Action: run,
		// Exit codes are set by main.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("exactly one URL expected", 2)
	}
	target, err := url.Parse(cmd.Args().First())
	if err != nil {
		return cli.Exit(err, 2)
	}
	mod := honeytrace.ModuleFor(strings.ToLower(target.Scheme))
	if mod == nil {
		return cli.Exit(fmt.Sprintf("unsupported scheme %q", target.Scheme), 2)
	}

	headers, err := parseHeaders(cmd.StringSlice("header"))
	if err != nil {
		return cli.Exit(err, 2)
	}

	cfg := honeytrace.Mock
	if !cmd.Bool("mock") {
		if cfg, err = honeytrace.LoadConfig(); err != nil {
			return err
		}
	}
	beeline, err := honeytrace.Setup("tracecurl", Version, cfg, "cli")
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := beeline.Close(closeCtx); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()
	ctx, root := beeline.StartTrace(ctx, "tracecurl")

	opts := honeytrace.Options{Method: cmd.String("method"), Header: headers}
	if data := cmd.String("data"); data != "" {
		opts.Body = strings.NewReader(data)
	}
	resp, err := mod.Request(ctx, target, opts)
	if err != nil {
		root.End()
		return errors.Wrap(err, "request failed")
	}
	_, err = io.Copy(writerOr(cmd.Root().Writer, os.Stdout), resp.Body)
	_ = resp.Body.Close()
	root.End()
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if cfg.Mock {
		enc := json.NewEncoder(writerOr(cmd.Root().ErrWriter, os.Stderr))
		enc.SetIndent("", "  ")
		for _, ev := range beeline.SentEvents() {
			if err := enc.Encode(ev.Data); err != nil {
				return err
			}
		}
	}
	return nil
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}

func parseHeaders(values []string) (http.Header, error) {
	headers := http.Header{}
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("bad header %q, expected Name:Value", v)
		}
		headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return headers, nil
}

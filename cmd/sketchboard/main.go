/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"sketchboard/internal/config"
	"sketchboard/internal/crash"
	applog "sketchboard/internal/log"
	"sketchboard/internal/telemetry"
	"sketchboard/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `Sketchboard %s

Usage:
  sketchboard version                                      Show version
  sketchboard init <root> <project>                        Create an empty canvas
  sketchboard info <root> <project>                        Summarize a canvas
  sketchboard add-rect <root> <project> <x> <y> <w> <h>    Add a rectangle
  sketchboard add-circle <root> <project> <cx> <cy> <r>    Add a circle
  sketchboard add-line <root> <project> <x1> <y1> <x2> <y2> [x y...]
                                                           Add a polyline
  sketchboard draw <root> <project> <x1> <y1> <x2> <y2> [x y...]
                                                           Add a freehand stroke
  sketchboard add-text <root> <project> <x> <y> <w> <h> <text...>
                                                           Add a text box
  sketchboard add-image <root> <project> <src> <w> <h> [ref-id...]
                                                           Place an image next to references
  sketchboard move <root> <project> <id> <dx> <dy>         Move a shape, snapping to neighbours
  sketchboard connect <root> <project> <from-id> <to-id>   Add an arrow between two shapes
  sketchboard export <root> <project> <out.png|svg|pdf> [scale]
                                                           Export the canvas content
  sketchboard batch <root> <project> <web|retina|print> <out-dir>
                                                           Export with a preset
  sketchboard search <root> <project> <query>              Full-text search over shapes
  sketchboard links <root> <project> <id>                  List arrows attached to a shape
  sketchboard snapshots <root> <project>                   List autosave snapshots (sqlite, postgres)
  sketchboard restore <root> <project> [n]                 Restore the n-th newest snapshot
  sketchboard style <root> <project> <preset> <id...>      Apply a style preset to shapes
  sketchboard styles <root>                                List style presets
  sketchboard pack <export|install> <root> <zip>           Share style presets as a zip
  sketchboard undo-demo                                    Walk through undo and redo in memory

<root> is a directory for the file and sqlite drivers; the postgres driver
ignores it and uses storage.dsn.
`, version.String())
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code: 0 on
// success, 1 on failure, 2 on bad usage.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Writer:    stderr,
	})
	defer func() { _ = applog.Close() }()
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", cfgErr))
	}

	target := &crash.Target{}
	defer crash.Recover(target)

	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	cmd := args[0]
	l.Debug("start", slog.String("cmd", cmd), slog.Int("args", len(args)-1))
	telemetry.Track("command", map[string]any{"name": cmd})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		telemetry.Default().Flush(ctx)
	}()

	a := &app{cfg: cfg, out: stdout, log: l, target: target}
	var err error
	switch cmd {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(stdout, version.String())
		return 0
	case "help", "--help", "-h":
		usage(stdout)
		return 0
	case "undo-demo":
		err = a.undoDemo()
	default:
		c, ok := commands[cmd]
		if !ok {
			_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
			usage(stderr)
			return 2
		}
		rest := args[1:]
		if len(rest) < c.minArgs {
			_, _ = fmt.Fprintf(stderr, "%s requires %s\n", cmd, c.args)
			return 2
		}
		err = c.run(a, rest)
	}
	if err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			_, _ = fmt.Fprintln(stderr, ue.Error())
			return 2
		}
		l.Error("command failed", slog.String("cmd", cmd), slog.Any("err", err))
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

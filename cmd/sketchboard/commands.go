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
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"sketchboard/internal/canvas"
	"sketchboard/internal/config"
	"sketchboard/internal/crash"
	"sketchboard/internal/export"
	"sketchboard/internal/render"
	"sketchboard/internal/shape"
	"sketchboard/internal/storage"
	"sketchboard/internal/stylepack"
	"sketchboard/internal/telemetry"
	"sketchboard/internal/textlayout"
	"sketchboard/internal/vector"
)

type usageError string

func (e usageError) Error() string { return string(e) }

type command struct {
	args    string
	minArgs int
	run     func(a *app, args []string) error
}

var commands = map[string]command{
	"init":       {"<root> <project>", 2, (*app).cmdInit},
	"info":       {"<root> <project>", 2, (*app).cmdInfo},
	"add-rect":   {"<root> <project> <x> <y> <w> <h>", 6, (*app).cmdAddRect},
	"add-circle": {"<root> <project> <cx> <cy> <r>", 5, (*app).cmdAddCircle},
	"add-line":   {"<root> <project> <x1> <y1> <x2> <y2> [x y...]", 6, (*app).cmdAddLine},
	"draw":       {"<root> <project> <x1> <y1> <x2> <y2> [x y...]", 6, (*app).cmdDraw},
	"add-text":   {"<root> <project> <x> <y> <w> <h> <text...>", 7, (*app).cmdAddText},
	"add-image":  {"<root> <project> <src> <w> <h> [ref-id...]", 5, (*app).cmdAddImage},
	"move":       {"<root> <project> <id> <dx> <dy>", 5, (*app).cmdMove},
	"connect":    {"<root> <project> <from-id> <to-id>", 4, (*app).cmdConnect},
	"export":     {"<root> <project> <out.png|svg|pdf> [scale]", 3, (*app).cmdExport},
	"batch":      {"<root> <project> <preset> <out-dir>", 4, (*app).cmdBatch},
	"search":     {"<root> <project> <query>", 3, (*app).cmdSearch},
	"links":      {"<root> <project> <id>", 3, (*app).cmdLinks},
	"snapshots":  {"<root> <project>", 2, (*app).cmdSnapshots},
	"restore":    {"<root> <project> [n]", 2, (*app).cmdRestore},
	"style":      {"<root> <project> <preset> <id...>", 4, (*app).cmdStyle},
	"styles":     {"<root>", 1, (*app).cmdStyles},
	"pack":       {"<export|install> <root> <zip>", 3, (*app).cmdPack},
}

type app struct {
	cfg    config.AppConfig
	out    io.Writer
	log    *slog.Logger
	target *crash.Target
	fonts  textlayout.Provider
	images *render.ImageCache
}

func (a *app) printf(format string, args ...any) { _, _ = fmt.Fprintf(a.out, format, args...) }

// provider loads the bundled font plus the configured override once.
func (a *app) provider() textlayout.Provider {
	if a.fonts != nil {
		return a.fonts
	}
	lib := textlayout.DefaultLibrary()
	if p := a.cfg.Render.FontPath; p != "" {
		if err := lib.LoadTTF(textlayout.DefaultFamily, 400, false, p); err != nil {
			a.log.Warn("font not loaded, using bundled face", slog.String("path", p), slog.Any("err", err))
		}
	}
	ot := textlayout.NewOTProvider(lib)
	if a.cfg.Render.DPI > 0 {
		ot.DPI = a.cfg.Render.DPI
	}
	a.fonts = ot
	return a.fonts
}

// imageCache resolves relative image sources against root.
func (a *app) imageCache(root string) *render.ImageCache {
	if a.images == nil {
		a.images = render.NewImageCache(render.FileLoader{Root: root}, nil)
	}
	return a.images
}

func (a *app) newEngine(root string) *canvas.Engine {
	c := a.cfg.Canvas
	return canvas.New(canvas.Options{
		MinSize:      c.MinSize,
		HandlePx:     c.HandlePx,
		HitTolerance: c.HitTolerance,
		HistoryDepth: c.HistoryDepth,
		SnapPx:       c.SnapPx,
		Placement:    a.cfg.Placement.Planner(),
		Layouter:     textlayout.NewCharWrap(a.provider()),
		Images:       a.imageCache(root),
	})
}

func (a *app) background() vector.Color {
	c, err := vector.ParseHex(a.cfg.Render.Background)
	if err != nil {
		a.log.Warn("invalid background color, using white", slog.String("value", a.cfg.Render.Background))
		return vector.White
	}
	return c
}

// session is one open canvas with the store it came from.
type session struct {
	store   storage.Store
	engine  *canvas.Engine
	root    string
	project string
	loaded  bool
	keep    int // autosave snapshots to retain; 0 disables them
	log     *slog.Logger
}

// open loads project from the configured store. With mustExist false a
// missing canvas yields an empty engine.
func (a *app) open(ctx context.Context, root, project string, mustExist bool) (*session, error) {
	st, err := storage.Open(ctx, a.cfg.Storage, root)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s := &session{
		store:   st,
		engine:  a.newEngine(root),
		root:    root,
		project: project,
		keep:    a.cfg.Storage.KeepSnapshots,
		log:     a.log,
	}
	data, err := st.Load(ctx, project)
	switch {
	case errors.Is(err, storage.ErrNotFound) && !mustExist:
	case errors.Is(err, storage.ErrNotFound):
		_ = st.Close()
		return nil, fmt.Errorf("project %q not found (run init first)", project)
	case err != nil:
		_ = st.Close()
		return nil, fmt.Errorf("load %s: %w", project, err)
	default:
		if err := s.engine.Deserialize(data); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("load %s: %w", project, err)
		}
		s.loaded = true
	}
	a.target.Dir = filepath.Join(root, project)
	a.target.Snapshot = s.engine.Serialize
	return s, nil
}

func (s *session) save(ctx context.Context) error {
	data, err := s.engine.Serialize()
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	if err := s.store.Save(ctx, s.project, data); err != nil {
		return fmt.Errorf("save %s: %w", s.project, err)
	}
	s.autosave(ctx, data)
	return nil
}

// autosave appends data to the store's snapshot history when it keeps one.
// Failures are logged; the canvas itself is already saved.
func (s *session) autosave(ctx context.Context, data []byte) {
	sn, ok := s.store.(storage.Snapshotter)
	if !ok || s.keep <= 0 {
		return
	}
	if err := sn.SaveSnapshot(ctx, s.project, data, time.Now()); err != nil {
		s.log.Warn("autosave failed", slog.String("project", s.project), slog.Any("err", err))
		return
	}
	if _, err := sn.PruneOldSnapshots(ctx, s.project, s.keep); err != nil {
		s.log.Warn("snapshot prune failed", slog.String("project", s.project), slog.Any("err", err))
	}
}

func (s *session) close() { _ = s.store.Close() }

func parseFloats(names []string, vals []string) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, usageError(fmt.Sprintf("%s must be a number, got %q", names[i], v))
		}
		out[i] = f
	}
	return out, nil
}

func (a *app) cmdInit(args []string) error {
	ctx := context.Background()
	s, err := a.open(ctx, args[0], args[1], false)
	if err != nil {
		return err
	}
	defer s.close()
	if s.loaded {
		return fmt.Errorf("project %q already exists", args[1])
	}
	if err := s.save(ctx); err != nil {
		return err
	}
	a.log.Info("canvas created", slog.String("project", args[1]), slog.String("driver", a.cfg.Storage.Driver))
	a.printf("Created canvas %s\n", args[1])
	return nil
}

func (a *app) cmdInfo(args []string) error {
	s, err := a.open(context.Background(), args[0], args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	e := s.engine
	kinds := map[shape.Kind]int{}
	var hidden, locked int
	for _, sh := range e.Shapes() {
		kinds[sh.Kind()]++
		if !sh.Common().Visible {
			hidden++
		}
		if sh.Common().Locked {
			locked++
		}
	}
	a.printf("Project: %s\n", args[1])
	a.printf("Shapes: %d (hidden %d, locked %d)\n", e.Len(), hidden, locked)
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, string(k))
	}
	sort.Strings(names)
	for _, k := range names {
		a.printf("  %s: %d\n", k, kinds[shape.Kind(k)])
	}
	if b, ok := shape.UnionBounds(e.Shapes()); ok {
		a.printf("Bounds: %.0f,%.0f %.0fx%.0f\n", b.X, b.Y, b.W, b.H)
	}
	vp := e.Viewport()
	a.printf("Viewport: offset %.0f,%.0f zoom %.2f\n", vp.X, vp.Y, vp.Zoom)
	if d := e.DanglingConnectors(); len(d) > 0 {
		a.printf("Dangling connectors: %s\n", strings.Join(d, ", "))
	}
	return nil
}

func (a *app) addShape(args []string, sh shape.Shape) error {
	ctx := context.Background()
	s, err := a.open(ctx, args[0], args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	id := s.engine.Add(sh)
	if err := s.save(ctx); err != nil {
		return err
	}
	a.printf("%s\n", id)
	return nil
}

func (a *app) cmdAddRect(args []string) error {
	v, err := parseFloats([]string{"x", "y", "w", "h"}, args[2:6])
	if err != nil {
		return err
	}
	return a.addShape(args, shape.NewRectangle(v[0], v[1], v[2], v[3]))
}

func (a *app) cmdAddCircle(args []string) error {
	v, err := parseFloats([]string{"cx", "cy", "r"}, args[2:5])
	if err != nil {
		return err
	}
	if v[2] <= 0 {
		return usageError("radius must be positive")
	}
	return a.addShape(args, shape.NewCircle(v[0], v[1], v[2]))
}

// parsePoints reads x y pairs.
func parsePoints(vals []string) ([]vector.Pt, error) {
	if len(vals)%2 != 0 {
		return nil, usageError("points need x and y values")
	}
	names := make([]string, len(vals))
	for i := range names {
		names[i] = fmt.Sprintf("%c%d", "xy"[i%2], i/2+1)
	}
	v, err := parseFloats(names, vals)
	if err != nil {
		return nil, err
	}
	pts := make([]vector.Pt, 0, len(v)/2)
	for i := 0; i < len(v); i += 2 {
		pts = append(pts, vector.Pt{X: v[i], Y: v[i+1]})
	}
	return pts, nil
}

func (a *app) cmdAddLine(args []string) error {
	pts, err := parsePoints(args[2:])
	if err != nil {
		return err
	}
	return a.addShape(args, shape.NewLine(pts...))
}

// cmdDraw adds a freehand stroke through the given points.
func (a *app) cmdDraw(args []string) error {
	pts, err := parsePoints(args[2:])
	if err != nil {
		return err
	}
	return a.addShape(args, shape.NewFreehand(pts...))
}

func (a *app) cmdAddText(args []string) error {
	v, err := parseFloats([]string{"x", "y", "w", "h"}, args[2:6])
	if err != nil {
		return err
	}
	return a.addShape(args, shape.NewText(v[0], v[1], v[2], v[3], strings.Join(args[6:], " ")))
}

// cmdMove drags one shape by dx,dy, snapping to its neighbours when
// canvas.snap_px is set.
func (a *app) cmdMove(args []string) error {
	v, err := parseFloats([]string{"dx", "dy"}, args[3:5])
	if err != nil {
		return err
	}
	ctx := context.Background()
	s, err := a.open(ctx, args[0], args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	id := args[2]
	sh, ok := s.engine.Get(id)
	if !ok {
		return fmt.Errorf("shape %q not found", id)
	}
	from := shape.Bounds(sh).Center()
	s.engine.Select(id, false)
	if !s.engine.BeginMove(from) {
		return fmt.Errorf("shape %s is locked", id)
	}
	s.engine.DragTo(from.Add(vector.Pt{X: v[0], Y: v[1]}))
	guides := s.engine.Guides()
	s.engine.EndGesture()
	s.engine.ClearSelection()
	if err := s.save(ctx); err != nil {
		return err
	}
	sh, _ = s.engine.Get(id)
	p := shape.Position(sh)
	a.printf("%s moved to %.0f,%.0f\n", id, p.X, p.Y)
	for _, g := range guides {
		axis := "y"
		if g.Vertical {
			axis = "x"
		}
		a.printf("  snapped %s to %s=%.0f\n", g.Kind, axis, g.Position)
	}
	return nil
}

func (a *app) cmdAddImage(args []string) error {
	v, err := parseFloats([]string{"w", "h"}, args[3:5])
	if err != nil {
		return err
	}
	if v[0] <= 0 || v[1] <= 0 {
		return usageError("image size must be positive")
	}
	ctx := context.Background()
	s, err := a.open(ctx, args[0], args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	id, pl := s.engine.InsertGenerated(canvas.Asset{Src: args[2], W: v[0], H: v[1]}, args[5:])
	if err := s.save(ctx); err != nil {
		return err
	}
	a.printf("%s placed at %.0f,%.0f (%s)\n", id, pl.Pos.X, pl.Pos.Y, pl.Strategy)
	return nil
}

func (a *app) cmdConnect(args []string) error {
	ctx := context.Background()
	s, err := a.open(ctx, args[0], args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	from, to := args[2], args[3]
	for _, id := range []string{from, to} {
		if _, ok := s.engine.Get(id); !ok {
			return fmt.Errorf("shape %q not found", id)
		}
	}
	// parallel arrows between the same pair fan out by index
	index := 0
	for _, sh := range s.engine.Shapes() {
		if ar, ok := sh.(*shape.Arrow); ok && ar.SourceID == from && ar.TargetID == to {
			index++
		}
	}
	arrow := shape.NewArrow(vector.Pt{}, vector.Pt{X: 1, Y: 1})
	arrow.SourceID, arrow.TargetID, arrow.Index = from, to, index
	id := s.engine.Add(arrow)
	s.engine.ResolveConnector(id)
	if err := s.save(ctx); err != nil {
		return err
	}
	a.printf("%s\n", id)
	return nil
}

func (a *app) cmdExport(args []string) error {
	out := args[2]
	scale := a.cfg.Render.DevicePixelRatio
	if len(args) > 3 {
		v, err := parseFloats([]string{"scale"}, args[3:4])
		if err != nil {
			return err
		}
		scale = v[0]
	}
	s, err := a.open(context.Background(), args[0], args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	bg := a.background()
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
	switch format {
	case "png":
		err = export.PNG(s.engine, out, export.PNGOptions{Scale: scale, Background: &bg, Images: a.images, Fonts: a.provider()})
	case "svg":
		err = export.SVGFile(s.engine, out, export.SVGOptions{Background: &bg, Images: a.images, Fonts: a.provider()})
	case "pdf":
		err = export.PDFFile(s.engine, out, export.PDFOptions{Title: args[1], Background: &bg, Images: a.images})
	default:
		return usageError(fmt.Sprintf("unsupported export format %q (want png, svg or pdf)", filepath.Ext(out)))
	}
	if err != nil {
		return err
	}
	telemetry.Track("export", map[string]any{"format": format, "shapes": s.engine.Len()})
	a.printf("Wrote %s\n", out)
	return nil
}

func (a *app) cmdBatch(args []string) error {
	s, err := a.open(context.Background(), args[0], args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	paths, err := export.Batch(s.engine, export.BatchOptions{
		Preset: export.PresetName(args[2]),
		OutDir: args[3],
		Name:   args[1],
		Images: a.images,
	})
	for _, p := range paths {
		a.printf("Wrote %s\n", p)
	}
	return err
}

// searcher returns the shape index of s. The file store has none, so its
// canvas is mirrored into <root>/.skb/index.sqlite first.
func (a *app) searcher(ctx context.Context, s *session) (storage.Searcher, func(), error) {
	if idx, ok := s.store.(storage.Searcher); ok {
		return idx, func() {}, nil
	}
	lite, err := storage.OpenSQLite(s.root)
	if err != nil {
		return nil, nil, fmt.Errorf("open index: %w", err)
	}
	if err := (&session{store: lite, engine: s.engine, project: s.project}).save(ctx); err != nil {
		_ = lite.Close()
		return nil, nil, err
	}
	return lite, func() { _ = lite.Close() }, nil
}

func (a *app) cmdSearch(args []string) error {
	ctx := context.Background()
	s, err := a.open(ctx, args[0], args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	idx, done, err := a.searcher(ctx, s)
	if err != nil {
		return err
	}
	defer done()
	res, err := idx.Search(ctx, storage.SearchQuery{ProjectID: args[1], Text: strings.Join(args[2:], " "), Limit: 20})
	if err != nil {
		return err
	}
	if len(res) == 0 {
		a.printf("No matches\n")
		return nil
	}
	for _, r := range res {
		a.printf("%s %-9s z=%d at %.0f,%.0f  %s\n", r.ShapeID, r.Kind, r.Z, r.X, r.Y, r.Snippet)
	}
	return nil
}

// cmdLinks lists the arrows attached to a shape.
func (a *app) cmdLinks(args []string) error {
	ctx := context.Background()
	s, err := a.open(ctx, args[0], args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	if _, ok := s.engine.Get(args[2]); !ok {
		return fmt.Errorf("shape %q not found", args[2])
	}
	idx, done, err := a.searcher(ctx, s)
	if err != nil {
		return err
	}
	defer done()
	ids, err := idx.ConnectorsOf(ctx, args[1], args[2])
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		a.printf("No connectors\n")
		return nil
	}
	for _, id := range ids {
		a.printf("%s\n", id)
	}
	return nil
}

func (a *app) snapshotter(s *session) (storage.Snapshotter, error) {
	sn, ok := s.store.(storage.Snapshotter)
	if !ok {
		return nil, usageError("snapshots need the sqlite or postgres storage driver")
	}
	return sn, nil
}

func (a *app) cmdSnapshots(args []string) error {
	ctx := context.Background()
	s, err := a.open(ctx, args[0], args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	sn, err := a.snapshotter(s)
	if err != nil {
		return err
	}
	list, err := sn.ListSnapshots(ctx, args[1], a.cfg.Storage.KeepSnapshots)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.printf("No snapshots\n")
		return nil
	}
	for i, snap := range list {
		n := "?"
		if shapes, err := canvas.DecodeShapes(snap.Payload); err == nil {
			n = strconv.Itoa(len(shapes))
		}
		a.printf("%2d  %s  %s shapes\n", i+1, snap.TS.Local().Format(time.DateTime), n)
	}
	return nil
}

// cmdRestore replaces the canvas with the n-th newest snapshot (default 1).
func (a *app) cmdRestore(args []string) error {
	n := 1
	if len(args) > 2 {
		v, err := strconv.Atoi(args[2])
		if err != nil || v < 1 {
			return usageError("snapshot number must be a positive integer")
		}
		n = v
	}
	ctx := context.Background()
	s, err := a.open(ctx, args[0], args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	sn, err := a.snapshotter(s)
	if err != nil {
		return err
	}
	var snap storage.Snapshot
	if n == 1 {
		snap, err = sn.LatestSnapshot(ctx, args[1])
		if err != nil {
			return err
		}
	} else {
		list, err := sn.ListSnapshots(ctx, args[1], n)
		if err != nil {
			return err
		}
		if len(list) < n {
			return fmt.Errorf("only %d snapshot(s) for %s", len(list), args[1])
		}
		snap = list[n-1]
	}
	if err := s.engine.Deserialize(snap.Payload); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if err := s.save(ctx); err != nil {
		return err
	}
	a.printf("Restored snapshot from %s (%d shapes)\n", snap.TS.Local().Format(time.DateTime), s.engine.Len())
	return nil
}

// cmdStyle applies a preset to each listed shape, one undo step per shape.
func (a *app) cmdStyle(args []string) error {
	lib, err := stylepack.Load(args[0])
	if err != nil {
		return err
	}
	preset, err := lib.Get(args[2])
	if err != nil {
		return usageError(err.Error())
	}
	ctx := context.Background()
	s, err := a.open(ctx, args[0], args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	var applyErr error
	for _, id := range args[3:] {
		ok := s.engine.Update(id, func(sh shape.Shape) {
			if err := preset.Apply(&sh.Common().Style); err != nil && applyErr == nil {
				applyErr = err
			}
		}, true)
		if !ok {
			return fmt.Errorf("shape %q not found", id)
		}
		if applyErr != nil {
			return applyErr
		}
	}
	if err := s.save(ctx); err != nil {
		return err
	}
	a.printf("Applied %s to %d shape(s)\n", preset.Name, len(args)-3)
	return nil
}

func (a *app) cmdStyles(args []string) error {
	lib, err := stylepack.Load(args[0])
	if err != nil {
		return err
	}
	for _, n := range lib.Names() {
		a.printf("%s\n", n)
	}
	return nil
}

func (a *app) cmdPack(args []string) error {
	switch args[0] {
	case "export":
		if err := stylepack.ExportPack(args[1], args[2]); err != nil {
			return err
		}
		a.printf("Style pack written to %s\n", args[2])
	case "install":
		n, err := stylepack.InstallPack(args[1], args[2])
		if err != nil {
			return err
		}
		a.printf("Installed %d file(s)\n", n)
	default:
		return usageError("pack: want export or install, got " + args[0])
	}
	return nil
}

// undoDemo exercises the history on an in-memory canvas.
func (a *app) undoDemo() error {
	e := a.newEngine(".")
	id := e.Add(shape.NewRectangle(0, 0, 100, 60))
	pos := func() string {
		sh, _ := e.Get(id)
		p := shape.Position(sh)
		return fmt.Sprintf("%.0f,%.0f", p.X, p.Y)
	}
	a.printf("added rectangle at %s\n", pos())
	for _, d := range []vector.Pt{{X: 40, Y: 0}, {X: 0, Y: 30}} {
		e.Update(id, func(sh shape.Shape) { shape.Translate(sh, d) }, true)
		a.printf("moved to %s\n", pos())
	}
	for e.CanUndo() {
		e.Undo()
		if _, ok := e.Get(id); !ok {
			a.printf("undo: rectangle removed\n")
			continue
		}
		a.printf("undo: %s\n", pos())
	}
	for e.CanRedo() {
		e.Redo()
		a.printf("redo: %s\n", pos())
	}
	u, r := e.HistoryDepth()
	a.printf("history: %d undo, %d redo\n", u, r)
	return nil
}

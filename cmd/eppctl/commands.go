package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/apex/log"

	"github.com/alejor21/trabajo-final-IA/internal/client"
	"github.com/alejor21/trabajo-final-IA/internal/config"
	"github.com/alejor21/trabajo-final-IA/internal/database"
	"github.com/alejor21/trabajo-final-IA/internal/models"
	"github.com/alejor21/trabajo-final-IA/internal/session"
	"github.com/alejor21/trabajo-final-IA/internal/storage"
)

type cli struct {
	cfg    *config.Config
	out    io.Writer
	client *client.Client
}

func newCLI(cfg *config.Config, out io.Writer) *cli {
	return &cli{
		cfg: cfg,
		out: out,
		client: client.NewClient(cfg.BackendURL,
			client.WithTimeout(cfg.HTTPTimeout),
			client.WithRateLimit(cfg.RateLimit),
		),
	}
}

func (c *cli) image(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("image", flag.ContinueOnError)
	save := fs.Bool("save", false, "Download the annotated image into UPLOAD_DIR")
	if err := fs.Parse(args); err != nil {
		return err
	}
	asset, err := assetFromArgs(models.MediaImage, fs.Args())
	if err != nil {
		return err
	}

	s := session.NewImageSession(c.client)
	if err := s.SelectAsset(ctx, asset); err != nil {
		return err
	}
	ready, ok := s.State().(session.ImageReady)
	if !ok {
		return fmt.Errorf("image analysis did not complete")
	}

	c.printResult(ready.Result)
	c.record(ctx, asset, ready.Result)

	if *save && ready.Result.HasProcessedMedia() {
		return c.saveProcessed(ctx, ready.Result.ProcessedMediaRef, c.client.FetchProcessedImage)
	}
	return nil
}

func (c *cli) video(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("video", flag.ContinueOnError)
	save := fs.Bool("save", false, "Download the annotated video into UPLOAD_DIR")
	if err := fs.Parse(args); err != nil {
		return err
	}
	asset, err := assetFromArgs(models.MediaVideo, fs.Args())
	if err != nil {
		return err
	}

	s := session.NewVideoSession(c.client, nil)
	defer s.Close()

	if err := s.SelectAsset(asset); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Analyzing %s, this can take a while...\n", asset.Name)
	if err := s.AnalyzeFull(ctx); err != nil {
		return err
	}
	ready, ok := s.State().(session.VideoReady)
	if !ok {
		return fmt.Errorf("video analysis did not complete")
	}

	st := ready.Analysis.Stats
	fmt.Fprintf(c.out, "Frames: %d (processed %d)\n", st.TotalFrames, st.ProcessedFrames)
	fmt.Fprintf(c.out, "Average detections per frame: %.2f\n", st.AvgDetections)
	fmt.Fprintf(c.out, "Persons: %d (compliant %d)\n", st.TotalPersons, st.CompliantPersons)
	c.printResult(&ready.Analysis.Result)
	c.record(ctx, asset, &ready.Analysis.Result)

	if *save && ready.Analysis.Result.HasProcessedMedia() {
		return c.saveProcessed(ctx, ready.Analysis.Result.ProcessedMediaRef, c.client.FetchProcessedVideo)
	}
	return nil
}

func (c *cli) chat(ctx context.Context, args []string) error {
	a := session.NewAssistantSession(c.client, nil)
	reply, err := a.Send(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, reply.Text)
	return nil
}

func (c *cli) health(ctx context.Context) error {
	status, err := c.client.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Backend: %s\nStatus: %s\nModel loaded: %t\nModel path: %s\n",
		c.client.BaseURL(), status.Status, status.ModelLoaded, status.ModelPath)
	return nil
}

func (c *cli) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	kind := fs.String("kind", "", "Filter by kind: image or video")
	limit := fs.Int("limit", database.DefaultHistoryLimit, "Maximum records to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if c.cfg.DBPath == "" {
		return errors.New("history is disabled: set DB_PATH")
	}

	db, err := database.NewDB(database.Config{Path: c.cfg.DBPath})
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := database.NewHistoryRepository(db).ListRecent(ctx, models.MediaKind(*kind), *limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tKIND\tASSET\tVERDICT\tMISSING\tDETECTIONS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Kind, r.AssetName,
			verdict(r.Reported, r.Compliant), r.MissingPersons, r.Detections)
	}
	return tw.Flush()
}

func (c *cli) printResult(r *models.DetectionResult) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tCATEGORY\tCONFIDENCE")
	for _, item := range r.Items {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\n", item.Class, models.Category(item.Class), item.Percent())
	}
	tw.Flush()

	comp := r.Compliance
	fmt.Fprintf(c.out, "Compliance: %s\n", verdict(comp.Reported, comp.Compliant))
	if comp.Message != "" {
		fmt.Fprintf(c.out, "  %s\n", comp.Message)
	}
	for _, m := range comp.MissingItems {
		fmt.Fprintf(c.out, "  Persona %d: falta %s\n", m.PersonID, strings.Join(m.Missing, ", "))
	}
	if r.ProcessedMediaURL != "" {
		fmt.Fprintf(c.out, "Processed: %s\n", r.ProcessedMediaURL)
	}
}

// record appends to the history log when DB_PATH is set; failures only warn.
func (c *cli) record(ctx context.Context, asset *models.MediaAsset, result *models.DetectionResult) {
	if c.cfg.DBPath == "" {
		return
	}
	db, err := database.NewDB(database.Config{Path: c.cfg.DBPath})
	if err != nil {
		log.WithError(err).Warn("history unavailable")
		return
	}
	defer db.Close()

	if err := database.NewHistoryRepository(db).Insert(ctx, models.NewAnalysisRecord(asset, result)); err != nil {
		log.WithError(err).Warn("failed to record analysis")
	}
}

func (c *cli) saveProcessed(ctx context.Context, ref string, fetch func(context.Context, string, io.Writer) (int64, error)) error {
	store, err := storage.NewLocalStorage(c.cfg.UploadDir)
	if err != nil {
		return err
	}
	name := filepath.Base(ref)
	pending, err := store.CreateFile(name)
	if err != nil {
		return err
	}
	defer pending.Discard()

	n, err := fetch(ctx, ref, pending)
	if err != nil {
		return err
	}
	if err := pending.Commit(); err != nil {
		return err
	}

	path, _ := store.GetFilePath(name)
	fmt.Fprintf(c.out, "Saved %s (%d bytes)\n", path, n)
	return nil
}

func assetFromArgs(kind models.MediaKind, args []string) (*models.MediaAsset, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected exactly one %s file", kind)
	}
	path, err := filepath.Abs(args[0])
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return models.NewMediaAsset(kind, filepath.Base(path), contentType, path, info.Size()), nil
}

func verdict(reported, compliant bool) string {
	switch {
	case !reported:
		return "sin veredicto"
	case compliant:
		return "cumple"
	}
	return "no cumple"
}

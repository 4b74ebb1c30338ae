package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"pagevault/capture"
	"pagevault/internal/browser"
	"pagevault/internal/profile"
	"pagevault/internal/storage"
)

func main() {
	urlFlag := flag.String("url", "", "page URL to capture")
	outFlag := flag.String("out", "out", "output directory")
	profileFlag := flag.String("profile", "", "YAML capture profile")
	timeoutFlag := flag.Duration("timeout", 45*time.Second, "overall capture timeout")
	cropFlag := flag.String("crop", "", "selector to crop the capture to")
	noStoreFlag := flag.Bool("no-store", false, "record provenance only, do not fetch resources")
	tweetFlag := flag.String("tweet", "", "tweet id for media replacement")
	mediaURLFlag := flag.String("tweet-media-url", "", "resolved media URL for -tweet")
	maxImgFlag := flag.Int("max-image-dim", 0, "downscale images above this dimension, 0 keeps originals")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stdout)

	if *urlFlag == "" {
		log.Fatal("usage: pagevault -url <page> [-out dir]")
	}

	opts := capture.DefaultOptions()
	loadOpts := browser.Options{Timeout: *timeoutFlag}
	outDir := *outFlag
	maxImageDim := *maxImgFlag
	if *profileFlag != "" {
		p, err := profile.Load(*profileFlag)
		if err != nil {
			log.Fatalf("profile: %v", err)
		}
		opts = p.Options()
		loadOpts.UserAgent = p.UserAgent
		loadOpts.Headers = p.Headers
		loadOpts.WaitSelector = p.WaitSelector
		loadOpts.WaitAfterLoad = p.WaitAfterLoad()
		if t := p.Timeout(); t > 0 {
			loadOpts.Timeout = t
		}
		if p.OutputDir != "" {
			outDir = p.OutputDir
		}
		if p.MaxImageDim > 0 {
			maxImageDim = p.MaxImageDim
		}
	}
	if *cropFlag != "" {
		opts.CropSelector = *cropFlag
	}
	if *noStoreFlag {
		opts.NoStoring = true
	}
	if *tweetFlag != "" {
		opts.TweetID = *tweetFlag
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	sess := browser.New(log.Default())
	defer sess.Close()
	page, err := sess.Load(ctx, *urlFlag, loadOpts)
	if err != nil {
		log.Fatalf("load %s: %v", *urlFlag, err)
	}

	fetcher := &capture.HTTPFetcher{Header: http.Header{}}
	for k, v := range loadOpts.Headers {
		fetcher.Header.Set(k, v)
	}
	if loadOpts.UserAgent != "" {
		fetcher.Header.Set("User-Agent", loadOpts.UserAgent)
	}
	outDir = filepath.Join(outDir, page.SessionID)
	store := storage.NewDirStore(outDir, fetcher)
	store.MaxImageDim = maxImageDim

	ext := capture.Externals{
		Fetcher: fetcher,
		Store:   store,
		Logger:  log.Default(),
	}
	if *mediaURLFlag != "" {
		ext.Media = staticMediaResolver(*mediaURLFlag)
	}

	capSess, err := capture.NewSession(page.HTML, page.URL, opts, ext)
	if err != nil {
		log.Fatalf("session: %v", err)
	}
	artifact, err := capSess.Capture(ctx, page.Frames)
	if err != nil {
		log.Fatalf("capture: %v", err)
	}
	for _, cerr := range artifact.Errors {
		log.Printf("WARN %v", cerr)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("mkdir %s: %v", outDir, err)
	}
	outFile := filepath.Join(outDir, "index.html")
	if err := os.WriteFile(outFile, []byte(artifact.HTML), 0o644); err != nil {
		log.Fatalf("write %s: %v", outFile, err)
	}
	log.Printf("DONE %s rewrites=%d embedded=%d warnings=%d",
		outFile, len(artifact.Rewrites), len(artifact.DataList), len(artifact.Errors))
}

// staticMediaResolver satisfies capture.MediaResolver with a pre-resolved
// URL supplied on the command line.
type staticMediaResolver string

func (r staticMediaResolver) ResolveTweetMedia(ctx context.Context, tweetID string) (*capture.TweetMedia, error) {
	if r == "" {
		return nil, nil
	}
	return &capture.TweetMedia{URL: string(r)}, nil
}

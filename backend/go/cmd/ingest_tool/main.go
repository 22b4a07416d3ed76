package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"accord/backend/go/internal/audit"
	"accord/backend/go/internal/config"
	"accord/backend/go/internal/database/minio"
	"accord/backend/go/internal/database/mongo"
	"accord/backend/go/internal/embedding"
	"accord/backend/go/internal/ingest"
	"accord/backend/go/internal/pii"
	"accord/backend/go/internal/store"
	"accord/backend/go/pkg/logger"

	"github.com/djherbis/times"
	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	pattern    string
	uploadedBy string
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:   "ingest-tool [directory]",
	Short: "Bulk-load compliance documents from a directory",
	Long: `Walks a directory, filters files by a glob pattern and runs each match
through the same ingestion pipeline the API uses: text extraction, PII
scanning, archival, embedding and audit logging. Duplicates are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the configuration file")
	rootCmd.Flags().StringVarP(&pattern, "pattern", "p", "*", "glob pattern applied to file names")
	rootCmd.Flags().StringVarP(&uploadedBy, "user", "u", "ingest-tool", "user id recorded on documents and audit entries")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list matching files without ingesting them")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := args[0]

	matcher, err := glob.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)

	if dryRun {
		return listMatches(dir, matcher)
	}

	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := svc.WarmDedupe(ctx); err != nil {
		log.Printf("warning: dedupe warm-up failed: %v", err)
	}

	var ingested, duplicates, failed int
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !matcher.Match(d.Name()) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			failed++
			log.Printf("read %s: %v", path, err)
			return nil
		}

		res, err := svc.Ingest(ctx, ingest.UploadInput{
			Filename:   d.Name(),
			Data:       data,
			UploadedBy: uploadedBy,
			Metadata:   fileMetadata(path),
		})
		switch {
		case err != nil:
			failed++
			log.Printf("ingest %s: %v", path, err)
		case res.Duplicate:
			duplicates++
			fmt.Printf("skip      %s (duplicate)\n", path)
		default:
			ingested++
			fmt.Printf("ingested  %s -> %s\n", path, res.Document.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir, err)
	}

	fmt.Printf("\n%d ingested, %d duplicates, %d failed\n", ingested, duplicates, failed)
	if failed > 0 {
		return errors.New("some files failed to ingest")
	}
	return nil
}

// listMatches prints what a real run would pick up.
func listMatches(dir string, matcher glob.Glob) error {
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !matcher.Match(d.Name()) {
			return nil
		}
		fmt.Println(path)
		n++
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("\n%d files match\n", n)
	return nil
}

// fileMetadata captures filesystem timestamps so documents keep their
// provenance when they are loaded from disk instead of the upload endpoint.
func fileMetadata(path string) map[string]interface{} {
	md := map[string]interface{}{"source_path": path}
	ts, err := times.Stat(path)
	if err != nil {
		return md
	}
	md["modified_at"] = ts.ModTime().UTC().Format(time.RFC3339)
	if ts.HasBirthTime() {
		md["created_at"] = ts.BirthTime().UTC().Format(time.RFC3339)
	}
	return md
}

// buildService wires the ingestion pipeline against the live backends. The
// returned cleanup closes the database connections.
func buildService(cfg *config.AppConfig) (*ingest.Service, func(), error) {
	if err := ingest.SetUnidocLicense(cfg.Unidoc.LicenseKey); err != nil {
		log.Printf("warning: UniDoc license rejected: %v", err)
	}

	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	db := mongoClient.Database(cfg.Databases.MongoDB.Database)

	minioClient, err := minio.GetClient(&cfg.Databases.MinIO)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to MinIO: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := minio.EnsureBucket(ctx, minioClient, cfg.Databases.MinIO.Bucket); err != nil {
		return nil, nil, fmt.Errorf("ensure bucket %s: %w", cfg.Databases.MinIO.Bucket, err)
	}

	embedder, err := embedding.NewProvider(&cfg.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("create embedding provider: %w", err)
	}

	var redactor *pii.Redactor
	if cfg.PII.Enabled {
		redactor = pii.NewRedactor(cfg.PII.Patterns)
	}

	trail := audit.NewTrail(store.NewMongoAuditStore(db), nil)
	svc, err := ingest.NewService(store.NewMongoDocumentStore(db), embedder, minioClient, trail, redactor, cfg.Ingest, cfg.Databases.MinIO.Bucket)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := mongo.Close(context.Background()); err != nil {
			log.Printf("warning: closing MongoDB: %v", err)
		}
	}
	return svc, cleanup, nil
}

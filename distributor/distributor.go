package distributor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/storage/v1"

	"chronoreel-pipeline/costs"
)

// Distributor mirrors run artifacts to Google Cloud Storage, with an
// optional legacy Drive folder for channels still sharing files there.
type Distributor struct {
	gcs     *storage.Service
	drive   *drive.Service
	bucket  string
	folder  string
	tracker *costs.Tracker
}

// New builds a Distributor. bucket selects the GCS destination;
// driveFolderID enables the Drive mirror. At least one must be set.
func New(ctx context.Context, bucket, driveFolderID string, tracker *costs.Tracker) (*Distributor, error) {
	if bucket == "" && driveFolderID == "" {
		return nil, fmt.Errorf("neither gcs_bucket nor drive_folder_id configured")
	}

	var opts []option.ClientOption
	if path := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}

	d := &Distributor{bucket: bucket, folder: driveFolderID, tracker: tracker}
	if bucket != "" {
		gcs, err := storage.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("storage service: %w", err)
		}
		d.gcs = gcs
	}
	if driveFolderID != "" {
		svc, err := drive.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("drive service: %w", err)
		}
		d.drive = svc
	}
	return d, nil
}

// UploadVideo pushes the final cut to GCS and returns its public URL.
func (d *Distributor) UploadVideo(ctx context.Context, scenarioID, localPath string) (string, error) {
	object := scenarioID + "/" + filepath.Base(localPath)
	if err := d.uploadObject(ctx, scenarioID, localPath, object); err != nil {
		return "", err
	}
	url := PublicURL(d.bucket, object)
	log.Printf("[distributor] ✅ video at %s", url)
	return url, nil
}

// UploadFolder mirrors every regular file in dir under the scenario's
// GCS prefix, as a checkpoint backup between phases.
func (d *Distributor) UploadFolder(ctx context.Context, scenarioID, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read output dir: %w", err)
	}

	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		localPath := filepath.Join(dir, entry.Name())
		object := scenarioID + "/" + entry.Name()
		if err := d.uploadObject(ctx, scenarioID, localPath, object); err != nil {
			return err
		}
		uploaded++
	}
	log.Printf("[distributor] backed up %d files to gs://%s/%s", uploaded, d.bucket, scenarioID)
	return nil
}

func (d *Distributor) uploadObject(ctx context.Context, scenarioID, localPath, object string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = d.gcs.Objects.Insert(d.bucket, &storage.Object{Name: object}).
		Media(f).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("upload gs://%s/%s: %w", d.bucket, object, err)
	}
	d.tracker.LogUpload(scenarioID, info.Size(), strings.TrimPrefix(filepath.Ext(localPath), "."))
	return nil
}

// PublicURL is the well-known HTTPS form of a GCS object path.
func PublicURL(bucket, object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, object)
}

// MirrorToDrive uploads the final cut into the legacy shared folder.
// A full Drive quota is reported but does not fail the pipeline.
func (d *Distributor) MirrorToDrive(ctx context.Context, localPath string) (string, error) {
	if d.drive == nil {
		return "", nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	meta := &drive.File{
		Name:    filepath.Base(localPath),
		Parents: []string{d.folder},
	}
	created, err := d.drive.Files.Create(meta).
		Media(f, googleapi.ChunkSize(8*1024*1024)).
		SupportsAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		if isQuotaExceeded(err) {
			log.Printf("[distributor] ⚠️  drive storage quota exceeded, skipping mirror")
			return "", nil
		}
		return "", fmt.Errorf("drive upload: %w", err)
	}

	log.Printf("[distributor] mirrored to drive file %s", created.Id)
	return created.Id, nil
}

func isQuotaExceeded(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, e := range apiErr.Errors {
			if e.Reason == "storageQuotaExceeded" {
				return true
			}
		}
	}
	return strings.Contains(err.Error(), "storageQuotaExceeded")
}

// Package archive uploads a completed run directory to S3 so results survive
// the machine that produced them.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alitto/pond"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/schollz/progressbar/v3"
)

const uploadConcurrency = 8

type ArchiverInput struct {
	AwsConfig aws.Config
	Bucket    string

	// Key prefix objects are uploaded under, typically the run timestamp.
	Prefix string
}

type Archiver struct {
	input *ArchiverInput
	s3    *s3.Client
}

func NewArchiver(input *ArchiverInput) (*Archiver, error) {
	if input.Bucket == "" {
		return nil, fmt.Errorf("a bucket is required")
	}
	return &Archiver{input: input, s3: s3.NewFromConfig(input.AwsConfig)}, nil
}

// EnsureBucket creates the archive bucket if it does not already exist.
func (a *Archiver) EnsureBucket() error {
	_, err := a.s3.CreateBucket(context.Background(), &s3.CreateBucketInput{
		Bucket: &a.input.Bucket,
		ACL:    s3Types.BucketCannedACLPrivate,
		CreateBucketConfiguration: &s3Types.CreateBucketConfiguration{
			LocationConstraint: s3Types.BucketLocationConstraint(a.input.AwsConfig.Region),
		},
	})
	var owned *s3Types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		slog.Debug("bucket already exists", slog.String("name", a.input.Bucket))
		return nil
	} else if err != nil {
		return err
	}
	slog.Debug("created bucket", slog.String("name", a.input.Bucket))
	return nil
}

// UploadDir uploads every regular file under dir, keyed by its path relative
// to dir under the archiver's prefix.
func (a *Archiver) UploadDir(dir string) error {
	files := []string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", dir, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("nothing to archive under %s", dir)
	}

	slog.Info("archiving run", slog.String("bucket", a.input.Bucket), slog.String("prefix", a.input.Prefix), slog.Int("files", len(files)))
	uploader := manager.NewUploader(a.s3)
	errChan := make(chan error, len(files))
	pool := pond.New(uploadConcurrency, 0, pond.MinWorkers(uploadConcurrency))
	p := progressbar.Default(int64(len(files)), "Uploading results:")
	for _, path := range files {
		pool.Submit(func() {
			defer p.Add(1)

			rel, err := filepath.Rel(dir, path)
			if err != nil {
				errChan <- err
				return
			}
			key := filepath.ToSlash(filepath.Join(a.input.Prefix, rel))

			f, err := os.Open(path)
			if err != nil {
				errChan <- err
				return
			}
			defer f.Close()

			_, err = uploader.Upload(context.Background(), &s3.PutObjectInput{
				Bucket: &a.input.Bucket,
				Key:    &key,
				Body:   f,
			})
			if err != nil {
				slog.Error("failed to upload result file", slog.String("key", key), slog.String("error", err.Error()))
				errChan <- err
				return
			}
		})
	}
	pool.StopAndWait()
	p.Finish()

	select {
	case err := <-errChan:
		return fmt.Errorf("some result files failed to upload: %w", err)
	default:
		slog.Info("done archiving", slog.String("bucket", a.input.Bucket))
		return nil
	}
}

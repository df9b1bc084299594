// Package sthree implements a block store backed by an S3 bucket.
package sthree

import (
	"bytes"
	"context"
	"io/ioutil"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	pkgerrors "github.com/pkg/errors"
	"github.com/thicketfs/thicket/pkg/storage"
)

const pageSize = 1000

// Option configures the S3 store
type Option func(*s3FS)

// Bucket sets the bucket holding the blocks
func Bucket(bucket string) Option {
	return func(fs *s3FS) {
		fs.bucket = bucket
	}
}

// Prefix sets a key prefix under the bucket
func Prefix(prefix string) Option {
	return func(fs *s3FS) {
		fs.prefix = prefix
	}
}

// AWSConfig sets the AWS client configuration
func AWSConfig(cfg *aws.Config) Option {
	return func(fs *s3FS) {
		fs.awsConfig = cfg
	}
}

// New creates a new S3 backed storage model
func New(option Option, options ...Option) storage.Store {
	fs := new(s3FS)
	option(fs)
	for _, apply := range options {
		apply(fs)
	}

	fs.s3 = s3.New(session.Must(session.NewSession(fs.awsConfig)))
	fs.uploader = s3manager.NewUploaderWithClient(fs.s3)
	return fs
}

type s3FS struct {
	bucket    string
	prefix    string
	awsConfig *aws.Config
	s3        *s3.S3
	uploader  *s3manager.Uploader
}

func (s *s3FS) String() string {
	return "s3@" + s.bucket
}

func (s *s3FS) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func toSentinel(err error) error {
	if err == nil {
		return nil
	}
	if rerr, ok := err.(awserr.RequestFailure); ok {
		switch rerr.StatusCode() {
		case 404:
			return storage.ErrNotFound
		case 403:
			return storage.ErrForbidden
		}
	}
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket:
			return storage.ErrNotFound
		}
	}
	return err
}

func (s *s3FS) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		if serr := toSentinel(err); serr == storage.ErrNotFound {
			return false, nil
		}
		return false, pkgerrors.Wrapf(err, "head request for %q", key)
	}
	return true, nil
}

func (s *s3FS) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return nil, toSentinel(err)
	}
	defer obj.Body.Close()
	return ioutil.ReadAll(obj.Body)
}

func (s *s3FS) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
		Body:   bytes.NewReader(value),
	})
	return toSentinel(err)
}

func (s *s3FS) Delete(ctx context.Context, key string) error {
	_, err := s.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	return toSentinel(err)
}

func (s *s3FS) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, pageSize)
	in := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int64(pageSize),
	}
	if s.prefix != "" {
		in.Prefix = aws.String(s.prefix + "/")
	}
	err := s.s3.ListObjectsV2PagesWithContext(ctx, in,
		func(page *s3.ListObjectsV2Output, _ bool) bool {
			for _, obj := range page.Contents {
				k := aws.StringValue(obj.Key)
				if s.prefix != "" {
					k = k[len(s.prefix)+1:]
				}
				keys = append(keys, k)
			}
			return true
		})
	if err != nil {
		return nil, toSentinel(err)
	}
	return keys, nil
}

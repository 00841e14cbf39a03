package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const BucketName = "blobs"

// GridFSStore keeps blobs in a GridFS bucket, keyed by filename = path.
type GridFSStore struct {
	bucket *gridfs.Bucket
}

type gridFSMetadata struct {
	ContentType string `bson:"contentType"`
}

type gridFSFileDocument struct {
	ID primitive.ObjectID `bson:"_id"`
}

func NewGridFSStore(db *mongo.Database) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(BucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	return &GridFSStore{bucket: bucket}, nil
}

// Put uploads a new revision and then drops every older revision of path.
func (s *GridFSStore) Put(ctx context.Context, path, contentType string, r io.Reader) (*BlobInfo, error) {
	opts := options.GridFSUpload().SetMetadata(gridFSMetadata{ContentType: contentType})
	counter := &countingReader{r: r}

	id, err := s.bucket.UploadFromStream(path, counter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", path, err)
	}

	older, err := s.fileIDs(ctx, bson.M{"filename": path, "_id": bson.M{"$ne": id}})
	if err != nil {
		return nil, err
	}
	for _, oldID := range older {
		if err := s.bucket.DeleteContext(ctx, oldID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			log.Printf("Failed to delete old revision of %s: %v", path, err)
		}
	}

	return &BlobInfo{Path: path, ContentType: contentType, Size: counter.n}, nil
}

// Open streams the latest revision of path.
func (s *GridFSStore) Open(ctx context.Context, path string) (io.ReadCloser, *BlobInfo, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(path)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	file := stream.GetFile()
	info := &BlobInfo{Path: path, Size: file.Length, UploadedAt: file.UploadDate}
	var meta gridFSMetadata
	if len(file.Metadata) > 0 && bson.Unmarshal(file.Metadata, &meta) == nil {
		info.ContentType = meta.ContentType
	}
	return stream, info, nil
}

// Delete removes every revision of path.
func (s *GridFSStore) Delete(ctx context.Context, path string) error {
	ids, err := s.fileIDs(ctx, bson.M{"filename": path})
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return ErrBlobNotFound
	}
	for _, id := range ids {
		if err := s.bucket.DeleteContext(ctx, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", path, err)
		}
	}
	return nil
}

func (s *GridFSStore) fileIDs(ctx context.Context, filter bson.M) ([]primitive.ObjectID, error) {
	cursor, err := s.bucket.FindContext(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []gridFSFileDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode blobs: %w", err)
	}
	ids := make([]primitive.ObjectID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

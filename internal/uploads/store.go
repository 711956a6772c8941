// Package uploads stores scheme images and serves them back by file id.
package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const URLPrefix = "/uploads/"

var (
	ErrNotFound    = errors.New("file not found")
	ErrNotAnImage  = errors.New("file is not an image")
	ErrInvalidFile = errors.New("invalid file id")
)

type Object struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
}

type Store interface {
	Put(ctx context.Context, filename, contentType string, r io.Reader) (Object, error)
	Open(ctx context.Context, id string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, id string) error
}

// URL is the public path of a stored file.
func URL(id string) string {
	return URLPrefix + id
}

// SniffImage reads the head of r to detect its type and rejects non-images.
// The returned reader replays the consumed bytes.
func SniffImage(r io.Reader) (io.Reader, string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", err
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if len(contentType) < 6 || contentType[:6] != "image/" {
		return nil, "", fmt.Errorf("%w: %s", ErrNotAnImage, contentType)
	}
	return io.MultiReader(bytes.NewReader(head), r), contentType, nil
}

type GridFSStore struct {
	bucket *gridfs.Bucket
}

func NewGridFSStore(bucket *gridfs.Bucket) *GridFSStore {
	return &GridFSStore{bucket: bucket}
}

func (s *GridFSStore) Put(ctx context.Context, filename, contentType string, r io.Reader) (Object, error) {
	id := primitive.NewObjectID()
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	up, err := s.bucket.OpenUploadStreamWithID(id, filename, opts)
	if err != nil {
		return Object{}, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = up.SetWriteDeadline(deadline)
	}
	n, err := io.Copy(up, r)
	if err != nil {
		_ = up.Abort()
		return Object{}, err
	}
	if err := up.Close(); err != nil {
		return Object{}, err
	}
	return Object{ID: id.Hex(), Filename: filename, ContentType: contentType, Size: n}, nil
}

type fileDoc struct {
	Filename string `bson:"filename"`
	Length   int64  `bson:"length"`
	Metadata struct {
		ContentType string `bson:"contentType"`
	} `bson:"metadata"`
}

func (s *GridFSStore) Open(ctx context.Context, id string) (io.ReadCloser, Object, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, Object{}, ErrInvalidFile
	}
	down, err := s.bucket.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, Object{}, ErrNotFound
		}
		return nil, Object{}, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = down.SetReadDeadline(deadline)
	}

	var doc fileDoc
	if raw := down.GetFile(); raw != nil {
		_ = bson.Unmarshal(raw.Metadata, &doc.Metadata)
		doc.Filename = raw.Name
		doc.Length = raw.Length
	}
	return down, Object{ID: id, Filename: doc.Filename, ContentType: doc.Metadata.ContentType, Size: doc.Length}, nil
}

func (s *GridFSStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidFile
	}
	if err := s.bucket.DeleteContext(ctx, oid); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// MemoryStore keeps files in process; used by tests and local runs without Mongo.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string]memoryFile
}

type memoryFile struct {
	obj  Object
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]memoryFile)}
}

func (m *MemoryStore) Put(_ context.Context, filename, contentType string, r io.Reader) (Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Object{}, err
	}
	obj := Object{ID: primitive.NewObjectID().Hex(), Filename: filename, ContentType: contentType, Size: int64(len(data))}
	m.mu.Lock()
	m.files[obj.ID] = memoryFile{obj: obj, data: data}
	m.mu.Unlock()
	return obj, nil
}

func (m *MemoryStore) Open(_ context.Context, id string) (io.ReadCloser, Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, Object{}, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(f.data)), f.obj, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return ErrNotFound
	}
	delete(m.files, id)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

package mem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/bintly"

	"github.com/viant/ragcore/schema"
)

const snapshotVersion = 1

// EncodeBinary encodes a row into the snapshot stream.
func (r *row) EncodeBinary(stream *bintly.Writer) error {
	stream.String(r.chunkID)
	stream.String(r.documentID)
	stream.String(r.text)
	stream.Int(r.ordinal)
	stream.Int(r.tokenCount)
	stream.Int(r.start)
	stream.Int(r.end)
	stream.String(r.method)
	stream.Int(int(r.hash))
	stream.Int(len(r.embedding))
	for _, v := range r.embedding {
		stream.Float32(v)
	}
	if r.point != nil {
		stream.Int(1)
		stream.Float64(r.point.Lat)
		stream.Float64(r.point.Lon)
	} else {
		stream.Int(0)
	}
	meta, err := json.Marshal(r.meta)
	if err != nil {
		return err
	}
	stream.String(string(meta))
	return nil
}

// DecodeBinary decodes a row from the snapshot stream.
func (r *row) DecodeBinary(stream *bintly.Reader) error {
	stream.String(&r.chunkID)
	stream.String(&r.documentID)
	stream.String(&r.text)
	stream.Int(&r.ordinal)
	stream.Int(&r.tokenCount)
	stream.Int(&r.start)
	stream.Int(&r.end)
	stream.String(&r.method)
	var hash int
	stream.Int(&hash)
	r.hash = uint64(hash)
	var size int
	stream.Int(&size)
	r.embedding = make([]float32, size)
	for i := 0; i < size; i++ {
		stream.Float32(&r.embedding[i])
	}
	var hasPoint int
	stream.Int(&hasPoint)
	if hasPoint == 1 {
		r.point = &schema.GeoPoint{}
		stream.Float64(&r.point.Lat)
		stream.Float64(&r.point.Lon)
	}
	var meta string
	stream.String(&meta)
	if meta != "" {
		r.meta = map[string]any{}
		if err := json.Unmarshal([]byte(meta), &r.meta); err != nil {
			return err
		}
	}
	return nil
}

func encodeDocument(stream *bintly.Writer, document *schema.Document) error {
	stream.String(document.ID)
	stream.String(document.Title)
	stream.String(document.Source)
	stream.String(document.Language)
	stream.Int(document.ChunkCount)
	stream.Time(document.CreatedAt)
	stream.Time(document.UpdatedAt)
	meta, err := json.Marshal(document.Metadata)
	if err != nil {
		return err
	}
	stream.String(string(meta))
	return nil
}

func decodeDocument(stream *bintly.Reader) (*schema.Document, error) {
	document := &schema.Document{}
	stream.String(&document.ID)
	stream.String(&document.Title)
	stream.String(&document.Source)
	stream.String(&document.Language)
	stream.Int(&document.ChunkCount)
	stream.Time(&document.CreatedAt)
	stream.Time(&document.UpdatedAt)
	var meta string
	stream.String(&meta)
	if meta != "" {
		document.Metadata = map[string]any{}
		if err := json.Unmarshal([]byte(meta), &document.Metadata); err != nil {
			return nil, err
		}
	}
	return document, nil
}

func (s *Store) snapshotURL() string {
	return url.Join(s.baseURL, "ragcore_index.dat")
}

// Persist writes the current state to the configured base URL.
func (s *Store) Persist(ctx context.Context) error {
	if s.baseURL == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	writers := bintly.NewWriters()
	writer := writers.Get()
	defer writers.Put(writer)

	writer.Int(snapshotVersion)
	writer.Int(len(s.documents))
	for _, document := range s.documents {
		if err := encodeDocument(writer, document); err != nil {
			return err
		}
	}
	writer.Int(len(s.rows))
	for _, r := range s.rows {
		if err := r.EncodeBinary(writer); err != nil {
			return err
		}
	}
	dest := s.snapshotURL()
	if ok, _ := s.fs.Exists(ctx, dest); ok {
		_ = s.fs.Delete(ctx, dest)
	}
	return s.fs.Upload(ctx, dest, file.DefaultFileOsMode, bytes.NewReader(writer.Bytes()))
}

// Load restores a previously persisted snapshot; a missing snapshot is not
// an error.
func (s *Store) Load(ctx context.Context) error {
	if s.baseURL == "" {
		return nil
	}
	source := s.snapshotURL()
	if ok, _ := s.fs.Exists(ctx, source); !ok {
		return nil
	}
	reader, err := s.fs.OpenURL(ctx, source)
	if err != nil {
		return err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	readers := bintly.NewReaders()
	stream := readers.Get()
	defer readers.Put(stream)
	if err := stream.FromBytes(data); err != nil {
		return err
	}

	var version int
	stream.Int(&version)
	if version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", version)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var documentCount int
	stream.Int(&documentCount)
	for i := 0; i < documentCount; i++ {
		document, err := decodeDocument(stream)
		if err != nil {
			return err
		}
		s.documents[document.ID] = document
	}
	var rowCount int
	stream.Int(&rowCount)
	for i := 0; i < rowCount; i++ {
		r := &row{}
		if err := r.DecodeBinary(stream); err != nil {
			return err
		}
		s.rows[r.chunkID] = r
		s.byDocument[r.documentID] = append(s.byDocument[r.documentID], r.chunkID)
		s.byContent[r.hash] = r.chunkID
		if s.dimension == 0 {
			s.dimension = len(r.embedding)
		}
	}
	return nil
}

package docsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"

	"simcheck/types"
)

// Object metadata keys. S3 lower-cases user metadata keys.
const (
	metaOwner    = "owner-id"
	metaPublic   = "is-public"
	metaTitle    = "title"
	metaCategory = "category"
	metaTags     = "tags"
)

// S3Source serves documents stored as objects under <prefix><document id>,
// with ownership and catalog fields kept in the object's user metadata.
type S3Source struct {
	s3       *S3
	bucket   string
	prefix   string
	maxBytes int64
}

var _ Archive = (*S3Source)(nil)

// NewS3Source creates a source over bucket/prefix. maxBytes caps a single
// document body; zero means 10 MiB.
func NewS3Source(client *S3, bucket, prefix string, maxBytes int64) *S3Source {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &S3Source{s3: client, bucket: bucket, prefix: prefix, maxBytes: maxBytes}
}

func (s *S3Source) key(documentID string) string {
	return s.prefix + documentID
}

// GetContent downloads the document and extracts its text.
func (s *S3Source) GetContent(ctx context.Context, documentID string) (string, error) {
	out, err := s.s3.Get(ctx, s.bucket, s.key(documentID))
	if err != nil {
		return "", s.mapErr(documentID, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, s.maxBytes))
	if err != nil {
		return "", types.Transient(fmt.Errorf("reading document %s: %w", documentID, err))
	}

	pageURL := &url.URL{Scheme: "s3", Host: s.bucket, Path: "/" + s.key(documentID)}
	return extractText(body, aws.ToString(out.ContentType), pageURL)
}

// GetDocumentMeta reads the object's metadata without downloading its body.
func (s *S3Source) GetDocumentMeta(ctx context.Context, documentID string) (*types.DocumentMeta, error) {
	out, err := s.s3.Head(ctx, s.bucket, s.key(documentID))
	if err != nil {
		return nil, s.mapErr(documentID, err)
	}

	meta := metaFromObject(documentID, out.Metadata)
	meta.ContentType = aws.ToString(out.ContentType)
	if out.LastModified != nil {
		meta.UpdatedAt = out.LastModified.UTC()
	}
	return meta, nil
}

// ListIndexableDocuments pages through every object under the prefix.
func (s *S3Source) ListIndexableDocuments(ctx context.Context) ([]string, error) {
	var (
		ids   []string
		token *string
	)
	for {
		out, err := s.s3.List(ctx, s.bucket, s.prefix, 1000, token)
		if err != nil {
			return nil, s.mapErr("", err)
		}
		for _, obj := range out.Contents {
			id := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if id == "" || strings.HasSuffix(id, "/") {
				continue
			}
			ids = append(ids, id)
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return ids, nil
}

// PutDocument uploads a document body with its metadata.
func (s *S3Source) PutDocument(ctx context.Context, doc *types.Document) error {
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	err := s.s3.Put(ctx, s.bucket, s.key(doc.ID), bytes.NewReader([]byte(doc.Content)), contentType, metaToObject(&doc.DocumentMeta))
	if err != nil {
		return s.mapErr(doc.ID, err)
	}
	return nil
}

// DeleteDocument removes a document object.
func (s *S3Source) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.s3.Delete(ctx, s.bucket, s.key(documentID)); err != nil {
		return s.mapErr(documentID, err)
	}
	return nil
}

func (s *S3Source) mapErr(documentID string, err error) error {
	switch {
	case isNotFound(err):
		return fmt.Errorf("document %s: %w", documentID, types.ErrNotFound)
	case isPermanent(err):
		return fmt.Errorf("s3 request for %q failed: %w", documentID, err)
	case ctxDone(err):
		return err
	default:
		return types.Transient(fmt.Errorf("s3 request for %q failed: %w", documentID, err))
	}
}

func ctxDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func metaFromObject(documentID string, md map[string]string) *types.DocumentMeta {
	meta := &types.DocumentMeta{
		ID:       documentID,
		OwnerID:  md[metaOwner],
		Title:    md[metaTitle],
		Category: md[metaCategory],
	}
	meta.IsPublic, _ = strconv.ParseBool(md[metaPublic])
	for _, tag := range strings.Split(md[metaTags], ",") {
		if t := strings.TrimSpace(tag); t != "" {
			meta.Tags = append(meta.Tags, t)
		}
	}
	return meta
}

func metaToObject(meta *types.DocumentMeta) map[string]string {
	md := map[string]string{
		metaOwner:  meta.OwnerID,
		metaPublic: strconv.FormatBool(meta.IsPublic),
	}
	if meta.Title != "" {
		md[metaTitle] = meta.Title
	}
	if meta.Category != "" {
		md[metaCategory] = meta.Category
	}
	if len(meta.Tags) > 0 {
		md[metaTags] = strings.Join(meta.Tags, ",")
	}
	return md
}

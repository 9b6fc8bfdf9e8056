// Package azure provides meld Client and ObjectStore implementations for Azure Blob Storage.
//
// Buckets map to containers. Client composes by staging each source as a block
// of the destination block blob and committing the block list in order.
package azure

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/zoobzio/meld"
	"github.com/zoobzio/meld/internal/shared"
)

// MetaIfMatch makes staging fail unless the component's ETag matches.
// Other metadata keys are ignored.
const MetaIfMatch = "IfMatch"

// sourceSASExpiry bounds the read SAS minted for each staged source.
const sourceSASExpiry = 15 * time.Minute

// Client implements meld.Client using Put Block From URL and Put Block List.
type Client struct {
	client *azblob.Client
}

// New creates an Azure compose client. Sources are read through a short-lived SAS
// when client holds a shared key credential, and by plain URL otherwise.
func New(client *azblob.Client) *Client {
	return &Client{client: client}
}

// Compose stages every entry, in order, as a block of destination and commits them.
func (c *Client) Compose(ctx context.Context, entries []meld.Entry, destination, contentType string) error {
	containerName, blobName, err := meld.SplitPath(destination)
	if err != nil {
		return err
	}
	cc := c.client.ServiceClient().NewContainerClient(containerName)
	dst := cc.NewBlockBlobClient(blobName)

	ids := make([]string, 0, len(entries))
	for i, e := range entries {
		id := blockID(i)
		opts := &blockblob.StageBlockFromURLOptions{}
		if etag, ok := e.Metadata[MetaIfMatch]; ok {
			match := azcore.ETag(etag)
			opts.SourceModifiedAccessConditions = &blob.SourceModifiedAccessConditions{
				SourceIfMatch: &match,
			}
		}
		src, err := sourceURL(cc.NewBlobClient(e.Name))
		if err != nil {
			return err
		}
		if _, err := dst.StageBlockFromURL(ctx, id, src, opts); err != nil {
			return translate(err)
		}
		ids = append(ids, id)
	}

	commit := &blockblob.CommitBlockListOptions{}
	if contentType != "" {
		commit.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	_, err = dst.CommitBlockList(ctx, ids, commit)
	return translate(err)
}

// blockID returns the base64 block ID for position i. IDs within a blob must share a length.
func blockID(i int) string {
	return base64.StdEncoding.EncodeToString(fmt.Appendf(nil, "meld-%05d", i))
}

// sourceURL signs a read SAS for bc. Clients without a shared key fall back to
// the plain URL; any other signing failure is returned.
func sourceURL(bc sasSigner) (string, error) {
	u, err := bc.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().Add(sourceSASExpiry), nil)
	if err != nil {
		if errors.Is(err, bloberror.MissingSharedKeyCredential) {
			return bc.URL(), nil
		}
		return "", fmt.Errorf("azure: sign %s: %w", bc.URL(), err)
	}
	return u, nil
}

// sasSigner is the part of *blob.Client used to address a source.
type sasSigner interface {
	GetSASURL(permissions sas.BlobPermissions, expiry time.Time, o *blob.GetSASURLOptions) (string, error)
	URL() string
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.CannotVerifyCopySource) {
		return fmt.Errorf("%w: %w", meld.ErrNotFound, err)
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		return fmt.Errorf("%w: %w", meld.ErrNotFound, err)
	}
	return err
}

// Store implements meld.ObjectStore over blob downloads and streamed uploads.
type Store struct {
	client *azblob.Client
}

// NewStore creates an Azure object store.
func NewStore(client *azblob.Client) *Store {
	return &Store{client: client}
}

// Open returns the body of the blob at path.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	containerName, blobName, err := meld.SplitPath(path)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, translate(err)
	}
	return resp.Body, nil
}

// Create returns a writer streamed to the blob at path. The upload completes when the writer is closed.
func (s *Store) Create(ctx context.Context, path, contentType string) (io.WriteCloser, error) {
	containerName, blobName, err := meld.SplitPath(path)
	if err != nil {
		return nil, err
	}
	opts := &azblob.UploadStreamOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	return shared.StreamWriter(func(r io.Reader) error {
		_, err := s.client.UploadStream(ctx, containerName, blobName, r, opts)
		return err
	}), nil
}

var (
	_ meld.Client      = (*Client)(nil)
	_ meld.ObjectStore = (*Store)(nil)
	_ sasSigner        = (*blob.Client)(nil)
)

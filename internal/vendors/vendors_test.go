package vendors

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/service"
	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
)

func newTestService(t *testing.T) *service.Service {
	t.Helper()

	svc, err := service.Create(service.CreateInput{
		OrderID:         "order-1",
		CustomerID:      "customer-1",
		ServiceTypeCode: "CRIM-COUNTY",
		Category:        "criminal",
	}, func() time.Time { return time.Date(2026, time.May, 4, 9, 0, 0, 0, time.UTC) })
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return svc
}

func TestRegistryLookup(t *testing.T) {
	stub := NewStub("criminal", "employment")
	reg := NewRegistry(stub)

	byCode, err := reg.ByCode(StubCode)
	if err != nil {
		t.Fatalf("ByCode: %v", err)
	}
	if byCode != Adapter(stub) {
		t.Fatal("ByCode returned a different adapter")
	}

	byCategory, err := reg.ByCategory("employment")
	if err != nil {
		t.Fatalf("ByCategory: %v", err)
	}
	if byCategory != Adapter(stub) {
		t.Fatal("ByCategory returned a different adapter")
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry(NewStub("criminal"))

	if _, err := reg.ByCode("ACME"); !domainerrors.IsCode(err, domainerrors.CodeVendorUnknown) {
		t.Fatalf("ByCode error = %v, want %s", err, domainerrors.CodeVendorUnknown)
	}
	if _, err := reg.ByCategory("driving"); !domainerrors.IsCode(err, domainerrors.CodeVendorUnknown) {
		t.Fatalf("ByCategory error = %v, want %s", err, domainerrors.CodeVendorUnknown)
	}
}

func TestRegistryFirstCategoryClaimWins(t *testing.T) {
	first := NewStub("criminal")
	second := NewStub("criminal")
	reg := NewRegistry(first, second)

	adapter, err := reg.ByCategory("criminal")
	if err != nil {
		t.Fatalf("ByCategory: %v", err)
	}
	if adapter != Adapter(first) {
		t.Fatal("later adapter shadowed an earlier category claim")
	}
}

func TestStubDispatchReferences(t *testing.T) {
	stub := NewStub("criminal")
	svc := newTestService(t)

	firstResp, err := stub.Dispatch(context.Background(), svc)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.HasPrefix(firstResp.VendorReferenceID, "STUB-"+svc.ID) {
		t.Fatalf("VendorReferenceID = %q", firstResp.VendorReferenceID)
	}

	secondResp, err := stub.Dispatch(context.Background(), svc)
	if err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}
	if firstResp.VendorReferenceID == secondResp.VendorReferenceID {
		t.Fatal("stub reused a reference id")
	}
}

func TestStubParseCallback(t *testing.T) {
	stub := NewStub("criminal")

	payload := []byte(`{
		"status": "hit",
		"records": [
			{"type": "criminal", "data": {
				"id": "rec-1",
				"jurisdiction": "US-WA-King",
				"raw_hash": "abc123",
				"offense": "theft",
				"disposition": "convicted",
				"severity": "misdemeanor"
			}}
		]
	}`)
	result, err := stub.ParseCallback(context.Background(), payload)
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}
	if result.Status != service.ResultHit {
		t.Fatalf("Status = %s, want %s", result.Status, service.ResultHit)
	}
	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(result.Records))
	}
}

func TestStubParseCallbackRejectsBadStatus(t *testing.T) {
	stub := NewStub("criminal")
	_, err := stub.ParseCallback(context.Background(), []byte(`{"status":"maybe"}`))
	if !domainerrors.IsCode(err, domainerrors.CodeVendorCallbackInvalid) {
		t.Fatalf("ParseCallback error = %v, want %s", err, domainerrors.CodeVendorCallbackInvalid)
	}
}

func TestStubParseCallbackRejectsMalformedJSON(t *testing.T) {
	stub := NewStub("criminal")
	_, err := stub.ParseCallback(context.Background(), []byte(`{`))
	if !domainerrors.IsCode(err, domainerrors.CodeVendorCallbackInvalid) {
		t.Fatalf("ParseCallback error = %v, want %s", err, domainerrors.CodeVendorCallbackInvalid)
	}
}

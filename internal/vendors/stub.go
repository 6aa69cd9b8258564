package vendors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/record"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/service"
	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
)

// StubCode is the vendor code of the built-in stub adapter.
const StubCode = "STUB"

// Stub is a vendor adapter that acknowledges every dispatch immediately.
// It backs local development and integration tests; real vendor adapters
// register alongside it and shadow its categories.
type Stub struct {
	categories []string
	nextRef    int
}

// NewStub returns a stub adapter claiming the given categories.
func NewStub(categories ...string) *Stub {
	return &Stub{categories: categories}
}

func (s *Stub) Code() string { return StubCode }

func (s *Stub) Categories() []string { return s.categories }

// Dispatch assigns a deterministic reference id per call.
func (s *Stub) Dispatch(_ context.Context, svc *service.Service) (DispatchResponse, error) {
	s.nextRef++
	return DispatchResponse{
		VendorReferenceID: fmt.Sprintf("STUB-%s-%d", svc.ID, s.nextRef),
	}, nil
}

// stubCallback is the stub's callback wire format.
type stubCallback struct {
	Status  string            `json:"status"`
	Records []json.RawMessage `json:"records,omitempty"`
}

// ParseCallback decodes the stub callback format, a thin JSON envelope over
// the normalized record codec.
func (s *Stub) ParseCallback(_ context.Context, payload []byte) (service.Result, error) {
	var callback stubCallback
	if err := json.Unmarshal(payload, &callback); err != nil {
		return service.Result{}, domainerrors.Newf(domainerrors.CodeVendorCallbackInvalid, "decode callback: %v", err)
	}
	status := service.ResultStatus(callback.Status)
	if !status.IsValid() {
		return service.Result{}, domainerrors.Newf(domainerrors.CodeVendorCallbackInvalid, "unknown result status %q", callback.Status)
	}
	records := make([]record.Record, 0, len(callback.Records))
	for _, raw := range callback.Records {
		rec, err := record.Decode(raw)
		if err != nil {
			return service.Result{}, domainerrors.Newf(domainerrors.CodeVendorCallbackInvalid, "decode record: %v", err)
		}
		records = append(records, rec)
	}
	return service.Result{Status: status, Records: records}, nil
}

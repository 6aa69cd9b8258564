// Package vendors holds the vendor adapter contract and registry.
//
// One adapter exists per external vendor integration. Orchestration selects
// an adapter by service category when no vendor is assigned yet, or by
// vendor code when one is. Adapters own the wire formats of their vendor;
// the rest of the system only sees dispatch references and normalized
// results.
package vendors

import (
	"context"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/service"
	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
)

// DispatchResponse carries the vendor's acknowledgement of a dispatch.
type DispatchResponse struct {
	VendorReferenceID string
}

// Adapter is implemented once per vendor integration.
type Adapter interface {
	// Code identifies the vendor, e.g. "STUB".
	Code() string
	// Categories lists the service categories the vendor can fulfill.
	Categories() []string
	// Dispatch submits the service to the vendor. The context carries the
	// dispatch timeout; an error means the attempt failed and counts
	// against the retry budget.
	Dispatch(ctx context.Context, svc *service.Service) (DispatchResponse, error)
	// ParseCallback decodes a raw vendor callback payload into a result.
	ParseCallback(ctx context.Context, payload []byte) (service.Result, error)
}

// Registry resolves adapters by vendor code or by service category.
type Registry struct {
	byCode     map[string]Adapter
	byCategory map[string]Adapter
}

// NewRegistry builds a registry over the given adapters. When two adapters
// claim the same category, the first registered wins.
func NewRegistry(adapters ...Adapter) *Registry {
	reg := &Registry{
		byCode:     make(map[string]Adapter),
		byCategory: make(map[string]Adapter),
	}
	for _, adapter := range adapters {
		reg.byCode[adapter.Code()] = adapter
		for _, category := range adapter.Categories() {
			if _, ok := reg.byCategory[category]; !ok {
				reg.byCategory[category] = adapter
			}
		}
	}
	return reg
}

// ByCode returns the adapter registered under the given vendor code.
func (r *Registry) ByCode(code string) (Adapter, error) {
	adapter, ok := r.byCode[code]
	if !ok {
		return nil, domainerrors.Newf(domainerrors.CodeVendorUnknown, "no adapter for vendor code %q", code)
	}
	return adapter, nil
}

// ByCategory returns the adapter that fulfills the given service category.
func (r *Registry) ByCategory(category string) (Adapter, error) {
	adapter, ok := r.byCategory[category]
	if !ok {
		return nil, domainerrors.Newf(domainerrors.CodeVendorUnknown, "no adapter for category %q", category)
	}
	return adapter, nil
}

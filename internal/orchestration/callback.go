package orchestration

import (
	"context"
	"log"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/service"
	"github.com/Turnage-Digital/Holmes-sub001/internal/platform/timeouts"
)

// AcknowledgeService records a vendor acknowledgement. The transition is a
// no-op outside the dispatched status, so redeliveries are harmless.
func (e *Engine) AcknowledgeService(ctx context.Context, serviceID string) (*service.Service, error) {
	return e.serviceCommand(ctx, serviceID, func(svc *service.Service) error {
		svc.MarkInProgress(e.now())
		return nil
	})
}

// ProcessCallback applies a vendor's result callback to the service it
// references. Vendors deliver at least once: a callback for an already
// terminal service is a no-op success, never an error. After a result lands
// the order's progress is re-evaluated.
func (e *Engine) ProcessCallback(ctx context.Context, vendorCode, vendorReferenceID string, payload []byte) (*service.Service, error) {
	svc, err := e.services.GetServiceByVendorReference(ctx, vendorCode, vendorReferenceID)
	if err != nil {
		return nil, err
	}
	if svc.IsTerminal() {
		return svc, nil
	}

	adapter, err := e.registry.ByCode(vendorCode)
	if err != nil {
		return nil, err
	}
	parseCtx, cancel := context.WithTimeout(ctx, timeouts.VendorCallbackParse)
	result, err := adapter.ParseCallback(parseCtx, payload)
	cancel()
	if err != nil {
		return nil, err
	}

	svc, err = e.serviceCommand(ctx, svc.ID, func(svc *service.Service) error {
		if svc.IsTerminal() {
			return nil
		}
		return svc.RecordResult(result, e.now())
	})
	if err != nil {
		return nil, err
	}

	if _, err := e.EvaluateOrderProgress(ctx, svc.OrderID); err != nil {
		log.Printf("evaluate order %s progress: %v", svc.OrderID, err)
	}
	return svc, nil
}

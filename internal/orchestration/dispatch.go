package orchestration

import (
	"context"
	"fmt"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/service"
	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
	"github.com/Turnage-Digital/Holmes-sub001/internal/platform/timeouts"
	"github.com/Turnage-Digital/Holmes-sub001/internal/vendors"
)

// DispatchService hands a pending service to its vendor. With no vendor
// assigned, an adapter is selected by category and its code assigned. The
// adapter call runs outside any aggregate save; a failed call still consumes
// an attempt through the dispatch transition. While the retry budget holds
// the service is automatically returned to pending and dispatched again;
// once the budget is out the service stays failed and the dispatch error is
// returned alongside it.
func (e *Engine) DispatchService(ctx context.Context, serviceID string) (*service.Service, error) {
	for {
		svc, err := e.services.GetService(ctx, serviceID)
		if err != nil {
			return nil, err
		}
		if svc.Status != service.StatusPending {
			return nil, domainerrors.Newf(domainerrors.CodeServiceNotPending, "dispatch requires pending status, have %s", svc.Status)
		}
		adapter, err := e.adapterFor(svc)
		if err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, timeouts.VendorDispatch)
		resp, dispatchErr := adapter.Dispatch(callCtx, svc)
		cancel()

		if dispatchErr == nil {
			return e.serviceCommand(ctx, serviceID, func(svc *service.Service) error {
				if svc.VendorCode == "" {
					if err := svc.AssignVendor(adapter.Code(), e.now()); err != nil {
						return err
					}
				}
				return svc.Dispatch(resp.VendorReferenceID, e.now())
			})
		}

		failed, err := e.serviceCommand(ctx, serviceID, func(svc *service.Service) error {
			if svc.VendorCode == "" {
				if err := svc.AssignVendor(adapter.Code(), e.now()); err != nil {
					return err
				}
			}
			// The attempt is consumed through Dispatch even though the
			// vendor never acknowledged; the synthetic reference keeps the
			// transition legal and can never match a vendor callback.
			if err := svc.Dispatch(failedReference(svc), e.now()); err != nil {
				return err
			}
			return svc.Fail(dispatchErr.Error(), e.now())
		})
		if err != nil {
			return nil, err
		}
		if !failed.CanRetry() {
			return failed, domainerrors.Newf(
				domainerrors.CodeVendorDispatchFailed,
				"dispatch failed after %d of %d attempts: %v",
				failed.AttemptCount, failed.MaxAttempts, dispatchErr,
			)
		}
		if _, err := e.serviceCommand(ctx, serviceID, func(svc *service.Service) error {
			return svc.Retry(e.now())
		}); err != nil {
			return nil, err
		}
	}
}

// RetryService returns a failed service to pending and dispatches it again.
// The aggregate enforces the retry budget.
func (e *Engine) RetryService(ctx context.Context, serviceID string) (*service.Service, error) {
	if _, err := e.serviceCommand(ctx, serviceID, func(svc *service.Service) error {
		return svc.Retry(e.now())
	}); err != nil {
		return nil, err
	}
	return e.DispatchService(ctx, serviceID)
}

// CancelService withdraws a service.
func (e *Engine) CancelService(ctx context.Context, serviceID, reason string) (*service.Service, error) {
	return e.serviceCommand(ctx, serviceID, func(svc *service.Service) error {
		return svc.Cancel(reason, e.now())
	})
}

func (e *Engine) adapterFor(svc *service.Service) (vendors.Adapter, error) {
	if svc.VendorCode != "" {
		return e.registry.ByCode(svc.VendorCode)
	}
	return e.registry.ByCategory(svc.Category)
}

func failedReference(svc *service.Service) string {
	return fmt.Sprintf("failed-%s-%d", svc.ID, svc.AttemptCount+1)
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/areebabashir/intrnecommerceproj1/internal/platform/httpx"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/requestctx"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// writeStoreError maps cart, wishlist, catalog and checkout failures onto the JSON error envelope.
func writeStoreError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var insufficient *services.InsufficientOrderValueError
	var invalidStep *services.CheckoutValidationError

	switch {
	case errors.As(err, &insufficient):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_order_value", err.Error(), http.StatusUnprocessableEntity).
			WithDetails(map[string]any{
				"required_minimum": insufficient.Required.StringFixed(2),
				"subtotal":         insufficient.Subtotal.StringFixed(2),
			}))
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "Invalid coupon code", http.StatusNotFound))
	case errors.As(err, &invalidStep):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_step_invalid", "please correct the highlighted fields", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{
				"step":   invalidStep.Step.String(),
				"fields": map[string]string(invalidStep.Fields),
			}))
	case errors.Is(err, services.ErrCheckoutInvalidField),
		errors.Is(err, services.ErrCartInvalidInput),
		errors.Is(err, services.ErrWishlistInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_transition_invalid", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "product catalog is unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrCartUnavailable), errors.Is(err, services.ErrSessionIDRequired):
		httpx.WriteError(ctx, w, httpx.NewError("session_unavailable", "shopping session is unavailable", http.StatusServiceUnavailable))
	default:
		requestctx.Logger(ctx).Error("unhandled store error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "request failed", http.StatusInternalServerError))
	}
}

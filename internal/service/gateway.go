package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dsilva06/fitzy-sub001/internal/model"
	"github.com/dsilva06/fitzy-sub001/internal/settlement"
)

// OfflineGateway implements settlement.Gateway for the manual payment
// methods (ZELLE, PAGO_MOVIL, BINANCE): the member transfers out of
// band and submits the transfer reference with the checkout. The
// gateway only validates the submission; actual funds verification
// happens in back office. CARD payments are accepted as-is here since
// no processor integration exists in this deployment.
type OfflineGateway struct{}

// NewOfflineGateway returns the gateway.
func NewOfflineGateway() *OfflineGateway { return &OfflineGateway{} }

// Capture validates the request and mints a capture reference. Manual
// methods must carry a non-empty transfer reference in meta; a missing
// one is treated as a decline rather than an infrastructure error so
// the checkout fails cleanly.
func (g *OfflineGateway) Capture(_ context.Context, method string, amountCents uint32, meta string) (string, error) {
	if amountCents == 0 {
		return "", fmt.Errorf("capture %s: %w", method, settlement.ErrPaymentDeclined)
	}
	if method != model.MethodCard && strings.TrimSpace(meta) == "" {
		return "", fmt.Errorf("capture %s: missing transfer reference: %w", method, settlement.ErrPaymentDeclined)
	}
	return uuid.NewString(), nil
}

// Refund records the reversal. Manual methods are refunded out of band
// too, so there is nothing to call; the settlement engine's receipt
// stamp is the durable record the back office works from.
func (g *OfflineGateway) Refund(_ context.Context, _ string, _ uint32) error {
	return nil
}

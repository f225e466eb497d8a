package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/course-checkout/internal/core/domain"
	"github.com/rl1809/course-checkout/internal/core/signature"
	"github.com/rl1809/course-checkout/internal/port"
)

type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadySettled Outcome = "already_settled"
)

type ReconcileConfig struct {
	AccessKey       string
	SecretKey       string
	VerifySignature bool
}

type Fulfiller interface {
	Fulfill(ctx context.Context, order domain.Order, effects domain.Effects) FulfillmentReport
}

type ReconcileResult struct {
	Order       *domain.Order
	Outcome     Outcome
	Transition  domain.Transition
	Fulfillment *FulfillmentReport
}

// ReconcileService applies payment outcomes to the ledger. Every entry point
// funnels into settle, whose conditional update is the idempotency guarantee.
type ReconcileService struct {
	ledger    port.OrderLedger
	fulfiller Fulfiller
	cfg       ReconcileConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewReconcileService(ledger port.OrderLedger, fulfiller Fulfiller, cfg ReconcileConfig, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		ledger:    ledger,
		fulfiller: fulfiller,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

type settleRequest struct {
	source  domain.CallbackSource
	actor   string
	payload json.RawMessage
	decide  func(current domain.OrderStatus) (domain.Transition, error)
	inspect func(order *domain.Order)
}

// HandleIPN verifies and applies a gateway callback. raw is the body exactly
// as received and is stored for audit.
func (s *ReconcileService) HandleIPN(ctx context.Context, cb domain.PaymentCallback, raw []byte) (*ReconcileResult, error) {
	if s.cfg.VerifySignature && !signature.VerifyCallback(s.cfg.AccessKey, s.cfg.SecretKey, cb) {
		s.logger.Error("rejected callback",
			slog.String("alert", "signature_invalid"),
			slog.String("order_id", cb.OrderID),
			slog.String("partner_code", cb.PartnerCode),
			slog.Int("result_code", cb.ResultCode),
		)
		return nil, domain.ErrSignatureInvalid
	}

	return s.settle(ctx, cb.OrderID, settleRequest{
		source:  domain.SourceIPN,
		payload: json.RawMessage(raw),
		decide: func(current domain.OrderStatus) (domain.Transition, error) {
			return domain.Decide(current, cb.ResultCode)
		},
		inspect: func(order *domain.Order) {
			if cb.Amount != order.Amount {
				s.logger.Warn("callback amount differs from order amount",
					slog.String("alert", "amount_mismatch"),
					slog.String("order_id", order.OrderID),
					slog.Int64("order_amount", order.Amount),
					slog.Int64("callback_amount", cb.Amount),
				)
			}
		},
	})
}

// DevMarkPaid settles an order as if the gateway had reported success.
// Callers gate it to non-production environments.
func (s *ReconcileService) DevMarkPaid(ctx context.Context, orderID string) (*ReconcileResult, error) {
	payload, _ := json.Marshal(map[string]any{
		"orderId":    orderID,
		"resultCode": domain.ResultCodeSuccess,
		"message":    "dev shortcut",
	})
	return s.settle(ctx, orderID, settleRequest{
		source:  domain.SourceDev,
		payload: payload,
		decide: func(current domain.OrderStatus) (domain.Transition, error) {
			return domain.Decide(current, domain.ResultCodeSuccess)
		},
	})
}

// ForceProcess sets an order's status on behalf of an administrator,
// bypassing signature verification.
func (s *ReconcileService) ForceProcess(ctx context.Context, orderID string, target domain.OrderStatus, actor string) (*ReconcileResult, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", domain.ErrValidation)
	}
	if target == "" {
		target = domain.OrderStatusPaid
	}
	payload, _ := json.Marshal(map[string]any{
		"orderId": orderID,
		"status":  target,
		"actor":   actor,
	})
	return s.settle(ctx, orderID, settleRequest{
		source:  domain.SourceAdmin,
		actor:   actor,
		payload: payload,
		decide: func(current domain.OrderStatus) (domain.Transition, error) {
			return domain.DecideForced(current, target)
		},
	})
}

func (s *ReconcileService) settle(ctx context.Context, orderID string, req settleRequest) (*ReconcileResult, error) {
	log := s.logger.With(slog.String("order_id", orderID), slog.String("source", string(req.source)))

	order, err := s.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if order == nil {
		log.Warn("callback references unknown order", slog.String("alert", "order_not_found"))
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	if req.inspect != nil {
		req.inspect(order)
	}

	transition, err := req.decide(order.Status)
	if errors.Is(err, domain.ErrAlreadySettled) {
		log.Info("order already settled", slog.String("status", string(order.Status)))
		return &ReconcileResult{Order: order, Outcome: OutcomeAlreadySettled}, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	info := order.PaymentInfo
	info.Callback = req.payload
	info.Source = req.source
	info.Actor = req.actor
	info.ProcessingID = uuid.NewString()
	info.ProcessedAt = &now

	err = s.ledger.TransitionOrder(ctx, orderID, transition.From, transition.To, info)
	if errors.Is(err, port.ErrStatusConflict) {
		// Another delivery won the conditional update; report its outcome.
		current, loadErr := s.ledger.GetOrder(ctx, orderID)
		if loadErr != nil {
			return nil, fmt.Errorf("reload order %s: %w", orderID, loadErr)
		}
		if current == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}
		log.Info("lost settlement race", slog.String("status", string(current.Status)))
		return &ReconcileResult{Order: current, Outcome: OutcomeAlreadySettled}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transition order %s: %w", orderID, err)
	}

	order.Status = transition.To
	order.PaymentInfo = info
	order.UpdatedAt = now
	log.Info("order settled",
		slog.String("from", string(transition.From)),
		slog.String("to", string(transition.To)),
		slog.String("processing_id", info.ProcessingID),
	)

	result := &ReconcileResult{Order: order, Outcome: OutcomeApplied, Transition: transition}
	if transition.Effects.Any() {
		report := s.fulfiller.Fulfill(ctx, *order, transition.Effects)
		result.Fulfillment = &report
	}
	return result, nil
}

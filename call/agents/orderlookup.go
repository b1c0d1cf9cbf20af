// Package agents holds the concrete agent handler implementations and
// their registration into the lifecycle coordinator.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
	commercex "github.com/calyhq/caly-voice-agent/pkg/commerce"
)

// CommerceAPI is the slice of the commerce client the order agents use.
type CommerceAPI interface {
	GetOrder(ctx context.Context, orderID string) (*commercex.Order, error)
	GetTracking(ctx context.Context, trackingNumber string) (*commercex.Tracking, error)
}

// OrderLookup answers "where is my order" requests: it fetches the order
// from the commerce backend, optionally its courier tracking, records an
// action audit row, and produces a context update for the speech channel.
type OrderLookup struct {
	callID   string
	commerce CommerceAPI
	actions  contractx.ActionStore
	now      func() time.Time
}

func NewOrderLookup(callID string, commerce CommerceAPI, actions contractx.ActionStore) *OrderLookup {
	return &OrderLookup{callID: callID, commerce: commerce, actions: actions, now: time.Now}
}

func (a *OrderLookup) RequiredFields() []string { return []string{"order_id"} }

func (a *OrderLookup) PromptForField(field string) string {
	if field == "order_id" {
		return `Please ask user for their order number in Hindi: "Ji sir, apna order number batayiye please"`
	}
	return fmt.Sprintf("Please ask the user for their %s.", field)
}

func (a *OrderLookup) Execute(ctx context.Context, data map[string]string) (contractx.AgentResult, error) {
	orderID := data["order_id"]

	actionID := a.recordAction(ctx, orderID)

	order, err := a.commerce.GetOrder(ctx, orderID)
	if errors.Is(err, commercex.ErrOrderNotFound) {
		a.finishAction(ctx, actionID, "failed", map[string]any{"error": "order not found"})
		return contractx.AgentResult{
			Success:       false,
			ContextUpdate: fmt.Sprintf("Order ID %s not found in system. Please verify the order number.", orderID),
		}, nil
	}
	if err != nil {
		a.finishAction(ctx, actionID, "failed", map[string]any{"error": err.Error()})
		return contractx.AgentResult{}, fmt.Errorf("fetch order %s: %w", orderID, err)
	}

	var tracking *commercex.Tracking
	if order.TrackingNumber != "" && (order.FulfillmentStatus == "fulfilled" || order.FulfillmentStatus == "partial") {
		tracking, err = a.commerce.GetTracking(ctx, order.TrackingNumber)
		if err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Msg("could not fetch tracking info")
			tracking = nil
		}
	}

	a.finishAction(ctx, actionID, "success", map[string]any{"order": order, "tracking": tracking})

	return contractx.AgentResult{
		Success:       true,
		ContextUpdate: a.formatContextUpdate(order, tracking),
		Data:          map[string]any{"order": order, "tracking": tracking},
	}, nil
}

func (a *OrderLookup) recordAction(ctx context.Context, orderID string) string {
	if a.actions == nil {
		return ""
	}
	actionID, err := a.actions.CreateAction(ctx, a.callID, "lookup_order", map[string]any{"order_id": orderID})
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("could not record action")
		return ""
	}
	return actionID
}

func (a *OrderLookup) finishAction(ctx context.Context, actionID, status string, result map[string]any) {
	if a.actions == nil || actionID == "" {
		return
	}
	if err := a.actions.UpdateActionStatus(ctx, actionID, status, result); err != nil {
		log.Error().Err(err).Str("action_id", actionID).Msg("could not update action status")
	}
}

func (a *OrderLookup) formatContextUpdate(order *commercex.Order, tracking *commercex.Tracking) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s information:\n", order.OrderNumber)
	fmt.Fprintf(&b, "- Status: %s\n", displayStatus(order.FulfillmentStatus))
	fmt.Fprintf(&b, "- Payment: %s\n", order.FinancialStatus)
	fmt.Fprintf(&b, "- Total: ₹%s\n", order.TotalPrice)

	if len(order.LineItems) > 0 {
		names := make([]string, 0, len(order.LineItems))
		for _, item := range order.LineItems {
			names = append(names, item.Name)
		}
		fmt.Fprintf(&b, "- Items: %s\n", strings.Join(names, ", "))
	}

	if tracking != nil {
		b.WriteString("\nTracking Information:\n")
		fmt.Fprintf(&b, "- Current Status: %s\n", tracking.Status)
		fmt.Fprintf(&b, "- Location: %s\n", tracking.CurrentLocation)
		fmt.Fprintf(&b, "- Expected Delivery: %s\n", a.displayETA(tracking.ETA))
		fmt.Fprintf(&b, "- Last Update: %s\n", tracking.LastUpdate)
	}

	b.WriteString("\nTell customer this information in natural Hindi/Hinglish.")
	return b.String()
}

func displayStatus(status string) string {
	switch status {
	case "fulfilled":
		return "Delivered"
	case "partial":
		return "Partially Shipped"
	case "unfulfilled":
		return "Processing"
	case "", "null":
		return "Order Placed"
	}
	return status
}

func (a *OrderLookup) displayETA(eta string) string {
	ts, err := time.Parse(time.RFC3339, eta)
	if err != nil {
		return eta
	}
	now := a.now()
	if sameDay(ts, now) {
		return "Today evening"
	}
	if sameDay(ts, now.AddDate(0, 0, 1)) {
		return "Tomorrow"
	}
	return ts.Format("2 Jan")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

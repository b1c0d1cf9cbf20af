package agents

import (
	"context"
	"fmt"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

// fixedAgent is the shape shared by the not-yet-integrated handlers:
// a required order id and a canned context update once it is known.
type fixedAgent struct {
	prompt        string
	contextUpdate string
}

func (a fixedAgent) RequiredFields() []string { return []string{"order_id"} }

func (a fixedAgent) PromptForField(field string) string {
	if field == "order_id" {
		return a.prompt
	}
	return fmt.Sprintf("Please ask the user for their %s.", field)
}

func (a fixedAgent) Execute(_ context.Context, _ map[string]string) (contractx.AgentResult, error) {
	return contractx.AgentResult{
		Success:       true,
		ContextUpdate: a.contextUpdate,
	}, nil
}

const orderIDPrompt = `Please ask user for their order number in Hindi: "Ji sir, apna order number batayiye please"`

// NewRefund processes refund requests.
func NewRefund() contractx.AgentHandler {
	return fixedAgent{
		prompt:        orderIDPrompt,
		contextUpdate: "Refund request processed. Amount will be credited in 5-7 business days.",
	}
}

// NewCancelOrder cancels an order.
func NewCancelOrder() contractx.AgentHandler {
	return fixedAgent{
		prompt:        orderIDPrompt,
		contextUpdate: "Order cancelled successfully. Refund will be processed within 24 hours.",
	}
}

// NewTracking answers delivery-time questions.
func NewTracking() contractx.AgentHandler {
	return fixedAgent{
		prompt:        orderIDPrompt,
		contextUpdate: "Package is out for delivery. Expected arrival: Today by 6 PM.",
	}
}

// NewComplaint opens a support ticket.
func NewComplaint() contractx.AgentHandler {
	return fixedAgent{
		prompt:        orderIDPrompt,
		contextUpdate: "Support ticket created. Ticket ID: TKT123456. Team will contact within 24 hours.",
	}
}

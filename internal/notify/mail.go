package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dbayan/storefront/internal/storage"
)

// Mail text builders. The wording mirrors what the storefront has always
// sent: one confirmation to the buyer and one summary to the operator.

func formatFulfilled(lines []storage.FulfilledLine) string {
	if len(lines) == 0 {
		return "None"
	}
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = fmt.Sprintf("%s x %d at $%.2f each", l.Name, l.Quantity, l.UnitPrice)
	}
	return strings.Join(parts, "\n")
}

func formatRejected(lines []storage.RejectedLine) string {
	if len(lines) == 0 {
		return "None"
	}
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Reason
	}
	return strings.Join(parts, "\n")
}

// OrderConfirmation is the buyer's copy of an order result.
func OrderConfirmation(to string, result *storage.OrderResult) Message {
	return Message{
		To:      to,
		Subject: "Your Order Confirmation",
		Body: fmt.Sprintf("Your order:\n%s\n\nNot in stock:\n%s",
			formatFulfilled(result.Fulfilled), formatRejected(result.Rejected)),
	}
}

// OrderNotice is the operator's copy, including the total.
func OrderNotice(operator, buyerName, buyerEmail string, result *storage.OrderResult) Message {
	return Message{
		To:      operator,
		Subject: fmt.Sprintf("New Order from %s", buyerName),
		Body: fmt.Sprintf("Order from %s (%s):\n%s\nTotal price: $%.2f\n\nNot fulfilled:\n%s",
			buyerName, buyerEmail,
			formatFulfilled(result.Fulfilled), result.Total, formatRejected(result.Rejected)),
	}
}

// PickupConfirmation confirms a scheduled pickup slot to the buyer.
func PickupConfirmation(to string, pickupAt time.Time) Message {
	return Message{
		To:      to,
		Subject: "Pickup Scheduled",
		Body:    fmt.Sprintf("Your pickup is scheduled for %s.", pickupAt.Format("Mon, 02 Jan 2006 15:04")),
	}
}

// PickupNotice tells the operator who is coming and when.
func PickupNotice(operator, buyerName, buyerEmail string, pickupAt time.Time) Message {
	return Message{
		To:      operator,
		Subject: fmt.Sprintf("Pickup scheduled by %s", buyerName),
		Body: fmt.Sprintf("%s (%s) scheduled a pickup for %s.",
			buyerName, buyerEmail, pickupAt.Format("Mon, 02 Jan 2006 15:04")),
	}
}

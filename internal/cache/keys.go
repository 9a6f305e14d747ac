package cache

import "time"

const (
	ListingTTL = time.Hour
	SearchTTL  = 2 * time.Minute
)

func EventTicketsKey(eventID string) string {
	return "tickets:event:" + eventID
}

func TicketKey(ticketID string) string {
	return "ticket:" + ticketID
}

func UserPurchasesKey(userID string) string {
	return "purchases:user:" + userID
}

func PurchaseKey(purchaseID string) string {
	return "purchase:" + purchaseID
}

func EventSalesKey(eventID string) string {
	return "analytics:event:" + eventID
}

package kvstore

import "strings"

const keyNamespace = "support_chat"

// Keys builds the fixed storage keys, optionally scoped to a prefix such as
// the signed-in user so several accounts can share one store.
type Keys struct {
	Prefix string
}

func (k Keys) key(name string) string {
	if k.Prefix == "" {
		return keyNamespace + ":" + name
	}
	return strings.TrimSuffix(k.Prefix, ":") + ":" + keyNamespace + ":" + name
}

// CurrentTicket holds the active ticket.
func (k Keys) CurrentTicket() string { return k.key("current_ticket") }

// TicketHistory holds the user's recent tickets.
func (k Keys) TicketHistory() string { return k.key("ticket_history") }

// OfflineQueue holds messages waiting for connectivity.
func (k Keys) OfflineQueue() string { return k.key("offline_queue") }

// Draft holds unsent compose text.
func (k Keys) Draft() string { return k.key("draft_message") }

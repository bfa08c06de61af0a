package push

import "encoding/json"

// Message is one push request for a single device token.
type Message struct {
	To       string          `json:"to"`
	Title    string          `json:"title"`
	Body     string          `json:"body"`
	Data     json.RawMessage `json:"data,omitempty"`
	Sound    string          `json:"sound,omitempty"`
	Priority string          `json:"priority,omitempty"`
}

// Ticket is the gateway's receipt for an accepted message.
type Ticket struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ticketDetails struct {
	Error string `json:"error"`
}

type rawTicket struct {
	ID      string         `json:"id"`
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Details *ticketDetails `json:"details"`
}

type sendResponse struct {
	Data   []rawTicket     `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

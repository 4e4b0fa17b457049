package types

// Inbound webhook shapes, shared by the HTTP layer and the flow services.
// One POST carries a batch of independent entries; each entry is either a
// messenger event batch or a feed change batch.

type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time,omitempty"`
	Messaging []MessagingEvent `json:"messaging,omitempty"`
	Changes   []ChangeEvent    `json:"changes,omitempty"`
}

type MessagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Referral *WebhookReferral `json:"referral,omitempty"`
	Message  *InboundMessage  `json:"message,omitempty"`
	Postback *InboundPostback `json:"postback,omitempty"`
}

type WebhookReferral struct {
	Ref    string `json:"ref"`
	Source string `json:"source,omitempty"`
	Type   string `json:"type,omitempty"`
}

type InboundMessage struct {
	MID        string           `json:"mid,omitempty"`
	Text       string           `json:"text,omitempty"`
	QuickReply *InboundQuickReply `json:"quick_reply,omitempty"`
}

type InboundQuickReply struct {
	Payload string `json:"payload"`
}

type InboundPostback struct {
	Payload  string           `json:"payload,omitempty"`
	Referral *WebhookReferral `json:"referral,omitempty"`
}

type ChangeEvent struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	Item        string `json:"item"`
	Verb        string `json:"verb"`
	PostID      string `json:"post_id"`
	CommentID   string `json:"comment_id"`
	ParentID    string `json:"parent_id,omitempty"`
	Message     string `json:"message,omitempty"`
	Photo       string `json:"photo,omitempty"`
	Video       string `json:"video,omitempty"`
	CreatedTime int64  `json:"created_time,omitempty"`
	From        struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"from"`
}

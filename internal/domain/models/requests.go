package models

// Requests for dashboard HTTP endpoints. Defined in domain for consistency and reuse.

type NavigateRequest struct {
	Screen string         `json:"screen" validate:"required,min=1,max=128"`
	Params map[string]any `json:"params"`
}

type HistoryRequest struct {
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}

package order

import "time"

// QueryOrdersModel represents filter parameters for querying orders.
type QueryOrdersModel struct {
	UserIDs         []string        `json:"userIds,omitempty"`
	Statuses        []Status        `json:"statuses,omitempty"`
	PaymentStatuses []PaymentStatus `json:"paymentStatuses,omitempty"`
	UpdatedBefore   time.Time       `json:"updatedBefore,omitempty"`
	Limit           int             `json:"limit,omitempty"`
	Offset          int             `json:"offset,omitempty"`
	IncludeItems    bool            `json:"includeItems,omitempty"`
}

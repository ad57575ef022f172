package domain

// SyncBook is the wire form of a book's reading state.
type SyncBook struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Creator       string `json:"creator"`
	Language      string `json:"language"`
	LastReadIndex int    `json:"last_read_index"`
	TotalIndex    int    `json:"total_index"`
	UpdatedAt     int64  `json:"updated_at"`
}

// SyncRequest is the body of POST /user/sync.
type SyncRequest struct {
	UserUUID string     `json:"user_uuid" validate:"required,uuid"`
	Data     []SyncBook `json:"data" validate:"dive"`
}

// SyncResponse is the reply to POST /user/sync. UpdatedBooks are the
// server copies newer than the client's, ServerUpdates the titles the
// server took from the request.
type SyncResponse struct {
	Success       bool       `json:"success"`
	Error         string     `json:"error,omitempty"`
	UpdatedBooks  []SyncBook `json:"updated_books"`
	ServerUpdates []string   `json:"server_updates"`
}

// GenerateResponse is the reply to GET /user/generate.
type GenerateResponse struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ToSync converts a record to its wire form.
func (r *BookRecord) ToSync() SyncBook {
	return SyncBook{
		Title:         r.Title,
		Creator:       r.Creator,
		Language:      r.Language,
		LastReadIndex: r.LastReadIndex,
		TotalIndex:    r.TotalIndex,
		UpdatedAt:     r.UpdatedAt,
	}
}

package domain

import "time"

type Room struct {
	ID          string `json:"id"`
	ParentID    string `json:"parent_id,omitempty"`
	DisplayName string `json:"display_name"`
}

// Name falls back to the room id when no display name is set.
func (r Room) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.ID
}

type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AsCandidate converts a stored message into a provider candidate.
func (m Message) AsCandidate(source CandidateSource, score float64) Candidate {
	return Candidate{
		ID:        m.ID,
		RoomID:    m.RoomID,
		UserID:    m.UserID,
		Content:   m.Content,
		RawScore:  score,
		Timestamp: m.CreatedAt.Unix(),
		Source:    source,
	}
}

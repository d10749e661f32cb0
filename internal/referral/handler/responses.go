package handler

// ArrivalResponse is the HTTP response for POST /events/arrival.
type ArrivalResponse struct {
	UserID     int64 `json:"user_id"`
	Attributed bool  `json:"attributed"`
}

// ProgressResponse is the HTTP response for GET /referrals/{userID}.
type ProgressResponse struct {
	UserID      int64 `json:"user_id"`
	Count       int   `json:"count"`
	Goal        int   `json:"goal"`
	Remaining   int   `json:"remaining"`
	GoalReached bool  `json:"goal_reached"`
}

// NewProgressResponse builds the progress view for a user's current count.
func NewProgressResponse(userID int64, count, goal int) *ProgressResponse {
	remaining := goal - count
	if remaining < 0 {
		remaining = 0
	}
	return &ProgressResponse{
		UserID:      userID,
		Count:       count,
		Goal:        goal,
		Remaining:   remaining,
		GoalReached: count >= goal,
	}
}

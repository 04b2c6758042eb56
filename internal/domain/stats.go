package domain

// TaskStats aggregates a user's tasks for dashboards and chat commands.
type TaskStats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Pending        int     `json:"pending"`
	InProgress     int     `json:"in_progress"`
	Overdue        int     `json:"overdue"`
	DueToday       int     `json:"due_today"`
	DueTomorrow    int     `json:"due_tomorrow"`
	HighPriority   int     `json:"high_priority"`
	CompletionRate float64 `json:"completion_rate"`
}

// DailySummary holds the counts reported in a user's daily digest.
type DailySummary struct {
	CompletedToday int `json:"completed_today"`
	Open           int `json:"open"`
	Overdue        int `json:"overdue"`
	CreatedToday   int `json:"created_today"`
}

// FinalizeRate fills CompletionRate as a percentage rounded to one decimal.
func (s *TaskStats) FinalizeRate() {
	if s.Total == 0 {
		s.CompletionRate = 0
		return
	}
	rate := float64(s.Completed) / float64(s.Total) * 100
	s.CompletionRate = float64(int(rate*10+0.5)) / 10
}

package notify

import (
	"fmt"
	"strings"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/chat"
)

// Date layouts used in rendered messages
const (
	longDateLayout  = "January 02, 2006"
	shortDateLayout = "01/02"
	timestampLayout = "January 02, 2006 at 03:04 PM"
)

// MaxRenderedDescription bounds descriptions in assignment messages.
const MaxRenderedDescription = 500

// ActionCompleteTask is the action ID of the Mark Complete button.
const ActionCompleteTask = "complete_task"

// ErrUnknownKind is returned when a job has no renderer.
var ErrUnknownKind = fmt.Errorf("unknown notification kind")

// Renderer builds chat messages for jobs. Links point at the frontend.
type Renderer struct {
	frontendURL string
}

// NewRenderer creates a renderer linking to frontendURL.
func NewRenderer(frontendURL string) *Renderer {
	return &Renderer{frontendURL: strings.TrimRight(frontendURL, "/")}
}

// Render builds the message for job, resolving its channel.
func (r *Renderer) Render(job Job) (chat.Message, error) {
	var (
		msg chat.Message
		err error
	)

	switch job.Kind {
	case KindCreated:
		msg, err = r.created(job)
	case KindAssigned:
		msg, err = r.assigned(job)
	case KindCompleted:
		msg, err = r.completed(job)
	case KindUpdated:
		msg, err = r.updated(job)
	case KindDeleted:
		msg, err = r.deleted(job)
	case KindReminder:
		msg, err = r.reminder(job)
	case KindDailySummary:
		msg, err = r.dailySummary(job)
	case KindMaintenance:
		msg, err = r.maintenance(job)
	case KindPlain:
		msg = chat.Message{Text: job.Text}
	default:
		return chat.Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, job.Kind)
	}
	if err != nil {
		return chat.Message{}, err
	}

	msg.Channel = channelFor(job)
	return msg, nil
}

// channelFor prefers an explicit channel, then the recipient's private
// channel. Empty means the sender's default channel.
func channelFor(job Job) string {
	if job.Channel != "" {
		return job.Channel
	}
	if job.Recipient != nil {
		return job.Recipient.DirectChannel()
	}
	return ""
}

func (r *Renderer) taskURL(task *TaskSnapshot) string {
	return fmt.Sprintf("%s/tasks/%s", r.frontendURL, task.ID)
}

func requireTask(job Job) (*TaskSnapshot, error) {
	if job.Task == nil {
		return nil, fmt.Errorf("%s notification has no task", job.Kind)
	}
	return job.Task, nil
}

func (r *Renderer) assigned(job Job) (chat.Message, error) {
	task, err := requireTask(job)
	if err != nil {
		return chat.Message{}, err
	}
	assignee := job.Actor
	if job.Recipient != nil {
		assignee = *job.Recipient
	}

	blocks := []chat.Block{
		chat.Header("📋 Task Assigned"),
		chat.Fields(
			"*Task:*\n"+task.Title,
			"*Assigned to:*\n"+assignee.Mention(),
			"*Assigned by:*\n"+job.Actor.Username,
			"*Priority:*\n"+strings.ToUpper(string(task.Priority)),
			"*Due Date:*\n"+task.DueDate.Format(longDateLayout),
		),
	}
	if task.Description != "" {
		blocks = append(blocks, chat.Section("*Description:*\n"+truncate(task.Description, MaxRenderedDescription)))
	}
	blocks = append(blocks, chat.Actions(
		chat.LinkButton("View Task", r.taskURL(task)),
		chat.ActionButton("Mark Complete", ActionCompleteTask, fmt.Sprintf("complete_task_%s", task.ID)),
	))

	text := fmt.Sprintf("📋 *Task Assigned*\nTask: %s\nAssigned to: %s\nAssigned by: %s\nPriority: %s",
		task.Title, assignee.Mention(), job.Actor.Username, strings.ToUpper(string(task.Priority)))
	return chat.Message{Text: text, Blocks: blocks}, nil
}

func (r *Renderer) completed(job Job) (chat.Message, error) {
	task, err := requireTask(job)
	if err != nil {
		return chat.Message{}, err
	}

	completedAt := job.CreatedAt
	if task.CompletedAt != nil {
		completedAt = *task.CompletedAt
	}

	blocks := []chat.Block{
		chat.Header("✅ Task Completed"),
		chat.Fields(
			"*Task:*\n"+task.Title,
			"*Completed by:*\n"+job.Actor.Mention(),
			"*Priority:*\n"+strings.ToUpper(string(task.Priority)),
			"*Completed:*\n"+completedAt.Format(timestampLayout),
		),
	}
	if task.Priority == domain.PriorityHigh || task.Priority == domain.PriorityCritical {
		blocks = append(blocks, chat.Section("🎉 Great job completing this high-priority task!"))
	}
	blocks = append(blocks, chat.Actions(chat.LinkButton("View Task", r.taskURL(task))))

	text := fmt.Sprintf("✅ *Task Completed*\nTask: %s\nCompleted by: %s\nPriority: %s",
		task.Title, job.Actor.Mention(), strings.ToUpper(string(task.Priority)))
	return chat.Message{Text: text, Blocks: blocks}, nil
}

func (r *Renderer) created(job Job) (chat.Message, error) {
	task, err := requireTask(job)
	if err != nil {
		return chat.Message{}, err
	}

	blocks := []chat.Block{
		chat.Header("🆕 New Task Created"),
		chat.Fields(
			"*Task:*\n"+task.Title,
			"*Created by:*\n"+job.Actor.Mention(),
			"*Priority:*\n"+strings.ToUpper(string(task.Priority)),
			"*Due Date:*\n"+task.DueDate.Format(longDateLayout),
		),
		chat.Actions(chat.LinkButton("View Task", r.taskURL(task))),
	}

	text := fmt.Sprintf("🆕 *New Task Created*\nTask: %s\nCreated by: %s\nPriority: %s",
		task.Title, job.Actor.Mention(), strings.ToUpper(string(task.Priority)))
	return chat.Message{Text: text, Blocks: blocks}, nil
}

func (r *Renderer) updated(job Job) (chat.Message, error) {
	task, err := requireTask(job)
	if err != nil {
		return chat.Message{}, err
	}

	var changes strings.Builder
	changes.WriteString("*Changes:*\n")
	for _, c := range job.Changes {
		fmt.Fprintf(&changes, "*%s:* %s → %s\n", fieldLabel(c.Field), orNone(c.Old), orNone(c.New))
	}

	blocks := []chat.Block{
		chat.Header("📝 Task Updated"),
		chat.Fields(
			"*Task:*\n"+task.Title,
			"*Updated by:*\n"+job.Actor.Mention(),
		),
		chat.Section(strings.TrimRight(changes.String(), "\n")),
		chat.Actions(chat.LinkButton("View Task", r.taskURL(task))),
	}

	text := fmt.Sprintf("📝 *Task Updated*\nTask: %s\nUpdated by: %s\n%s",
		task.Title, job.Actor.Mention(), strings.TrimRight(changes.String(), "\n"))
	return chat.Message{Text: text, Blocks: blocks}, nil
}

func (r *Renderer) deleted(job Job) (chat.Message, error) {
	task, err := requireTask(job)
	if err != nil {
		return chat.Message{}, err
	}

	blocks := []chat.Block{
		chat.Header("🗑️ Task Deleted"),
		chat.Fields(
			"*Task:*\n"+task.Title,
			"*Deleted by:*\n"+job.Actor.Mention(),
		),
	}
	text := fmt.Sprintf("🗑️ *Task Deleted*\nTask: %s\nDeleted by: %s", task.Title, job.Actor.Mention())
	return chat.Message{Text: text, Blocks: blocks}, nil
}

var reminderHeaders = map[ReminderType]string{
	ReminderOverdue:  "🚨 Overdue Tasks",
	ReminderToday:    "⏰ Tasks Due Today",
	ReminderTomorrow: "📅 Tasks Due Tomorrow",
}

func (r *Renderer) reminder(job Job) (chat.Message, error) {
	header, ok := reminderHeaders[job.ReminderType]
	if !ok {
		return chat.Message{}, fmt.Errorf("unknown reminder type %q", job.ReminderType)
	}
	if job.Recipient == nil {
		return chat.Message{}, fmt.Errorf("reminder has no recipient")
	}

	total := len(job.Tasks) + job.Overflow
	var lines strings.Builder
	for _, t := range job.Tasks {
		fmt.Fprintf(&lines, "%s *%s* (Due: %s)\n", priorityEmoji(t.Priority), t.Title, t.DueDate.Format(shortDateLayout))
	}
	if job.Overflow > 0 {
		fmt.Fprintf(&lines, "...and %d more tasks\n", job.Overflow)
	}
	list := strings.TrimRight(lines.String(), "\n")
	greeting := fmt.Sprintf("Hey %s! You have %d task(s) that need attention:", job.Recipient.Mention(), total)

	blocks := []chat.Block{
		chat.Header(header),
		chat.Section(greeting),
		chat.Section(list),
		chat.Actions(chat.LinkButton("View All Tasks",
			fmt.Sprintf("%s/tasks?filter=%s", r.frontendURL, job.ReminderType))),
	}
	text := fmt.Sprintf("%s\n%s\n%s", header, greeting, list)
	return chat.Message{Text: text, Blocks: blocks}, nil
}

func (r *Renderer) dailySummary(job Job) (chat.Message, error) {
	if job.Summary == nil {
		return chat.Message{}, fmt.Errorf("daily summary has no stats")
	}
	s := job.Summary
	intro := fmt.Sprintf("Here's your task summary for %s:", job.CreatedAt.Format(longDateLayout))

	blocks := []chat.Block{
		chat.Header("📊 Daily Task Summary"),
		chat.Section(intro),
		chat.Fields(
			fmt.Sprintf("*Completed:*\n%d", s.CompletedToday),
			fmt.Sprintf("*Pending:*\n%d", s.Open),
			fmt.Sprintf("*Overdue:*\n%d", s.Overdue),
			fmt.Sprintf("*Created Today:*\n%d", s.CreatedToday),
		),
	}
	if s.CompletedToday > 0 {
		blocks = append(blocks, chat.Section(fmt.Sprintf("🎉 Great job completing %d task(s) today!", s.CompletedToday)))
	}
	blocks = append(blocks, chat.Actions(chat.LinkButton("View All Tasks", r.frontendURL+"/tasks")))

	text := fmt.Sprintf("📊 *Daily Task Summary*\n%s\nCompleted: %d\nPending: %d\nOverdue: %d\nCreated Today: %d",
		intro, s.CompletedToday, s.Open, s.Overdue, s.CreatedToday)
	return chat.Message{Text: text, Blocks: blocks}, nil
}

func (r *Renderer) maintenance(job Job) (chat.Message, error) {
	if job.Maintenance == nil {
		return chat.Message{}, fmt.Errorf("maintenance notification has no report")
	}
	m := job.Maintenance

	title := "🧹 Maintenance Completed"
	body := fmt.Sprintf("Archived %d completed task(s) and purged %d history record(s).", m.Archived, m.Purged)
	if m.Error != "" {
		title = "⚠️ Maintenance Failed"
		body = fmt.Sprintf("Retention sweep failed: %s", m.Error)
	}

	return chat.Message{
		Text:   title + "\n" + body,
		Blocks: []chat.Block{chat.Header(title), chat.Section(body)},
	}, nil
}

func priorityEmoji(p domain.Priority) string {
	switch p {
	case domain.PriorityCritical, domain.PriorityHigh:
		return "🔴"
	case domain.PriorityMedium:
		return "🟡"
	case domain.PriorityLow:
		return "🟢"
	default:
		return "⚪"
	}
}

// fieldLabel turns a history field name into a display label.
func fieldLabel(field string) string {
	switch field {
	case "category_id":
		return "Category"
	case "assigned_to":
		return "Assigned To"
	}
	words := strings.Split(field, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

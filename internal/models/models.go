package models

import (
	"time"
)

// Mode is the pedagogical context a question is asked in.
type Mode string

const (
	ModeLesson     Mode = "lesson"
	ModeCourse     Mode = "course"
	ModeQuiz       Mode = "quiz"
	ModeAssignment Mode = "assignment"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeLesson, ModeCourse, ModeQuiz, ModeAssignment:
		return true
	}
	return false
}

// Lang is the response language of a turn.
type Lang string

const (
	LangKZ Lang = "kz"
	LangEN Lang = "en"
	LangRU Lang = "ru"
)

func (l Lang) Valid() bool {
	return l == LangKZ || l == LangEN || l == LangRU
}

// Policy is the resolved answer policy for one request.
type Policy struct {
	AllowDirectAnswers bool   `json:"allowDirectAnswers"`
	AllowFullSolutions bool   `json:"allowFullSolutions"`
	Style              string `json:"style"` // "explain" | "socratic"
	CitationRequired   bool   `json:"citationRequired"`
	MaxAnswerLength    int    `json:"maxAnswerLength"` // 0 = unlimited
}

// PolicyOverrides is the optional per-course or per-lesson policy configuration.
// A nil field means "not configured at this level".
type PolicyOverrides struct {
	AllowDirectAnswers *bool   `json:"allowDirectAnswers,omitempty"`
	AllowFullSolutions *bool   `json:"allowFullSolutions,omitempty"`
	Style              *string `json:"style,omitempty"`
	CitationRequired   *bool   `json:"citationRequired,omitempty"`
	MaxAnswerLength    *int    `json:"maxAnswerLength,omitempty"`
}

// Course holds the course fields the tutor reads.
type Course struct {
	ID            string           `db:"id" json:"id"`
	Title         string           `db:"title" json:"title"`
	Description   string           `db:"description" json:"description"`
	AIContext     string           `db:"ai_context" json:"aiContext"`
	AIDefaultMode Mode             `db:"ai_default_mode" json:"aiDefaultMode"`
	AIPolicy      *PolicyOverrides `db:"ai_policy" json:"aiPolicy,omitempty"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

// Lesson holds the lesson fields the tutor reads, including its attached resources.
type Lesson struct {
	ID            string           `db:"id" json:"id"`
	CourseID      string           `db:"course_id" json:"courseId"`
	Title         string           `db:"title" json:"title"`
	Type          string           `db:"type" json:"type"` // "video" | "text" | "quiz" | ...
	AIContext     string           `db:"ai_context" json:"aiContext"`
	AIDefaultMode Mode             `db:"ai_default_mode" json:"aiDefaultMode"`
	AIPolicy      *PolicyOverrides `db:"ai_policy" json:"aiPolicy,omitempty"`
	Resources     []Resource       `db:"resources" json:"resources"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

// Resource is a file attached to a lesson.
type Resource struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	StoragePath string `json:"storagePath,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Generation  string `json:"generation,omitempty"`
}

// SourceDocument is one retrievable PDF resource.
type SourceDocument struct {
	ID          string
	Name        string
	StoragePath string
	ContentType string
	Size        int64
	Generation  string
}

// CachedText is the extracted plain text for one SourceDocument.
type CachedText struct {
	ID          string    `db:"id" json:"id"`
	Text        string    `db:"text" json:"text"`
	Name        string    `db:"name" json:"name"`
	StoragePath string    `db:"storage_path" json:"storagePath"`
	ContentType string    `db:"content_type" json:"contentType"`
	Size        int64     `db:"size" json:"size"`
	Generation  string    `db:"generation" json:"generation"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Thread is a conversation between one user and the tutor, scoped to (course, lesson).
type Thread struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"userId"`
	CourseID      string    `db:"course_id" json:"courseId"`
	LessonID      string    `db:"lesson_id" json:"lessonId"`
	Title         string    `db:"title" json:"title"`
	MessageCount  int       `db:"message_count" json:"messageCount"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
	LastMessageAt time.Time `db:"last_message_at" json:"lastMessageAt"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn in a Thread. Assistant messages also carry the
// provenance of the answer and a snapshot of the full response for replay.
type Message struct {
	ID           string         `db:"id" json:"id"`
	ThreadID     string         `db:"thread_id" json:"threadId"`
	UserID       string         `db:"user_id" json:"userId"`
	Role         Role           `db:"role" json:"role"`
	Content      string         `db:"content" json:"content"`
	Model        string         `db:"model" json:"model,omitempty"`
	InputTokens  int            `db:"input_tokens" json:"inputTokens,omitempty"`
	OutputTokens int            `db:"output_tokens" json:"outputTokens,omitempty"`
	Sources      []Source       `db:"sources" json:"sources,omitempty"`
	Citations    []string       `db:"citations" json:"citations,omitempty"`
	CitationMeta []CitationMeta `db:"citation_meta" json:"citationMeta,omitempty"`
	Mode         Mode           `db:"mode" json:"mode,omitempty"`
	Policy       *Policy        `db:"policy" json:"policyApplied,omitempty"`
	Response     []byte         `db:"response" json:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
}

// Source is one entry of the response "sources" list.
type Source struct {
	Type       string     `json:"type"` // "pdf" | "course"
	Title      string     `json:"title"`
	DocID      string     `json:"docId,omitempty"`
	ExcerptIDs []int      `json:"excerptIds,omitempty"`
	Pages      *PageRange `json:"pages,omitempty"`
}

type PageRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// CitationMeta summarizes which chunks of one document were shown to the model.
type CitationMeta struct {
	DocID      string    `json:"docId"`
	Name       string    `json:"name"`
	ExcerptIDs []int     `json:"excerptIds"`
	Pages      PageRange `json:"pages"`
}

// UsageCounter is a per-period counter document.
type UsageCounter struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Period    string    `db:"period" json:"period"`
	Count     int64     `db:"count" json:"count"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// AnalyticsDaily is the per (course, lesson-or-all, date) aggregate.
type AnalyticsDaily struct {
	ID            string           `json:"id"`
	CourseID      string           `json:"courseId"`
	LessonID      string           `json:"lessonId,omitempty"` // empty = course-scoped
	Date          string           `json:"date"`
	TotalRequests int64            `json:"totalRequests"`
	ByMode        map[string]int64 `json:"byMode"`
	ByOutcome     map[string]int64 `json:"byOutcome"`
	TopQuestions  []TopQuestion    `json:"topQuestions"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

type TopQuestion struct {
	Hash     string    `json:"hash"`
	Example  string    `json:"example"`
	Count    int64     `json:"count"`
	LastSeen time.Time `json:"lastSeen"`
}

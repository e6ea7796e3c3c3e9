package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/lessontutor/internal/core"
	"github.com/markdave123-py/lessontutor/internal/core/analytics"
	"github.com/markdave123-py/lessontutor/internal/core/apierr"
	db "github.com/markdave123-py/lessontutor/internal/core/database"
	"github.com/markdave123-py/lessontutor/internal/core/ingestion_engine"
	"github.com/markdave123-py/lessontutor/internal/core/ledger"
	"github.com/markdave123-py/lessontutor/internal/core/logger"
	"github.com/markdave123-py/lessontutor/internal/core/metrics"
	"github.com/markdave123-py/lessontutor/internal/core/policy"
	"github.com/markdave123-py/lessontutor/internal/core/retrieval"
	"github.com/markdave123-py/lessontutor/internal/core/trace"
	"github.com/markdave123-py/lessontutor/internal/core/validator"
	"github.com/markdave123-py/lessontutor/internal/models"
)

// TutorService runs the retrieval-augmented tutoring pipeline for one question.
type TutorService struct {
	store     db.DbClient
	loader    *ingestion_engine.DocumentLoader
	selector  *retrieval.Selector
	llm       core.LLMProvider
	ledger    *ledger.Ledger
	analytics *analytics.Aggregator
	log       *logger.Logger
	now       func() time.Time
}

func NewTutorService(
	store db.DbClient,
	loader *ingestion_engine.DocumentLoader,
	selector *retrieval.Selector,
	llm core.LLMProvider,
	log *logger.Logger,
) *TutorService {
	return &TutorService{
		store:     store,
		loader:    loader,
		selector:  selector,
		llm:       llm,
		ledger:    ledger.New(store),
		analytics: analytics.NewAggregator(store, log),
		log:       log,
		now:       time.Now,
	}
}

// scope is the course and lesson context a question is asked in.
type scope struct {
	courseID string
	lessonID string
	course   *models.Course
	lesson   *models.Lesson
	owned    *models.Thread
}

// Ask answers one question. Every returned error is an *apierr.Error tagged
// with the stage that failed.
func (s *TutorService) Ask(ctx context.Context, userID, requestID string, req ChatRequest) (*ChatResponse, error) {
	now := s.now().UTC()
	tr := trace.New(requestID, now).At(StageValidateInput)

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, tr.Fail(http.StatusBadRequest, apierr.CodeInvalidMessage, errors.New("message is required"))
	}
	if utf8.RuneCountInString(msg) > MaxMessageRunes {
		return nil, tr.Fail(http.StatusBadRequest, apierr.CodeInvalidMessage,
			fmt.Errorf("message longer than %d characters", MaxMessageRunes))
	}
	token := strings.TrimSpace(req.ClientRequestID)
	if len(token) > MaxClientRequestID {
		return nil, tr.Fail(http.StatusBadRequest, apierr.CodeInvalidBody, errors.New("clientRequestId too long"))
	}

	tr = tr.At(StageReplay)
	if replay, err := s.replay(ctx, tr, userID, token); err != nil || replay != nil {
		return replay, err
	}

	tr = tr.At(StageLoadContext)
	sc, err := s.loadScope(ctx, tr, userID, req)
	if err != nil {
		return nil, err
	}

	tr = tr.At(StagePolicy)
	mode := policy.ResolveMode(policy.ModeInput{
		RequestMode:   req.Mode,
		ContextType:   req.ContextType,
		Path:          req.Path,
		LessonDefault: lessonDefault(sc.lesson),
		CourseDefault: courseDefault(sc.course),
		LessonType:    lessonType(sc.lesson),
		CourseID:      sc.courseID,
		LessonID:      sc.lessonID,
	})
	pol := policy.ResolvePolicy(mode, lessonOverrides(sc.lesson), courseOverrides(sc.course))
	lang := policy.ResolveLanguage(req.Lang, msg)
	restricted := policy.IsRestricted(mode, pol)
	cheating := restricted && policy.DetectCheatingIntent(msg)

	tr = tr.At(StageQuota)
	usage, err := s.ledger.Check(ctx, tr, userID, now)
	if err != nil {
		return nil, err
	}

	tr = tr.At(StageThread)
	thread, isNew, err := s.ledger.ResolveThread(ctx, tr, ledger.ThreadRequest{
		UserID:    userID,
		CourseID:  sc.courseID,
		LessonID:  sc.lessonID,
		NewThread: req.NewThread,
		Title:     msg,
	}, sc.owned, now)
	if err != nil {
		return nil, err
	}

	tr = tr.At(StageHistory)
	var history []core.ChatTurn
	if !isNew {
		prior, err := s.store.ListMessages(ctx, thread.ID, historyMessages)
		if err != nil {
			return nil, ledger.StoreError(tr, err)
		}
		for _, m := range prior {
			history = append(history, core.ChatTurn{Role: m.Role, Content: m.Content})
		}
	}

	tr = tr.At(StageRetrieval)
	var docs []models.SourceDocument
	if sc.lesson != nil {
		docs = ingestion_engine.SourceDocuments(sc.lesson.Resources)
	}
	loaded := s.loader.Documents(ctx, docs, tr.Fields()...)
	sel := s.selector.SelectFrom(loaded, msg)
	summary := retrieval.Summary(sc.course, sc.lesson)
	hasContext := len(sel.Excerpts) > 0 || configuredContext(sc.course, sc.lesson)

	var (
		result     validator.Result
		completion *core.Completion
	)
	vin := validator.Input{
		Message:        msg,
		Lang:           lang,
		Policy:         pol,
		Restricted:     restricted,
		CheatingIntent: cheating,
		ChunkIDs:       sel.ChunkIDs(),
		Excerpts:       sel.Texts(),
	}
	switch {
	case !hasContext:
		result = validator.NoContextResult(lang)
	case cheating:
		tr = tr.At(StageValidateOutput)
		result = validator.Validate(vin)
	default:
		tr = tr.At(StageModel)
		started := time.Now()
		completion, err = s.llm.Complete(ctx, core.CompletionRequest{
			SystemPrompt: policy.Instructions(mode, pol, lang) + "\n\n" + validator.OutputContract,
			ContextPack:  retrieval.BuildContextPack(summary, sel),
			History:      history,
			UserMessage:  msg,
		})
		metrics.ModelLatency.Observe(time.Since(started).Seconds())
		if err != nil {
			return nil, tr.Fail(http.StatusBadGateway, apierr.CodeModelFailed, err)
		}

		tr = tr.At(StageValidateOutput)
		vin.Output = validator.ParseModelOutput(completion.Text)
		result = validator.Validate(vin)
		if len(result.InvalidCitations) > 0 {
			s.log.Warn("model cited chunks outside the context pack", append(tr.Fields(), "invalid", result.InvalidCitations)...)
		}
	}

	var (
		tokenUsage core.Usage
		modelName  string
	)
	if completion != nil {
		tokenUsage, modelName = completion.Usage, completion.Model
	}
	tokens := int64(tokenUsage.InputTokens + tokenUsage.OutputTokens)

	resp := &ChatResponse{
		Answer:             result.Answer,
		ThreadID:           thread.ID,
		Usage:              tokenUsage,
		Sources:            buildSources(sel, sc.course, sc.lesson),
		Citations:          result.Citations,
		CitationMeta:       nonNilMeta(sel.CitationMeta),
		PDFUnreadable:      loaded.Unreadable,
		Confidence:         result.Confidence,
		NeedsMoreContext:   result.NeedsMoreContext,
		ClarifyingQuestion: result.ClarifyingQuestion,
		Mode:               mode,
		PolicyApplied:      pol,
		Remaining:          usage.After(tokens),
	}

	tr = tr.At(StagePersist)
	snapshot, err := json.Marshal(resp)
	if err != nil {
		return nil, tr.Fail(http.StatusInternalServerError, apierr.CodeInternal, fmt.Errorf("encode response: %w", err))
	}
	applied := pol
	err = s.ledger.Commit(ctx, ledger.Turn{
		Thread:    thread,
		NewThread: isNew,
		UserID:    userID,
		User: models.Message{
			ID:        ledger.UserMessageID(token),
			ThreadID:  thread.ID,
			UserID:    userID,
			Role:      models.RoleUser,
			Content:   msg,
			Mode:      mode,
			CreatedAt: now,
		},
		Assistant: models.Message{
			ID:           ledger.AssistantMessageID(token),
			ThreadID:     thread.ID,
			UserID:       userID,
			Role:         models.RoleAssistant,
			Content:      resp.Answer,
			Model:        modelName,
			InputTokens:  tokenUsage.InputTokens,
			OutputTokens: tokenUsage.OutputTokens,
			Sources:      resp.Sources,
			Citations:    resp.Citations,
			CitationMeta: resp.CitationMeta,
			Mode:         mode,
			Policy:       &applied,
			Response:     snapshot,
			CreatedAt:    now.Add(time.Millisecond),
		},
		Tokens: tokens,
		Now:    now,
	})
	if errors.Is(err, db.ErrDuplicate) && token != "" {
		// A concurrent retry committed first; answer with what it stored.
		if replay, rerr := s.replay(ctx, tr, userID, token); rerr != nil || replay != nil {
			return replay, rerr
		}
	}
	if err != nil {
		return nil, ledger.StoreError(tr, err)
	}

	tr = tr.At(StageAnalytics)
	if err := s.analytics.Record(ctx, analytics.Event{
		CourseID: sc.courseID,
		LessonID: sc.lessonID,
		Mode:     string(mode),
		Outcome:  string(result.Outcome),
		Question: msg,
		At:       now,
	}); err != nil {
		s.log.Warn("analytics merge failed", append(tr.Fields(), "error", err)...)
		metrics.StageErrors.WithLabelValues(StageAnalytics, apierr.CodeInternal).Inc()
	}

	metrics.TutorOutcomes.WithLabelValues(string(mode), string(result.Outcome)).Inc()
	s.log.Info("tutor turn completed", append(tr.Fields(),
		"user_id", userID,
		"thread_id", thread.ID,
		"mode", mode,
		"outcome", result.Outcome,
		"override", result.Override,
		"chunks", len(sel.Excerpts),
		"documents_read", loaded.Loaded,
		"tokens", tokens,
		"elapsed_ms", tr.Elapsed(s.now()).Milliseconds(),
	)...)
	return resp, nil
}

func (s *TutorService) replay(ctx context.Context, tr trace.Trace, userID, token string) (*ChatResponse, error) {
	m, err := s.ledger.FindReplay(ctx, tr, userID, token)
	if err != nil || m == nil {
		return nil, err
	}
	var resp ChatResponse
	if err := json.Unmarshal(m.Response, &resp); err != nil {
		return nil, tr.Fail(http.StatusInternalServerError, apierr.CodeInternal, fmt.Errorf("decode stored response %s: %w", m.ID, err))
	}
	s.log.Info("replayed stored response", append(tr.Fields(), "message_id", m.ID)...)
	return &resp, nil
}

// loadScope reads the course, the lesson and a supplied thread concurrently.
func (s *TutorService) loadScope(ctx context.Context, tr trace.Trace, userID string, req ChatRequest) (*scope, error) {
	sc := &scope{courseID: strings.TrimSpace(req.CourseID), lessonID: strings.TrimSpace(req.LessonID)}

	g, gctx := errgroup.WithContext(ctx)
	if sc.courseID != "" {
		g.Go(func() error {
			c, err := s.store.GetCourse(gctx, sc.courseID)
			if err != nil {
				return scopeError(tr, "course", sc.courseID, err)
			}
			sc.course = c
			return nil
		})
	}
	if sc.lessonID != "" {
		g.Go(func() error {
			l, err := s.store.GetLesson(gctx, sc.lessonID)
			if err != nil {
				return scopeError(tr, "lesson", sc.lessonID, err)
			}
			sc.lesson = l
			return nil
		})
	}
	g.Go(func() error {
		t, err := s.ledger.OwnedThread(gctx, tr, userID, strings.TrimSpace(req.ThreadID))
		sc.owned = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if sc.lesson != nil && sc.courseID == "" && sc.lesson.CourseID != "" {
		sc.courseID = sc.lesson.CourseID
		c, err := s.store.GetCourse(ctx, sc.courseID)
		switch {
		case errors.Is(err, db.ErrNotFound):
		case err != nil:
			return nil, ledger.StoreError(tr, err)
		default:
			sc.course = c
		}
	}
	return sc, nil
}

func scopeError(tr trace.Trace, kind, id string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return tr.Fail(http.StatusNotFound, apierr.CodeNotFound, fmt.Errorf("%s %s not found", kind, id))
	}
	return ledger.StoreError(tr, err)
}

func buildSources(sel retrieval.Selection, course *models.Course, lesson *models.Lesson) []models.Source {
	sources := []models.Source{}
	for _, m := range sel.CitationMeta {
		pages := m.Pages
		sources = append(sources, models.Source{
			Type:       "pdf",
			Title:      m.Name,
			DocID:      m.DocID,
			ExcerptIDs: m.ExcerptIDs,
			Pages:      &pages,
		})
	}
	switch {
	case lesson != nil && strings.TrimSpace(lesson.AIContext) != "":
		sources = append(sources, models.Source{Type: "course", Title: lesson.Title})
	case course != nil && strings.TrimSpace(course.AIContext) != "":
		sources = append(sources, models.Source{Type: "course", Title: course.Title})
	}
	return sources
}

func configuredContext(course *models.Course, lesson *models.Lesson) bool {
	return (course != nil && strings.TrimSpace(course.AIContext) != "") ||
		(lesson != nil && strings.TrimSpace(lesson.AIContext) != "")
}

func nonNilMeta(meta []models.CitationMeta) []models.CitationMeta {
	if meta == nil {
		return []models.CitationMeta{}
	}
	return meta
}

func lessonDefault(l *models.Lesson) models.Mode {
	if l == nil {
		return ""
	}
	return l.AIDefaultMode
}

func courseDefault(c *models.Course) models.Mode {
	if c == nil {
		return ""
	}
	return c.AIDefaultMode
}

func lessonType(l *models.Lesson) string {
	if l == nil {
		return ""
	}
	return l.Type
}

func lessonOverrides(l *models.Lesson) *models.PolicyOverrides {
	if l == nil {
		return nil
	}
	return l.AIPolicy
}

func courseOverrides(c *models.Course) *models.PolicyOverrides {
	if c == nil {
		return nil
	}
	return c.AIPolicy
}

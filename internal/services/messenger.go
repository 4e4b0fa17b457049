package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/hamlaty/contest-backend/internal/clients/graph"
	"github.com/hamlaty/contest-backend/internal/logger"
	pkgerrors "github.com/hamlaty/contest-backend/internal/pkg/errors"
	"github.com/hamlaty/contest-backend/internal/repos"
	"github.com/hamlaty/contest-backend/internal/types"
)

// OutboundPrompt is one best-effort outbound message: plain text, text with
// quick replies, or text with a single link button.
type OutboundPrompt struct {
	Text         string
	QuickReplies []graph.QuickReply
	ButtonTitle  string
	ButtonURL    string
}

type MessengerConfig struct {
	CompletionText          string
	AlreadyParticipatedText string
	DetailsButtonTitle      string
	DetailsBaseURL          string
}

// MessengerService is the top-level messenger-channel state machine: it
// walks one user through a contest's ordered tasks, one webhook event at a
// time, persisting progress before any outbound send.
type MessengerService interface {
	HandleEvent(ctx context.Context, pageID string, event types.MessagingEvent) error
}

type messengerService struct {
	log         *logger.Logger
	cfg         MessengerConfig
	contestRepo repos.ContestRepo
	pageLinks   repos.PageLinkRepo
	sequencer   TaskSequencer
	taskRepo    repos.TaskRepo
	threadRepo  repos.ThreadRepo
	entryRepo   repos.EntryRepo
	cipher      TokenCipher
	graphClient graph.Client
}

func NewMessengerService(
	log *logger.Logger,
	cfg MessengerConfig,
	contestRepo repos.ContestRepo,
	pageLinks repos.PageLinkRepo,
	sequencer TaskSequencer,
	taskRepo repos.TaskRepo,
	threadRepo repos.ThreadRepo,
	entryRepo repos.EntryRepo,
	cipher TokenCipher,
	graphClient graph.Client,
) MessengerService {
	serviceLog := log.With("service", "MessengerService")
	if cfg.CompletionText == "" {
		cfg.CompletionText = "You're all done, thanks for playing!"
	}
	if cfg.AlreadyParticipatedText == "" {
		cfg.AlreadyParticipatedText = "You already participated in this contest."
	}
	if cfg.DetailsButtonTitle == "" {
		cfg.DetailsButtonTitle = "Contest details"
	}
	return &messengerService{
		log:         serviceLog,
		cfg:         cfg,
		contestRepo: contestRepo,
		pageLinks:   pageLinks,
		sequencer:   sequencer,
		taskRepo:    taskRepo,
		threadRepo:  threadRepo,
		entryRepo:   entryRepo,
		cipher:      cipher,
		graphClient: graphClient,
	}
}

func (ms *messengerService) HandleEvent(ctx context.Context, pageID string, event types.MessagingEvent) error {
	psid := event.Sender.ID
	if psid == "" {
		return nil
	}

	if ref := referralFrom(event); ref != "" {
		return ms.start(ctx, pageID, psid, ref, event)
	}
	if event.Message != nil {
		return ms.answer(ctx, pageID, psid, event)
	}
	return nil
}

func referralFrom(event types.MessagingEvent) string {
	if event.Referral != nil {
		return strings.TrimSpace(event.Referral.Ref)
	}
	if event.Postback != nil && event.Postback.Referral != nil {
		return strings.TrimSpace(event.Postback.Referral.Ref)
	}
	return ""
}

// start handles a referral event carrying a contest slug. Repeated starts
// are idempotent with respect to Entries; they only reset the walk.
func (ms *messengerService) start(ctx context.Context, pageID, psid, ref string, event types.MessagingEvent) error {
	link, err := ms.pageLinks.GetByPageID(ctx, nil, pageID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			ms.log.Debug("Referral on unlinked page, skipping", "page_id", pageID, "ref", ref)
			return nil
		}
		return fmt.Errorf("load page link: %w", err)
	}

	contest, err := ms.contestRepo.GetBySlug(ctx, nil, ref)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			ms.log.Debug("Referral names unknown contest, skipping", "ref", ref)
			return nil
		}
		return fmt.Errorf("load contest: %w", err)
	}
	if contest.ID != link.ContestID {
		ms.log.Debug("Page is not linked to referred contest, skipping", "page_id", pageID, "ref", ref)
		return nil
	}

	token := ms.openToken(link)

	tasks, err := ms.sequencer.OrderedTasks(ctx, nil, contest.ID)
	if err != nil {
		return fmt.Errorf("resolve ordered tasks: %w", err)
	}

	if len(tasks) == 0 {
		if err := ms.completeThread(ctx, contest.ID, pageID, psid, 0); err != nil {
			return err
		}
		ms.send(ctx, token, psid, ms.completionPrompt(contest))
		return nil
	}

	first := tasks[0]
	existing, err := ms.entryRepo.GetByTaskAndUser(ctx, nil, first.ID, psid)
	if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		return fmt.Errorf("check prior entry: %w", err)
	}
	if existing != nil {
		// Completed once; never reopen, just restate the recorded answer.
		if err := ms.completeThread(ctx, contest.ID, pageID, psid, len(tasks)); err != nil {
			return err
		}
		text := ms.cfg.AlreadyParticipatedText
		if summary := entrySummary(existing); summary != "" {
			text = text + " Your answer: " + summary
		}
		ms.send(ctx, token, psid, OutboundPrompt{Text: text})
		return nil
	}

	state, err := encodeFlowState(initialStateForTask(first))
	if err != nil {
		return err
	}
	thread := &types.Thread{
		ContestID:      contest.ID,
		PageID:         pageID,
		ExternalUserID: psid,
		CursorIndex:    0,
		CurrentTaskID:  &first.ID,
		StateJSON:      state,
		Status:         types.ThreadStatusActive,
	}
	if _, err := ms.threadRepo.Upsert(ctx, nil, thread); err != nil {
		return fmt.Errorf("upsert thread: %w", err)
	}

	ms.send(ctx, token, psid, ms.promptForTask(contest, first))
	return nil
}

func (ms *messengerService) answer(ctx context.Context, pageID, psid string, event types.MessagingEvent) error {
	link, err := ms.pageLinks.GetByPageID(ctx, nil, pageID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			ms.log.Debug("Message on unlinked page, skipping", "page_id", pageID)
			return nil
		}
		return fmt.Errorf("load page link: %w", err)
	}
	token := ms.openToken(link)

	thread, err := ms.threadRepo.GetByScope(ctx, nil, link.ContestID, pageID, psid)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			ms.log.Debug("Message without a thread, skipping", "page_id", pageID, "psid", psid)
			return nil
		}
		return fmt.Errorf("load thread: %w", err)
	}

	contest, err := ms.contestRepo.GetByID(ctx, nil, link.ContestID)
	if err != nil {
		return fmt.Errorf("load contest: %w", err)
	}

	if thread.Status == types.ThreadStatusCompleted {
		ms.send(ctx, token, psid, ms.completionPrompt(contest))
		return nil
	}
	if thread.CurrentTaskID == nil {
		ms.log.Warn("Active thread without current task", "thread_id", thread.ID)
		return nil
	}

	task, err := ms.taskRepo.GetByID(ctx, nil, *thread.CurrentTaskID)
	if err != nil {
		return fmt.Errorf("load current task: %w", err)
	}

	text := ""
	payload := ""
	if event.Message != nil {
		text = strings.TrimSpace(event.Message.Text)
		if event.Message.QuickReply != nil {
			payload = event.Message.QuickReply.Payload
		}
	}

	switch task.Kind {
	case types.TaskKindMCQ:
		return ms.answerMCQ(ctx, token, contest, thread, task, psid, payload, event)
	case types.TaskKindPrediction:
		return ms.answerPrediction(ctx, token, contest, thread, task, psid, text, payload, event)
	default:
		// Every remaining kind takes a free-text answer on this channel.
		return ms.answerText(ctx, token, contest, thread, task, psid, text, event)
	}
}

func (ms *messengerService) answerText(ctx context.Context, token string, contest *types.Contest, thread *types.Thread, task *types.Task, psid, text string, event types.MessagingEvent) error {
	if text == "" {
		ms.send(ctx, token, psid, ms.promptForTask(contest, task))
		return nil
	}
	entry := ms.baseEntry(contest, thread, task, psid, event)
	entry.AnswerText = &text
	if _, err := ms.entryRepo.InsertIgnore(ctx, nil, entry); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return ms.advance(ctx, token, contest, thread, psid)
}

func (ms *messengerService) answerMCQ(ctx context.Context, token string, contest *types.Contest, thread *types.Thread, task *types.Task, psid, payload string, event types.MessagingEvent) error {
	var picked *types.MCQOption
	if payload != "" {
		if optionID, err := uuid.Parse(payload); err == nil {
			for i := range task.Options {
				if task.Options[i].ID == optionID {
					picked = &task.Options[i]
					break
				}
			}
		}
	}
	if picked == nil {
		// Unknown or missing payload: re-send the option list.
		ms.send(ctx, token, psid, ms.promptForTask(contest, task))
		return nil
	}

	entry := ms.baseEntry(contest, thread, task, psid, event)
	entry.AnswerText = &picked.Label
	entry.MCQOptionID = &picked.ID
	isCorrect := picked.IsCorrect
	entry.IsCorrect = &isCorrect
	if _, err := ms.entryRepo.InsertIgnore(ctx, nil, entry); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return ms.advance(ctx, token, contest, thread, psid)
}

func (ms *messengerService) answerPrediction(ctx context.Context, token string, contest *types.Contest, thread *types.Thread, task *types.Task, psid, text, payload string, event types.MessagingEvent) error {
	state, err := decodeFlowState(thread.StateJSON)
	if err != nil {
		ms.log.Warn("Corrupt thread state, restarting sub-flow", "thread_id", thread.ID, "error", err)
		state = nil
	}
	var sub *PredictionState
	if state != nil && state.Kind == types.TaskKindPrediction {
		sub = state.Prediction
	}

	set := resolvePredictionSettings(contest, task)
	result := stepPrediction(set, sub, text, payload)

	if result.Answer != nil {
		entry := ms.baseEntry(contest, thread, task, psid, event)
		winner := result.Answer.Winner
		entry.PredictionWinner = &winner
		entry.PredictionTeamAScore = result.Answer.ScoreA
		entry.PredictionTeamBScore = result.Answer.ScoreB
		if _, err := ms.entryRepo.InsertIgnore(ctx, nil, entry); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		return ms.advance(ctx, token, contest, thread, psid)
	}

	if result.NextState != nil {
		encoded, err := encodeFlowState(&FlowState{Kind: types.TaskKindPrediction, Prediction: result.NextState})
		if err != nil {
			return err
		}
		thread.StateJSON = encoded
		if err := ms.threadRepo.Save(ctx, nil, thread); err != nil {
			return fmt.Errorf("save thread state: %w", err)
		}
	}
	ms.send(ctx, token, psid, result.Prompt)
	return nil
}

// advance moves the cursor one task forward, completing the thread past the
// last task. State is persisted before the outbound prompt goes out.
func (ms *messengerService) advance(ctx context.Context, token string, contest *types.Contest, thread *types.Thread, psid string) error {
	tasks, err := ms.sequencer.OrderedTasks(ctx, nil, contest.ID)
	if err != nil {
		return fmt.Errorf("resolve ordered tasks: %w", err)
	}

	next := thread.CursorIndex + 1
	thread.CursorIndex = next

	if next >= len(tasks) {
		thread.Status = types.ThreadStatusCompleted
		thread.CurrentTaskID = nil
		thread.StateJSON = datatypes.JSON(`{}`)
		if err := ms.threadRepo.Save(ctx, nil, thread); err != nil {
			return fmt.Errorf("complete thread: %w", err)
		}
		ms.send(ctx, token, psid, ms.completionPrompt(contest))
		return nil
	}

	nextTask := tasks[next]
	encoded, err := encodeFlowState(initialStateForTask(nextTask))
	if err != nil {
		return err
	}
	thread.CurrentTaskID = &nextTask.ID
	thread.StateJSON = encoded
	if err := ms.threadRepo.Save(ctx, nil, thread); err != nil {
		return fmt.Errorf("advance thread: %w", err)
	}
	ms.send(ctx, token, psid, ms.promptForTask(contest, nextTask))
	return nil
}

func (ms *messengerService) completeThread(ctx context.Context, contestID uuid.UUID, pageID, psid string, cursor int) error {
	thread := &types.Thread{
		ContestID:      contestID,
		PageID:         pageID,
		ExternalUserID: psid,
		CursorIndex:    cursor,
		CurrentTaskID:  nil,
		StateJSON:      datatypes.JSON(`{}`),
		Status:         types.ThreadStatusCompleted,
	}
	if _, err := ms.threadRepo.Upsert(ctx, nil, thread); err != nil {
		return fmt.Errorf("complete thread: %w", err)
	}
	return nil
}

func (ms *messengerService) baseEntry(contest *types.Contest, thread *types.Thread, task *types.Task, psid string, event types.MessagingEvent) *types.Entry {
	raw, err := json.Marshal(event)
	if err != nil {
		raw = []byte(`{}`)
	}
	return &types.Entry{
		ContestID:      contest.ID,
		TaskID:         task.ID,
		RoundID:        task.RoundID,
		PageID:         thread.PageID,
		ExternalUserID: psid,
		Status:         types.EntryStatusSubmitted,
		RawEvent:       raw,
		UserID:         thread.UserID,
	}
}

func initialStateForTask(task *types.Task) *FlowState {
	if task.Kind == types.TaskKindPrediction {
		return &FlowState{
			Kind:       types.TaskKindPrediction,
			Prediction: &PredictionState{Step: PredictionStepPickWinner},
		}
	}
	return nil
}

func (ms *messengerService) promptForTask(contest *types.Contest, task *types.Task) OutboundPrompt {
	text := task.Title
	if strings.TrimSpace(task.Description) != "" {
		text = text + "\n" + task.Description
	}

	switch task.Kind {
	case types.TaskKindMCQ:
		replies := make([]graph.QuickReply, 0, len(task.Options))
		for _, opt := range task.Options {
			replies = append(replies, graph.QuickReply{
				Title:   truncateTitle(opt.Label),
				Payload: opt.ID.String(),
			})
		}
		return OutboundPrompt{Text: text, QuickReplies: replies}
	case types.TaskKindPrediction:
		prompt := pickWinnerPrompt(resolvePredictionSettings(contest, task))
		if text != "" {
			prompt.Text = text + "\n" + prompt.Text
		}
		return prompt
	default:
		return OutboundPrompt{Text: text}
	}
}

func (ms *messengerService) completionPrompt(contest *types.Contest) OutboundPrompt {
	prompt := OutboundPrompt{Text: ms.cfg.CompletionText}
	if ms.cfg.DetailsBaseURL != "" {
		prompt.ButtonTitle = ms.cfg.DetailsButtonTitle
		prompt.ButtonURL = strings.TrimRight(ms.cfg.DetailsBaseURL, "/") + "/" + contest.Slug
	}
	return prompt
}

// send delivers one prompt best-effort: by the time it runs, state is
// already persisted, so failures are logged and never rolled back.
func (ms *messengerService) send(ctx context.Context, token, psid string, prompt OutboundPrompt) {
	if ms.graphClient == nil || token == "" || prompt.Text == "" {
		return
	}
	var err error
	switch {
	case prompt.ButtonURL != "":
		err = ms.graphClient.SendButtonLink(ctx, token, psid, prompt.Text, prompt.ButtonTitle, prompt.ButtonURL)
	case len(prompt.QuickReplies) > 0:
		err = ms.graphClient.SendQuickReplies(ctx, token, psid, prompt.Text, prompt.QuickReplies)
	default:
		err = ms.graphClient.SendText(ctx, token, psid, prompt.Text)
	}
	if err != nil {
		ms.log.Warn("Outbound send failed", "psid", psid, "error", err)
	}
}

func (ms *messengerService) openToken(link *types.PageLink) string {
	if link.SealedAccessToken == "" {
		return ""
	}
	token, err := ms.cipher.Open(link.SealedAccessToken)
	if err != nil {
		ms.log.Warn("Could not open page access token", "page_id", link.PageID, "error", err)
		return ""
	}
	return token
}

func entrySummary(entry *types.Entry) string {
	if entry == nil {
		return ""
	}
	if entry.PredictionWinner != nil {
		summary := string(*entry.PredictionWinner)
		if entry.PredictionTeamAScore != nil && entry.PredictionTeamBScore != nil {
			summary = fmt.Sprintf("%s %d-%d", summary, *entry.PredictionTeamAScore, *entry.PredictionTeamBScore)
		}
		return summary
	}
	if entry.AnswerText != nil {
		return *entry.AnswerText
	}
	return ""
}

func truncateTitle(s string) string {
	const max = 20
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

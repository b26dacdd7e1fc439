package statemachine

import (
	"context"
	"fmt"
	"strings"

	"hostel-concierge/internal/domain"
	"hostel-concierge/internal/language"
)

const listLimit = 10

func (m *Machine) listRequests(ctx context.Context, t Turn) (Outcome, error) {
	out := Outcome{Route: RouteListRequests, Conversation: t.Conversation}
	if t.User == nil {
		out.Reply = language.Text(t.Language, language.KeyRequestsRequireAuth)
		return out, nil
	}
	items, err := m.artifacts.ListRequests(ctx, t.User.ID, t.Conversation.BranchID)
	if err != nil {
		return Outcome{}, fmt.Errorf("statemachine: list requests: %w", err)
	}
	out.Reply = formatListing(t.Language, items, language.KeyRequestsTitle, language.KeyRequestsNone, language.RequestStatus)
	return out, nil
}

func (m *Machine) listTodos(ctx context.Context, t Turn) (Outcome, error) {
	out := Outcome{Route: RouteListTodos, Conversation: t.Conversation}
	if t.User == nil {
		out.Reply = language.Text(t.Language, language.KeyTodosRequireAuth)
		return out, nil
	}
	items, err := m.artifacts.ListTasks(ctx, t.User.ID, t.Conversation.BranchID)
	if err != nil {
		return Outcome{}, fmt.Errorf("statemachine: list tasks: %w", err)
	}
	out.Reply = formatListing(t.Language, items, language.KeyTodosTitle, language.KeyTodosNone, language.TaskStatus)
	return out, nil
}

func formatListing(lang language.Code, items []domain.Artifact, title, none language.Key, label func(language.Code, string) string) string {
	if len(items) == 0 {
		return language.Text(lang, none)
	}
	var b strings.Builder
	b.WriteString(language.Text(lang, title))
	b.WriteString("\n\n")
	for i, it := range items {
		if i == listLimit {
			break
		}
		fmt.Fprintf(&b, "• %s - %s\n", it.Title, label(lang, it.Status))
	}
	return strings.TrimRight(b.String(), "\n")
}

func startCreation(kind domain.ArtifactKind) action {
	return func(m *Machine, ctx context.Context, t Turn) (Outcome, error) {
		route, authKey, askKey := RouteStartRequest, language.KeyRequestCreationRequireAuth, language.KeyAskResponsibleRequest
		if kind == domain.ArtifactTask {
			route, authKey, askKey = RouteStartTask, language.KeyTaskCreationRequireAuth, language.KeyAskResponsibleTask
		}
		out := Outcome{Route: route, Conversation: t.Conversation}
		if t.User == nil {
			out.Reply = language.Text(t.Language, authKey)
			return out, nil
		}
		conv, err := m.update(ctx, t, domain.EnterCreation(kind, domain.CreationLadder{Step: domain.StepWaitingForResponsible}))
		if err != nil {
			return Outcome{}, err
		}
		out.Conversation = conv
		out.Reply = language.Text(t.Language, askKey)
		return out, nil
	}
}

func (m *Machine) continueCreation(ctx context.Context, t Turn) (Outcome, error) {
	ladder, err := t.Conversation.ActiveLadder()
	if err != nil {
		return Outcome{}, err
	}
	cl, ok := ladder.(*domain.CreationLadder)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", domain.ErrLadderContextMissing, t.Conversation.State)
	}
	kind, _ := t.Conversation.State.ArtifactKind()

	switch cl.Step {
	case domain.StepWaitingForResponsible:
		return m.chooseResponsible(ctx, t, kind)
	case domain.StepWaitingForDescription:
		return m.createArtifact(ctx, t, kind, *cl)
	}
	return Outcome{}, fmt.Errorf("%w: creation step %q", domain.ErrUnknownState, cl.Step)
}

func (m *Machine) chooseResponsible(ctx context.Context, t Turn, kind domain.ArtifactKind) (Outcome, error) {
	out := Outcome{Route: RouteCreation, Conversation: t.Conversation}
	term := strings.TrimSpace(t.Text)
	if term == "" {
		out.Reply = language.Text(t.Language, language.KeyResponsibleNotFound)
		return out, nil
	}
	user, err := m.directory.FindUserByNameOrID(ctx, term, t.Conversation.BranchID)
	if err != nil {
		return Outcome{}, fmt.Errorf("statemachine: find responsible: %w", err)
	}
	if user == nil {
		out.Reply = language.Text(t.Language, language.KeyResponsibleNotFound)
		return out, nil
	}

	next := domain.CreationLadder{
		Step:            domain.StepWaitingForDescription,
		ResponsibleID:   user.ID,
		ResponsibleName: user.FullName(),
	}
	conv, err := m.update(ctx, t, domain.Patch{Creation: domain.Set(next)})
	if err != nil {
		return Outcome{}, err
	}
	askKey := language.KeyAskDescriptionRequest
	if kind == domain.ArtifactTask {
		askKey = language.KeyAskDescriptionTask
	}
	out.Conversation = conv
	out.Reply = language.Text(t.Language, askKey, next.ResponsibleName)
	return out, nil
}

func (m *Machine) createArtifact(ctx context.Context, t Turn, kind domain.ArtifactKind, cl domain.CreationLadder) (Outcome, error) {
	out := Outcome{Route: RouteCreation, Conversation: t.Conversation}
	description := strings.TrimSpace(t.Text)
	if description == "" && t.MediaRef == "" {
		out.Reply = language.Text(t.Language, language.KeyEmptyDescription)
		return out, nil
	}
	if t.User == nil {
		authKey := language.KeyRequestCreationRequireAuth
		if kind == domain.ArtifactTask {
			authKey = language.KeyTaskCreationRequireAuth
		}
		return m.reset(ctx, t, RouteCreation, language.Text(t.Language, authKey))
	}

	a := domain.NewArtifact{
		Kind:          kind,
		Description:   description,
		RequesterID:   t.User.ID,
		ResponsibleID: cl.ResponsibleID,
		BranchID:      t.Conversation.BranchID,
	}
	var (
		id         int
		err        error
		createdKey language.Key
	)
	if kind == domain.ArtifactTask {
		a.Title, a.Status, createdKey = "To-Do de "+t.User.FullName(), "open", language.KeyTaskCreated
		id, err = m.artifacts.CreateTask(ctx, a)
	} else {
		a.Title, a.Status, createdKey = "Request de "+t.User.FullName(), "approval", language.KeyRequestCreated
		id, err = m.artifacts.CreateRequest(ctx, a)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("statemachine: create %s: %w", kind, err)
	}

	if t.MediaRef != "" {
		m.attach(ctx, t, kind, id, description)
	}

	conv, err := m.update(ctx, t, finishPatch())
	if err != nil {
		return Outcome{}, err
	}
	out.Conversation = conv
	out.Reply = language.Text(t.Language, createdKey, id, a.Title)
	return out, nil
}

// attach uploads the turn's media and links it from the description.
// Failures leave the artifact without attachment.
func (m *Machine) attach(ctx context.Context, t Turn, kind domain.ArtifactKind, id int, description string) {
	fields := map[string]interface{}{"artifact_id": id, "kind": string(kind), "phone": t.Conversation.PhoneNumber}
	media, err := m.media.Download(ctx, t.MediaRef)
	if err != nil {
		m.log.WithError(err).Warn("media download failed", fields)
		return
	}
	attID, err := m.artifacts.AttachMedia(ctx, kind, id, media)
	if err != nil {
		m.log.WithError(err).Warn("media attach failed", fields)
		return
	}
	link := fmt.Sprintf("![%s](/api/%s/%d/attachments/%d)", media.FileName, attachmentPath(kind), id, attID)
	if err := m.artifacts.UpdateDescription(ctx, kind, id, strings.TrimSpace(description+"\n\n"+link)); err != nil {
		m.log.WithError(err).Warn("attachment link not saved", fields)
	}
}

func attachmentPath(kind domain.ArtifactKind) string {
	if kind == domain.ArtifactTask {
		return "tasks"
	}
	return "requests"
}

package conversation

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"clienthub-backend/internal/model"
)

type memoryRepository struct {
	mu            sync.Mutex
	tenants       map[string]model.TenantItem
	members       map[string]model.TeamMemberItem
	clients       map[string]model.ClientItem
	conversations map[string]model.ConversationItem
	participants  map[string]model.ParticipantItem
	messages      map[string][]model.MessageItem
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		tenants:       make(map[string]model.TenantItem),
		members:       make(map[string]model.TeamMemberItem),
		clients:       make(map[string]model.ClientItem),
		conversations: make(map[string]model.ConversationItem),
		participants:  make(map[string]model.ParticipantItem),
		messages:      make(map[string][]model.MessageItem),
	}
}

func (m *memoryRepository) GetTenant(ctx context.Context, tenantID string) (model.TenantItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tenant, ok := m.tenants[tenantID]
	if !ok {
		return model.TenantItem{}, ErrNotFound
	}
	return tenant, nil
}

func (m *memoryRepository) GetTeamMember(ctx context.Context, tenantID, memberID string) (model.TeamMemberItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[model.TenantScopedPK(tenantID, memberID)]
	if !ok {
		return model.TeamMemberItem{}, ErrNotFound
	}
	return member, nil
}

func (m *memoryRepository) GetClient(ctx context.Context, tenantID, clientID string) (model.ClientItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.clients[model.ClientPK(tenantID, clientID)]
	if !ok {
		return model.ClientItem{}, ErrNotFound
	}
	return client, nil
}

func (m *memoryRepository) PutClient(ctx context.Context, client model.ClientItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.PK] = client
	return nil
}

func (m *memoryRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conversation.PK] = conversation
	return nil
}

func (m *memoryRepository) GetConversation(ctx context.Context, tenantID, conversationID string) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[model.ConversationPK(tenantID, conversationID)]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	return conversation, nil
}

func (m *memoryRepository) ListConversations(ctx context.Context, tenantID string, limit int) ([]model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.ConversationItem, 0)
	for _, c := range m.conversations {
		if c.TenantID == tenantID {
			items = append(items, c)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].LastMessageAt > items[j].LastMessageAt
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memoryRepository) UpdateConversationStatus(ctx context.Context, tenantID, conversationID string, status model.ConversationStatus, updatedAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := model.ConversationPK(tenantID, conversationID)
	conversation, ok := m.conversations[pk]
	if !ok {
		return ErrNotFound
	}
	conversation.Status = status
	conversation.UpdatedAt = updatedAt
	m.conversations[pk] = conversation
	return nil
}

func (m *memoryRepository) UpdateConversationActivity(ctx context.Context, tenantID, conversationID, updatedAt, lastMessageAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := model.ConversationPK(tenantID, conversationID)
	conversation, ok := m.conversations[pk]
	if !ok {
		return ErrNotFound
	}
	conversation.UpdatedAt = updatedAt
	conversation.LastMessageAt = lastMessageAt
	m.conversations[pk] = conversation
	return nil
}

func (m *memoryRepository) NextMessageSeq(ctx context.Context, tenantID, conversationID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := model.ConversationPK(tenantID, conversationID)
	conversation, ok := m.conversations[pk]
	if !ok {
		return 0, ErrNotFound
	}
	conversation.LastSeq++
	m.conversations[pk] = conversation
	return conversation.LastSeq, nil
}

func (m *memoryRepository) PutParticipant(ctx context.Context, participant model.ParticipantItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[participant.PK] = participant
	return nil
}

func (m *memoryRepository) GetParticipant(ctx context.Context, conversationID string, kind model.ActorKind, actorID string) (model.ParticipantItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	participant, ok := m.participants[model.ParticipantPK(conversationID, kind, actorID)]
	if !ok {
		return model.ParticipantItem{}, ErrNotFound
	}
	return participant, nil
}

func (m *memoryRepository) ListParticipants(ctx context.Context, conversationID string) ([]model.ParticipantItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.ParticipantItem, 0)
	for _, p := range m.participants {
		if p.ConversationID == conversationID {
			items = append(items, p)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].PK < items[j].PK
	})
	return items, nil
}

func (m *memoryRepository) ListParticipantsByActor(ctx context.Context, tenantID string, kind model.ActorKind, actorID string) ([]model.ParticipantItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.ParticipantItem, 0)
	for _, p := range m.participants {
		if p.TenantID == tenantID && p.ActorKind == kind && p.ActorID == actorID {
			items = append(items, p)
		}
	}
	return items, nil
}

func (m *memoryRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[message.ConversationID] = append(m.messages[message.ConversationID], message)
	return nil
}

func (m *memoryRepository) GetMessage(ctx context.Context, conversationID string, seq int64) (model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages[conversationID] {
		if msg.Seq == seq {
			return msg, nil
		}
	}
	return model.MessageItem{}, ErrNotFound
}

func (m *memoryRepository) MarkMessageDeleted(ctx context.Context, conversationID string, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	for i, msg := range msgs {
		if msg.Seq == seq {
			msgs[i].Deleted = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryRepository) ListMessagesAfter(ctx context.Context, tenantID, conversationID string, afterSeq int64, limit int) ([]model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.MessageItem, 0)
	for _, msg := range m.messages[conversationID] {
		if msg.TenantID != tenantID || msg.Seq <= afterSeq {
			continue
		}
		items = append(items, msg)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Seq < items[j].Seq
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func useTestSecret(t *testing.T) {
	t.Helper()
	original := make([]byte, len(portalTokenSecret))
	copy(original, portalTokenSecret)
	SetPortalTokenSecret([]byte("test-secret"))
	t.Cleanup(func() {
		SetPortalTokenSecret(original)
	})
}

func newTestService(repo Repository) *Service {
	now := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	return NewWithRepository(repo, nil, func() time.Time { return now })
}

func seedTenant(repo *memoryRepository, tenantID string, memberIDs ...string) {
	repo.tenants[tenantID] = model.TenantItem{TenantID: tenantID, Name: tenantID}
	for _, memberID := range memberIDs {
		repo.members[model.TenantScopedPK(tenantID, memberID)] = model.TeamMemberItem{
			PK:       model.TenantScopedPK(tenantID, memberID),
			TenantID: tenantID,
			MemberID: memberID,
			Status:   "active",
		}
	}
}

func teamActor(tenantID, memberID string) Actor {
	return Actor{Kind: model.ActorKindTeamMember, ID: memberID, TenantID: tenantID}
}

func clientActor(tenantID, clientID string) Actor {
	return Actor{Kind: model.ActorKindClient, ID: clientID, TenantID: tenantID}
}

func TestCreateClientConversation(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1", "member-1")

	result, err := svc.CreateConversation(context.Background(), teamActor("tenant-1", "member-1"), CreateConversationParams{
		Type:    model.ConversationTypeClient,
		Subject: "Onboarding",
		Participants: []ParticipantParams{
			{Kind: model.ActorKindClient, ID: "client-1", DisplayName: "Acme"},
		},
		InitialMessage: "Welcome aboard",
	})
	if err != nil {
		t.Fatalf("CreateConversation error: %v", err)
	}

	if result.Conversation.Status != model.ConversationStatusActive {
		t.Fatalf("expected active status, got %s", result.Conversation.Status)
	}
	if result.Message == nil || result.Message.Seq != 1 {
		t.Fatalf("expected initial message with seq 1, got %+v", result.Message)
	}
	if result.PortalToken == "" {
		t.Fatal("expected portal token for the client participant")
	}

	var sender, client model.ParticipantItem
	for _, p := range result.Participants {
		switch p.ActorKind {
		case model.ActorKindTeamMember:
			sender = p
		case model.ActorKindClient:
			client = p
		}
	}
	if sender.LastReadSeq != 1 {
		t.Fatalf("sender should start read through seq 1, got %d", sender.LastReadSeq)
	}
	if client.LastReadSeq != 0 || client.LastReadAt != "" {
		t.Fatalf("client should start with empty watermark, got %+v", client)
	}
}

func TestCreateConversationTypeInvariants(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1", "member-1")
	actor := teamActor("tenant-1", "member-1")

	cases := []struct {
		name   string
		params CreateConversationParams
	}{
		{
			name: "client conversation without client",
			params: CreateConversationParams{
				Type: model.ConversationTypeClient,
			},
		},
		{
			name: "team conversation with client",
			params: CreateConversationParams{
				Type: model.ConversationTypeTeam,
				Participants: []ParticipantParams{
					{Kind: model.ActorKindClient, ID: "client-1"},
				},
			},
		},
		{
			name: "client note without client reference",
			params: CreateConversationParams{
				Type: model.ConversationTypeClientNote,
			},
		},
		{
			name: "client conversation with two clients",
			params: CreateConversationParams{
				Type: model.ConversationTypeClient,
				Participants: []ParticipantParams{
					{Kind: model.ActorKindClient, ID: "client-1"},
					{Kind: model.ActorKindClient, ID: "client-2"},
				},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateConversation(context.Background(), actor, tc.params)
			if err == nil {
				t.Fatal("expected validation error")
			}
			svcErr, ok := err.(*Error)
			if !ok {
				t.Fatalf("expected *Error, got %T", err)
			}
			if svcErr.Code != ErrorCodeValidation {
				t.Fatalf("expected validation_error, got %s", svcErr.Code)
			}
		})
	}
}

func TestClientCannotCreateTeamConversation(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1")

	_, err := svc.CreateConversation(context.Background(), clientActor("tenant-1", "client-1"), CreateConversationParams{
		Type: model.ConversationTypeTeam,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if svcErr := err.(*Error); svcErr.Code != ErrorCodeForbidden {
		t.Fatalf("expected forbidden, got %s", svcErr.Code)
	}
}

func createClientConversation(t *testing.T, svc *Service, tenantID, memberID, clientID string) ConversationResult {
	t.Helper()
	result, err := svc.CreateConversation(context.Background(), teamActor(tenantID, memberID), CreateConversationParams{
		Type: model.ConversationTypeClient,
		Participants: []ParticipantParams{
			{Kind: model.ActorKindClient, ID: clientID},
		},
		InitialMessage: "Hello",
	})
	if err != nil {
		t.Fatalf("CreateConversation error: %v", err)
	}
	return result
}

func TestStatusTransitions(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1", "member-1")
	actor := teamActor("tenant-1", "member-1")
	result := createClientConversation(t, svc, "tenant-1", "member-1", "client-1")
	conversationID := result.Conversation.ConversationID

	updated, err := svc.TransitionStatus(context.Background(), actor, conversationID, model.ConversationStatusClosed)
	if err != nil {
		t.Fatalf("close error: %v", err)
	}
	if updated.Status != model.ConversationStatusClosed {
		t.Fatalf("expected closed, got %s", updated.Status)
	}

	// Closed threads cannot be archived directly.
	_, err = svc.TransitionStatus(context.Background(), actor, conversationID, model.ConversationStatusArchived)
	if err == nil {
		t.Fatal("expected invalid transition")
	}
	if svcErr := err.(*Error); svcErr.Code != ErrorCodeInvalidTransition {
		t.Fatalf("expected invalid_transition, got %s", svcErr.Code)
	}

	if _, err := svc.TransitionStatus(context.Background(), actor, conversationID, model.ConversationStatusActive); err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	if _, err := svc.TransitionStatus(context.Background(), actor, conversationID, model.ConversationStatusArchived); err != nil {
		t.Fatalf("archive error: %v", err)
	}
}

func TestAppendMessageToClosedConversationFails(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1", "member-1")
	actor := teamActor("tenant-1", "member-1")
	result := createClientConversation(t, svc, "tenant-1", "member-1", "client-1")
	conversationID := result.Conversation.ConversationID

	if _, err := svc.TransitionStatus(context.Background(), actor, conversationID, model.ConversationStatusClosed); err != nil {
		t.Fatalf("close error: %v", err)
	}

	_, err := svc.AppendMessage(context.Background(), actor, conversationID, "too late")
	if err == nil {
		t.Fatal("expected error appending to closed conversation")
	}
	if svcErr := err.(*Error); svcErr.Code != ErrorCodeConversationClosed {
		t.Fatalf("expected conversation_closed, got %s", svcErr.Code)
	}

	// The rejected message must leave no trace.
	msgs, err := repo.ListMessagesAfter(context.Background(), "tenant-1", conversationID, 0, 0)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected only the initial message, got %d", len(msgs))
	}
}

func TestConcurrentAppendsGetDistinctIncreasingSequences(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1", "member-1")
	actor := teamActor("tenant-1", "member-1")
	result := createClientConversation(t, svc, "tenant-1", "member-1", "client-1")
	conversationID := result.Conversation.ConversationID

	const senders = 25
	seqs := make(chan int64, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.AppendMessage(context.Background(), actor, conversationID, "ping")
			if err != nil {
				t.Errorf("AppendMessage error: %v", err)
				return
			}
			seqs <- res.Message.Seq
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		if seen[seq] {
			t.Fatalf("duplicate sequence %d", seq)
		}
		seen[seq] = true
	}
	// Initial message took seq 1, so the appends cover 2..senders+1.
	for seq := int64(2); seq <= senders+1; seq++ {
		if !seen[seq] {
			t.Fatalf("missing sequence %d", seq)
		}
	}
}

func TestListMessagesPaginationIsStable(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1", "member-1")
	actor := teamActor("tenant-1", "member-1")
	result := createClientConversation(t, svc, "tenant-1", "member-1", "client-1")
	conversationID := result.Conversation.ConversationID

	for i := 0; i < 9; i++ {
		if _, err := svc.AppendMessage(context.Background(), actor, conversationID, "msg"); err != nil {
			t.Fatalf("AppendMessage error: %v", err)
		}
	}

	page1, err := svc.ListMessages(context.Background(), actor, conversationID, 0, 4)
	if err != nil {
		t.Fatalf("ListMessages error: %v", err)
	}
	if len(page1.Messages) != 4 || page1.NextAfterSeq != 4 {
		t.Fatalf("unexpected first page: %d messages, cursor %d", len(page1.Messages), page1.NextAfterSeq)
	}

	// New messages arriving mid-pagination must not shift the next page.
	if _, err := svc.AppendMessage(context.Background(), actor, conversationID, "late"); err != nil {
		t.Fatalf("AppendMessage error: %v", err)
	}

	page2, err := svc.ListMessages(context.Background(), actor, conversationID, page1.NextAfterSeq, 4)
	if err != nil {
		t.Fatalf("ListMessages error: %v", err)
	}
	if len(page2.Messages) != 4 || page2.Messages[0].Seq != 5 {
		t.Fatalf("unexpected second page: %d messages, first seq %d", len(page2.Messages), page2.Messages[0].Seq)
	}
	for i := 1; i < len(page2.Messages); i++ {
		if page2.Messages[i].Seq != page2.Messages[i-1].Seq+1 {
			t.Fatalf("non-contiguous page: %d after %d", page2.Messages[i].Seq, page2.Messages[i-1].Seq)
		}
	}
}

func TestClientAccessRules(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1", "member-1")
	result := createClientConversation(t, svc, "tenant-1", "member-1", "client-1")
	conversationID := result.Conversation.ConversationID

	// The participating client may post.
	if _, err := svc.AppendMessage(context.Background(), clientActor("tenant-1", "client-1"), conversationID, "hi"); err != nil {
		t.Fatalf("client append error: %v", err)
	}

	// A non-participant client may not.
	_, err := svc.AppendMessage(context.Background(), clientActor("tenant-1", "client-2"), conversationID, "hi")
	if err == nil {
		t.Fatal("expected error for non-participant client")
	}
	if svcErr := err.(*Error); svcErr.Code != ErrorCodeForbidden {
		t.Fatalf("expected forbidden, got %s", svcErr.Code)
	}

	// Clients never see team threads.
	teamResult, err := svc.CreateConversation(context.Background(), teamActor("tenant-1", "member-1"), CreateConversationParams{
		Type:           model.ConversationTypeTeam,
		InitialMessage: "internal",
	})
	if err != nil {
		t.Fatalf("CreateConversation error: %v", err)
	}
	_, err = svc.ListMessages(context.Background(), clientActor("tenant-1", "client-1"), teamResult.Conversation.ConversationID, 0, 10)
	if err == nil {
		t.Fatal("expected error for client reading team thread")
	}
	if svcErr := err.(*Error); svcErr.Code != ErrorCodeForbidden {
		t.Fatalf("expected forbidden, got %s", svcErr.Code)
	}
}

func TestCrossTenantAccessDenied(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-a", "member-a")
	seedTenant(repo, "tenant-b", "member-b")
	result := createClientConversation(t, svc, "tenant-b", "member-b", "client-b")

	_, err := svc.AppendMessage(context.Background(), teamActor("tenant-a", "member-a"), result.Conversation.ConversationID, "hello")
	if err == nil {
		t.Fatal("expected error for cross-tenant access")
	}
	if svcErr := err.(*Error); svcErr.Code != ErrorCodeNotFound {
		t.Fatalf("expected not_found, got %s", svcErr.Code)
	}
}

func TestAddParticipantIsIdempotentAndPreservesWatermark(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1", "member-1", "member-2")
	actor := teamActor("tenant-1", "member-1")
	result := createClientConversation(t, svc, "tenant-1", "member-1", "client-1")
	conversationID := result.Conversation.ConversationID

	added, err := svc.AddParticipant(context.Background(), actor, conversationID, ParticipantParams{
		Kind: model.ActorKindTeamMember,
		ID:   "member-2",
	})
	if err != nil {
		t.Fatalf("AddParticipant error: %v", err)
	}

	again, err := svc.AddParticipant(context.Background(), actor, conversationID, ParticipantParams{
		Kind: model.ActorKindTeamMember,
		ID:   "member-2",
	})
	if err != nil {
		t.Fatalf("second AddParticipant error: %v", err)
	}
	if again.JoinedAt != added.JoinedAt {
		t.Fatal("re-adding an active participant must be a no-op")
	}

	// Simulate reads before removal.
	member2 := repo.participants[model.ParticipantPK(conversationID, model.ActorKindTeamMember, "member-2")]
	member2.LastReadSeq = 1
	repo.participants[member2.PK] = member2

	if err := svc.RemoveParticipant(context.Background(), actor, conversationID, model.ActorKindTeamMember, "member-2"); err != nil {
		t.Fatalf("RemoveParticipant error: %v", err)
	}
	removed := repo.participants[member2.PK]
	if removed.Active {
		t.Fatal("expected participant to be inactive after removal")
	}

	restored, err := svc.AddParticipant(context.Background(), actor, conversationID, ParticipantParams{
		Kind: model.ActorKindTeamMember,
		ID:   "member-2",
	})
	if err != nil {
		t.Fatalf("re-add error: %v", err)
	}
	if !restored.Active || restored.LastReadSeq != 1 {
		t.Fatalf("reactivation must keep the watermark, got %+v", restored)
	}
}

func TestAddSecondClientRejected(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1", "member-1")
	result := createClientConversation(t, svc, "tenant-1", "member-1", "client-1")

	_, err := svc.AddParticipant(context.Background(), teamActor("tenant-1", "member-1"), result.Conversation.ConversationID, ParticipantParams{
		Kind: model.ActorKindClient,
		ID:   "client-2",
	})
	if err == nil {
		t.Fatal("expected error adding a second client")
	}
	if svcErr := err.(*Error); svcErr.Code != ErrorCodeValidation {
		t.Fatalf("expected validation_error, got %s", svcErr.Code)
	}
}

func TestDeleteMessageKeepsSequence(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1", "member-1")
	actor := teamActor("tenant-1", "member-1")
	result := createClientConversation(t, svc, "tenant-1", "member-1", "client-1")
	conversationID := result.Conversation.ConversationID

	second, err := svc.AppendMessage(context.Background(), actor, conversationID, "oops")
	if err != nil {
		t.Fatalf("AppendMessage error: %v", err)
	}

	if err := svc.DeleteMessage(context.Background(), actor, conversationID, second.Message.Seq); err != nil {
		t.Fatalf("DeleteMessage error: %v", err)
	}

	list, err := svc.ListMessages(context.Background(), actor, conversationID, 0, 10)
	if err != nil {
		t.Fatalf("ListMessages error: %v", err)
	}
	if len(list.Messages) != 2 {
		t.Fatalf("deleted message must keep its slot, got %d messages", len(list.Messages))
	}
	if !list.Messages[1].Deleted {
		t.Fatal("expected second message to be flagged deleted")
	}
	if list.Messages[1].Seq != second.Message.Seq {
		t.Fatal("deletion must not shift sequences")
	}
}

func TestDeleteMessageRequiresSenderOrTeamMember(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1", "member-1")
	result := createClientConversation(t, svc, "tenant-1", "member-1", "client-1")
	conversationID := result.Conversation.ConversationID

	err := svc.DeleteMessage(context.Background(), clientActor("tenant-1", "client-1"), conversationID, 1)
	if err == nil {
		t.Fatal("expected error deleting someone else's message")
	}
	if svcErr := err.(*Error); svcErr.Code != ErrorCodeForbidden {
		t.Fatalf("expected forbidden, got %s", svcErr.Code)
	}
}

func TestListConversationsForClientSkipsTeamThreads(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)
	seedTenant(repo, "tenant-1", "member-1")
	result := createClientConversation(t, svc, "tenant-1", "member-1", "client-1")

	if _, err := svc.CreateConversation(context.Background(), teamActor("tenant-1", "member-1"), CreateConversationParams{
		Type:           model.ConversationTypeTeam,
		InitialMessage: "internal",
	}); err != nil {
		t.Fatalf("CreateConversation error: %v", err)
	}

	list, err := svc.ListConversations(context.Background(), clientActor("tenant-1", "client-1"), 10)
	if err != nil {
		t.Fatalf("ListConversations error: %v", err)
	}
	if len(list.Conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(list.Conversations))
	}
	if list.Conversations[0].ConversationID != result.Conversation.ConversationID {
		t.Fatal("client sees the wrong conversation")
	}
}

func TestPortalTokenRoundTrip(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useTestSecret(t)

	token, err := svc.IssuePortalToken(context.Background(), "tenant-1", "client-1")
	if err != nil {
		t.Fatalf("IssuePortalToken error: %v", err)
	}

	access, err := svc.ValidatePortalAccess(token)
	if err != nil {
		t.Fatalf("ValidatePortalAccess error: %v", err)
	}
	if access.TenantID != "tenant-1" || access.ClientID != "client-1" {
		t.Fatalf("unexpected access claims: %+v", access)
	}

	if _, err := svc.ValidatePortalAccess("garbage.token"); err == nil {
		t.Fatal("expected error for tampered token")
	}
}

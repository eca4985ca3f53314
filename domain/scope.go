package domain

// ScopeKind discriminates the two addressable destination types.
type ScopeKind string

const (
	KindChannel      ScopeKind = "channel"
	KindConversation ScopeKind = "conversation"
)

// ScopeID addresses exactly one channel or one direct/group conversation.
// A client has at most one active scope at a time.
type ScopeID struct {
	Kind ScopeKind
	ID   string
}

func ChannelScope(id string) ScopeID {
	return ScopeID{Kind: KindChannel, ID: id}
}

func ConversationScope(id string) ScopeID {
	return ScopeID{Kind: KindConversation, ID: id}
}

func (s ScopeID) IsZero() bool {
	return s.ID == ""
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type Channel struct {
	ID          string
	Name        string
	Description string
	Visibility  Visibility
	MemberCount int
}

func (c Channel) Scope() ScopeID {
	return ChannelScope(c.ID)
}

// Conversation is a direct (two participants) or group conversation.
type Conversation struct {
	ID           string
	Direct       bool
	Participants []Participant
}

func (c Conversation) Scope() ScopeID {
	return ConversationScope(c.ID)
}

type Participant struct {
	UserID      string
	DisplayName string
}

package interfaces

import "context"

// ChatEntity is the subset of a chat-platform entity (channel/user) the
// core needs (spec §6 outbound MTProto client).
type ChatEntity struct {
	PeerID   string
	Username string
	Title    string
}

// ChatMessage is the subset of an upstream message the core needs.
type ChatMessage struct {
	UpstreamID     int64
	PeerID         string
	CaptionRaw     string
	AuthorLabel    string
	Attachments    []ChatAttachment
	ForwardFromPeerID string
	ForwardFromTitle  string
	ForwardFromUsername string
}

// ChatAttachment is the subset of an upstream attachment the core needs.
type ChatAttachment struct {
	UpstreamFileID string
	Type           string
	Filename       string
	SizeBytes      int64
	Mime           string
}

// ProgressFunc reports (bytes, total) during a download.
type ProgressFunc func(bytes, total int64)

// ChatClient is the narrow surface of the chat-platform MTProto client the
// core depends on (spec §6). It is an external collaborator: the core
// treats it as an interface and never speaks the wire protocol itself.
type ChatClient interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
	SendCodeRequest(ctx context.Context, phone string) (phoneCodeHash string, err error)
	SignIn(ctx context.Context, phone, code, phoneCodeHash, password string) error
	LogOut(ctx context.Context) error
	GetEntity(ctx context.Context, id string) (*ChatEntity, error)
	IterMessages(ctx context.Context, peerID string, minID int64, limit int) ([]*ChatMessage, error)
	DownloadMedia(ctx context.Context, peerID string, upstreamFileID string, dest string, progress ProgressFunc) error
	Subscribe(ctx context.Context) (<-chan *ChatMessage, error)
}

// FloodWaitError is returned by ChatClient operations when the remote has
// rate-limited the caller (spec §6).
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string { return "chat platform flood wait" }

// PhoneCodeInvalidError, PhoneCodeExpiredError, SessionPasswordNeededError,
// PhoneNumberInvalidError, AuthKeyError are the remaining distinguished
// chat-platform auth errors (spec §6).
type PhoneCodeInvalidError struct{}
func (e *PhoneCodeInvalidError) Error() string { return "phone code invalid" }

type PhoneCodeExpiredError struct{}
func (e *PhoneCodeExpiredError) Error() string { return "phone code expired" }

type SessionPasswordNeededError struct{}
func (e *SessionPasswordNeededError) Error() string { return "2fa password required" }

type PhoneNumberInvalidError struct{}
func (e *PhoneNumberInvalidError) Error() string { return "phone number invalid" }

type AuthKeyError struct{}
func (e *AuthKeyError) Error() string { return "auth key error" }

package models

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// CanManage reports whether the role may edit server metadata and channels.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

type ChannelType string

const (
	ChannelTypeText  ChannelType = "text"
	ChannelTypeVoice ChannelType = "voice"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeSystem MessageType = "system"
)

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusIdle    PresenceStatus = "idle"
	StatusDnd     PresenceStatus = "dnd"
	StatusOffline PresenceStatus = "offline"
)

type User struct {
	ID           int64   `json:"id,string"`
	Username     string  `json:"username"`
	Email        string  `json:"email,omitempty"`
	AvatarURL    *string `json:"avatarUrl"`
	PasswordHash []byte  `json:"-"`
	CreatedAt    int64   `json:"createdAt,omitempty"`
	UpdatedAt    int64   `json:"updatedAt,omitempty"`
}

// Author is the public part of a user attached to messages and member lists.
type Author struct {
	ID        int64   `json:"id,string"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatarUrl"`
}

type Server struct {
	ID         int64   `json:"id,string"`
	Name       string  `json:"name"`
	IconURL    *string `json:"iconUrl"`
	OwnerID    int64   `json:"ownerId,string"`
	InviteCode string  `json:"inviteCode"`
	CreatedAt  int64   `json:"createdAt"`
	UpdatedAt  int64   `json:"updatedAt"`
}

type Membership struct {
	ServerID int64 `json:"serverId,string"`
	UserID   int64 `json:"userId,string"`
	Role     Role  `json:"role"`
	JoinedAt int64 `json:"joinedAt"`
}

type Member struct {
	Author
	Role     Role  `json:"role"`
	JoinedAt int64 `json:"joinedAt"`
}

type Channel struct {
	ID        int64       `json:"id,string"`
	ServerID  int64       `json:"serverId,string"`
	Name      string      `json:"name"`
	Topic     *string     `json:"topic"`
	Type      ChannelType `json:"type"`
	Position  int         `json:"position"`
	CreatedAt int64       `json:"createdAt"`
	UpdatedAt int64       `json:"updatedAt"`
}

type Message struct {
	ID        int64       `json:"id,string"`
	ChannelID int64       `json:"channelId,string"`
	UserID    int64       `json:"userId,string"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	CreatedAt int64       `json:"createdAt"`
	UpdatedAt int64       `json:"updatedAt"`
	Author    *Author     `json:"author,omitempty"`
}

type VoiceState struct {
	ID        int64  `json:"id,string"`
	ChannelID int64  `json:"channelId,string"`
	UserID    int64  `json:"userId,string"`
	SessionID string `json:"sessionId,omitempty"`
	SelfMute  bool   `json:"selfMute"`
	SelfDeaf  bool   `json:"selfDeaf"`
	JoinedAt  int64  `json:"joinedAt"`
}

// ServerWithChannels is one server entry of the READY payload. It carries
// counts only, never member lists.
type ServerWithChannels struct {
	Server
	Channels          []Channel    `json:"channels"`
	MemberCount       int          `json:"memberCount"`
	OnlineMemberCount int          `json:"onlineMemberCount"`
	VoiceStates       []VoiceState `json:"voiceStates"`
}

// MemberRef is a (server, user) membership pair used for presence resolution.
type MemberRef struct {
	ServerID int64
	UserID   int64
}

type ReadyPayload struct {
	User        User                     `json:"user"`
	Servers     []ServerWithChannels     `json:"servers"`
	PresenceMap map[int64]PresenceStatus `json:"presenceMap"`
}

type ConfigFile struct {
	Address           string
	Port              string
	TlsCert           string
	TlsKey            string
	PrintHttpRequests bool
	LogToFile         bool
	LogLevel          string
	JwtSecret         string
	JwtLifetime       string
	SnowflakeWorkerID int64
	SelfContained     bool
	Database          string
	DbPath            string
	DbUser            string
	DbPassword        string
	DbAddress         string
	DbPort            string
	DbDatabase        string
	DbDSN             string
	RedisAddress      string
	RedisPassword     string
	RedisDB           int
	// AllowedOrigins lists the browser origins allowed to call the REST API
	// with credentials; "*" allows every origin and an empty list none. The
	// gateway handshake accepts every origin when the list is empty.
	AllowedOrigins    []string
}

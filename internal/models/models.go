package models

// Thread correlates one Discord thread with at most one GitHub issue.
// The zero Number means the issue has not been created yet; NodeID is
// only needed for deletion, which GitHub exposes through GraphQL.
type Thread struct {
	ID          string
	Number      int
	NodeID      string
	Title       string
	Body        string
	Locked      bool
	Archived    bool
	AppliedTags []string
	Comments    []Comment
}

// Comment pairs a Discord message with the GitHub comment that mirrors
// it. GitID is assigned only after the remote create call succeeds.
type Comment struct {
	ID    string
	GitID int64
}

// Tag is one entry of the forum channel's tag catalog, used to
// translate between Discord tag IDs and GitHub label names.
type Tag struct {
	ID   string
	Name string
}

// ChatMessage is a Discord message as delivered by the gateway,
// reduced to the fields the bridge needs.
type ChatMessage struct {
	ID          string
	GuildID     string
	ChannelID   string
	Content     string
	Author      Author
	Attachments []Attachment
}

// Author identifies the Discord user who wrote a message.
type Author struct {
	ID          string
	DisplayName string
	Avatar      string
}

// Attachment is a file attached to a Discord message. Only PNG and
// JPEG attachments are rendered into issue bodies.
type Attachment struct {
	Name        string
	URL         string
	ContentType string
}

// IssueRecord is the slice of a GitHub issue the bridge cares about.
type IssueRecord struct {
	Number int
	NodeID string
	Title  string
	Body   string
	Locked bool
	State  string
}

// CommentRecord is the slice of a GitHub issue comment the bridge
// cares about.
type CommentRecord struct {
	ID   int64
	Body string
}
